package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	catalogDI "github.com/fd1az/etfkit/business/catalog/di"
	catalogDomain "github.com/fd1az/etfkit/business/catalog/domain"
	etfApp "github.com/fd1az/etfkit/business/etf/app"
	etfDI "github.com/fd1az/etfkit/business/etf/di"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	pricingDI "github.com/fd1az/etfkit/business/pricing/di"
	"github.com/fd1az/etfkit/internal/asset"
)

func parseAddressArg(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s is not a hex address: %q", name, s)
	}
	return common.HexToAddress(s), nil
}

func newPricesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prices <symbol>...",
		Short: "Fetch USD prices and logos by token symbol",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := startApp(cmd.Context(), opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			data, err := pricingDI.GetPriceService(rt.mono.Services()).FetchTokenData(cmd.Context(), args)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, data)
		},
	}
}

type estimateOptions struct {
	vault          string
	action         string
	amount         string
	decimals       uint8
	sender         string
	slippage       string
	allowanceKnown bool
}

func newEstimateCmd(opts *rootOptions) *cobra.Command {
	eo := &estimateOptions{}

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Simulate a deposit or redeem and print the output and minimum bound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			intent, err := eo.intent()
			if err != nil {
				return err
			}

			rt, err := startApp(cmd.Context(), opts, true, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := etfDI.GetTracker(rt.mono.Services()).Estimate(cmd.Context(), etfApp.TrackKey("cli", intent), intent)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, res.Snapshot())
		},
	}

	f := cmd.Flags()
	f.StringVar(&eo.vault, "vault", "", "vault address")
	f.StringVar(&eo.action, "action", string(etfDomain.ActionDeposit), "deposit or redeem")
	f.StringVar(&eo.amount, "amount", "", "input amount in token units")
	f.Uint8VarP(&eo.decimals, "decimals", "d", 18, "decimals of the input token")
	f.StringVar(&eo.sender, "sender", "", "caller address, required for allowance checks")
	f.StringVar(&eo.slippage, "slippage", "0.5", "tolerance in percent")
	f.BoolVar(&eo.allowanceKnown, "allowance-known", false, "skip the allowance check")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (eo *estimateOptions) intent() (etfDomain.Intent, error) {
	if err := asset.ValidateDecimals(int(eo.decimals)); err != nil {
		return etfDomain.Intent{}, err
	}
	action, err := etfDomain.ParseAction(eo.action)
	if err != nil {
		return etfDomain.Intent{}, err
	}
	vault, err := parseAddressArg("vault", eo.vault)
	if err != nil {
		return etfDomain.Intent{}, err
	}
	tol, err := parseTolerance(eo.slippage)
	if err != nil {
		return etfDomain.Intent{}, err
	}

	intent := etfDomain.Intent{
		Action:         action,
		Vault:          vault,
		InputAmount:    asset.ToBaseUnitsBig(asset.SanitizeInput(eo.amount, eo.decimals), eo.decimals),
		AllowanceKnown: eo.allowanceKnown,
		Tolerance:      tol,
	}
	if eo.sender != "" {
		if intent.Sender, err = parseAddressArg("sender", eo.sender); err != nil {
			return etfDomain.Intent{}, err
		}
	}
	return intent, intent.Validate()
}

func newCatalogCmds(opts *rootOptions) []*cobra.Command {
	var q catalogDomain.ListQuery
	var sort, owner string

	etfs := &cobra.Command{
		Use:   "etfs",
		Short: "List ETFs from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Sort = catalogDomain.Sort(sort)
			if owner != "" {
				addr, err := parseAddressArg("owner", owner)
				if err != nil {
					return err
				}
				q.Owner = addr
			}

			rt, err := startApp(cmd.Context(), opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			page, err := catalogDI.GetCatalogService(rt.mono.Services()).ListETFs(cmd.Context(), q)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, page)
		},
	}
	etfs.Flags().IntVar(&q.Page, "page", 1, "page number")
	etfs.Flags().IntVar(&q.Limit, "limit", catalogDomain.DefaultPageSize, "page size")
	etfs.Flags().StringVar(&q.Search, "search", "", "name or symbol filter")
	etfs.Flags().StringVar(&sort, "sort", "", "newest, tvl or name")
	etfs.Flags().StringVar(&owner, "owner", "", "only ETFs created by this address")

	etf := &cobra.Command{
		Use:   "etf <vault>",
		Short: "Show one ETF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := parseAddressArg("vault", args[0])
			if err != nil {
				return err
			}

			rt, err := startApp(cmd.Context(), opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			e, err := catalogDI.GetCatalogService(rt.mono.Services()).GetETF(cmd.Context(), vault)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, e)
		},
	}

	portfolio := &cobra.Command{
		Use:   "portfolio <owner>",
		Short: "Value an owner's holdings in USD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("owner", args[0])
			if err != nil {
				return err
			}

			rt, err := startApp(cmd.Context(), opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			v, err := catalogDI.GetCatalogService(rt.mono.Services()).PortfolioValue(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, v)
		},
	}

	verify := &cobra.Command{
		Use:   "verify <params.yaml>",
		Short: "Validate a basket locally and with the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readCreateParams(args[0])
			if err != nil {
				return err
			}

			rt, err := startApp(cmd.Context(), opts, false, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			v, err := catalogDI.GetCatalogService(rt.mono.Services()).VerifyETF(cmd.Context(), params)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, v)
		},
	}

	return []*cobra.Command{etfs, etf, portfolio, verify}
}

func readCreateParams(path string) (etfDomain.CreateParams, error) {
	var p etfDomain.CreateParams
	if err := readFile(path, &p); err != nil {
		return etfDomain.CreateParams{}, err
	}
	return p, nil
}
