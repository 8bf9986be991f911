package main

import (
	"context"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	etfApp "github.com/fd1az/etfkit/business/etf/app"
	etfDI "github.com/fd1az/etfkit/business/etf/di"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/asset"
)

func newTxCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Build, sign and send vault and factory transactions",
		Long: "Build, sign and send vault and factory transactions.\n" +
			"A signer key is required. With signer.dry_run set, transactions are\n" +
			"simulated and priced but not sent.",
	}

	cmd.AddCommand(
		newTradeCmd(opts, etfDomain.ActionDeposit),
		newTradeCmd(opts, etfDomain.ActionRedeem),
		newApproveCmd(opts),
		newCreateCmd(opts),
		newRebalanceCmd(opts),
		newUpdateParamsCmd(opts),
		newAddressSetterCmd(opts, "set-treasury", "Set the factory fee treasury", (*etfApp.TradeService).SetTreasury),
		newAddressSetterCmd(opts, "set-hls", "Set the factory HLS address", (*etfApp.TradeService).SetHLSAddress),
		newSetDepositFeeCmd(opts),
		newSetFeeSwapCmd(opts),
	)
	return cmd
}

// runTx starts the chain modules and renders the receipt returned by fn.
func runTx(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, rt *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error)) error {
	rt, err := startApp(cmd.Context(), opts, true, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	receipt, err := fn(cmd.Context(), rt, etfDI.GetTradeService(rt.mono.Services()))
	if err != nil {
		return err
	}
	if rt.cfg.Signer.DryRun {
		rt.log.Info(cmd.Context(), "dry run, transaction not sent",
			"method", receipt.Method,
			"max_cost_wei", receipt.MaxCostWei().String())
	}
	return render(cmd.OutOrStdout(), opts.output, receipt)
}

func newTradeCmd(opts *rootOptions, action etfDomain.Action) *cobra.Command {
	var vault, amount, minOut, slippage string

	short := "Deposit the deposit token into a vault"
	if action == etfDomain.ActionRedeem {
		short = "Redeem vault shares"
	}

	cmd := &cobra.Command{
		Use:   action.String(),
		Short: short,
		Long: short + ".\nWithout --min-out the minimum is derived from a fresh estimate " +
			"and --slippage.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseAddressArg("vault", vault)
			if err != nil {
				return err
			}
			in, err := asset.ParseBaseUnits(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}

			var floor *big.Int
			if minOut != "" {
				if floor, err = asset.ParseBaseUnits(minOut); err != nil {
					return fmt.Errorf("min-out %q: %w", minOut, err)
				}
			}
			tol, err := parseTolerance(slippage)
			if err != nil {
				return err
			}

			return runTx(cmd, opts, func(ctx context.Context, rt *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				if floor == nil {
					intent := etfDomain.Intent{
						Action:         action,
						Vault:          v,
						InputAmount:    in,
						AllowanceKnown: true,
						Tolerance:      tol,
					}
					res, err := etfDI.GetTracker(rt.mono.Services()).Estimate(ctx, etfApp.TrackKey("cli", intent), intent)
					if err != nil {
						return nil, err
					}
					floor = res.MinOutput()
				}

				if action == etfDomain.ActionRedeem {
					return svc.Redeem(ctx, v, in, floor)
				}
				return svc.Deposit(ctx, v, in, floor)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&vault, "vault", "", "vault address")
	f.StringVar(&amount, "amount", "", "input amount in base units")
	f.StringVar(&minOut, "min-out", "", "minimum output in base units")
	f.StringVar(&slippage, "slippage", "0.5", "tolerance in percent when --min-out is not set")
	_ = cmd.MarkFlagRequired("vault")
	_ = cmd.MarkFlagRequired("amount")
	cmd.MarkFlagsMutuallyExclusive("min-out", "slippage")
	return cmd
}

func newApproveCmd(opts *rootOptions) *cobra.Command {
	var token, spender, amount string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Approve a spender for an ERC-20 token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := parseAddressArg("token", token)
			if err != nil {
				return err
			}
			sp, err := parseAddressArg("spender", spender)
			if err != nil {
				return err
			}
			amt, err := asset.ParseBaseUnits(amount)
			if err != nil {
				return fmt.Errorf("amount %q: %w", amount, err)
			}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.Approve(ctx, tok, sp, amt)
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "token address")
	cmd.Flags().StringVar(&spender, "spender", "", "spender address, usually the vault")
	cmd.Flags().StringVar(&amount, "amount", "", "allowance in base units")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("spender")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <params.yaml>",
		Short: "Create an ETF through the factory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := readCreateParams(args[0])
			if err != nil {
				return err
			}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.CreateETF(ctx, params)
			})
		},
	}
}

func newRebalanceCmd(opts *rootOptions) *cobra.Command {
	var vault string

	cmd := &cobra.Command{
		Use:   "rebalance <allocation.yaml>",
		Short: "Move a vault to a new allocation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseAddressArg("vault", vault)
			if err != nil {
				return err
			}
			var alloc etfDomain.Allocation
			if err := readFile(args[0], &alloc); err != nil {
				return err
			}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.Rebalance(ctx, v, alloc)
			})
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	_ = cmd.MarkFlagRequired("vault")
	return cmd
}

func newUpdateParamsCmd(opts *rootOptions) *cobra.Command {
	var vault string
	var p etfDomain.VaultParams

	cmd := &cobra.Command{
		Use:   "update-params",
		Short: "Update vault slippage and rebalance cooldown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseAddressArg("vault", vault)
			if err != nil {
				return err
			}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.UpdateParams(ctx, v, p)
			})
		},
	}

	cmd.Flags().StringVar(&vault, "vault", "", "vault address")
	cmd.Flags().Uint32Var(&p.MaxSlippageBps, "max-slippage-bps", 100, "max swap slippage in basis points")
	cmd.Flags().DurationVar(&p.RebalanceCooldown, "cooldown", 0, "minimum time between rebalances")
	_ = cmd.MarkFlagRequired("vault")
	return cmd
}

type addressSetter func(*etfApp.TradeService, context.Context, common.Address) (*etfDomain.TxReceipt, error)

func newAddressSetterCmd(opts *rootOptions, use, short string, set addressSetter) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("address", args[0])
			if err != nil {
				return err
			}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return set(svc, ctx, addr)
			})
		},
	}
}

func newSetDepositFeeCmd(opts *rootOptions) *cobra.Command {
	var bps uint32

	cmd := &cobra.Command{
		Use:   "set-deposit-fee",
		Short: "Set the factory deposit fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.SetDepositFee(ctx, bps)
			})
		},
	}

	cmd.Flags().Uint32Var(&bps, "bps", 0, "fee in basis points")
	_ = cmd.MarkFlagRequired("bps")
	return cmd
}

func newSetFeeSwapCmd(opts *rootOptions) *cobra.Command {
	var router, feeToken string
	var bps uint32

	cmd := &cobra.Command{
		Use:   "set-fee-swap",
		Short: "Configure how collected fees are swapped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseAddressArg("router", router)
			if err != nil {
				return err
			}
			ft, err := parseAddressArg("fee-token", feeToken)
			if err != nil {
				return err
			}
			c := etfDomain.FeeSwapConfig{Router: r, FeeToken: ft, MaxSlippageBps: bps}
			return runTx(cmd, opts, func(ctx context.Context, _ *appRuntime, svc *etfApp.TradeService) (*etfDomain.TxReceipt, error) {
				return svc.SetFeeSwapConfig(ctx, c)
			})
		},
	}

	cmd.Flags().StringVar(&router, "router", "", "swap router address")
	cmd.Flags().StringVar(&feeToken, "fee-token", "", "token fees are swapped into")
	cmd.Flags().Uint32Var(&bps, "max-slippage-bps", 100, "max swap slippage in basis points")
	_ = cmd.MarkFlagRequired("router")
	_ = cmd.MarkFlagRequired("fee-token")
	return cmd
}

func readFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := decodeFile(f, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
