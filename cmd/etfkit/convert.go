package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/fd1az/etfkit/internal/asset"
)

type conversion struct {
	Input     string `json:"input" yaml:"input"`
	Amount    string `json:"amount" yaml:"amount"`
	BaseUnits string `json:"baseUnits" yaml:"baseUnits"`
	Decimals  uint8  `json:"decimals" yaml:"decimals"`
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert between decimal token amounts and base units",
	}

	var (
		decimals uint8
		sanitize bool
	)

	toBase := &cobra.Command{
		Use:   "to-base <amount>",
		Short: "Convert a decimal amount to base units, truncating excess digits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := asset.ValidateDecimals(int(decimals)); err != nil {
				return err
			}
			amount := args[0]
			if sanitize {
				amount = asset.SanitizeInput(amount, decimals)
			}
			return render(cmd.OutOrStdout(), opts.output, conversion{
				Input:     args[0],
				Amount:    amount,
				BaseUnits: asset.ToBaseUnits(amount, decimals),
				Decimals:  decimals,
			})
		},
	}
	toBase.Flags().BoolVar(&sanitize, "sanitize", false, "normalize free-form input first")

	fromBase := &cobra.Command{
		Use:   "from-base <base-units>",
		Short: "Render base units as a decimal amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := asset.ValidateDecimals(int(decimals)); err != nil {
				return err
			}
			raw, err := asset.ParseBaseUnits(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			return render(cmd.OutOrStdout(), opts.output, conversion{
				Input:     args[0],
				Amount:    asset.FromBaseUnits(raw, decimals),
				BaseUnits: raw.String(),
				Decimals:  decimals,
			})
		},
	}

	cmd.PersistentFlags().Uint8VarP(&decimals, "decimals", "d", 18, "token decimals")
	cmd.AddCommand(toBase, fromBase)
	return cmd
}

type slippageOutput struct {
	Amount    string `json:"amount" yaml:"amount"`
	MinAmount string `json:"minAmount" yaml:"minAmount"`
	Percent   string `json:"percent" yaml:"percent"`
	Bps       uint32 `json:"bps" yaml:"bps"`
	HighRisk  bool   `json:"highRisk" yaml:"highRisk"`
}

func newSlippageCmd(opts *rootOptions) *cobra.Command {
	var (
		percent string
		bps     uint32
	)

	cmd := &cobra.Command{
		Use:   "slippage <base-units>",
		Short: "Compute the minimum acceptable output for a slippage tolerance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := asset.ParseBaseUnits(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}

			var tol asset.Tolerance
			if cmd.Flags().Changed("bps") {
				tol, err = asset.ToleranceFromBps(bps)
			} else {
				tol, err = parseTolerance(percent)
			}
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), opts.output, slippageOutput{
				Amount:    amount.String(),
				MinAmount: tol.MinAmountOut(amount).String(),
				Percent:   tol.Percent.String(),
				Bps:       tol.Bps,
				HighRisk:  tol.IsHighRisk(),
			})
		},
	}

	cmd.Flags().StringVarP(&percent, "percent", "p", "0.5", "tolerance in percent")
	cmd.Flags().Uint32Var(&bps, "bps", 0, "tolerance in basis points, overrides --percent")
	cmd.MarkFlagsMutuallyExclusive("percent", "bps")
	return cmd
}

func parseTolerance(percent string) (asset.Tolerance, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(percent))
	if err != nil {
		return asset.Tolerance{}, fmt.Errorf("invalid percent %q: %w", percent, err)
	}
	return asset.ToleranceFromPercent(p)
}
