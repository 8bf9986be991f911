package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/asset"
)

// MaxComponents bounds the basket size accepted by the factory.
const MaxComponents = 20

// Allocation is a basket composition: tokens and their target weights in
// basis points, summing to 10000.
type Allocation struct {
	Tokens  []common.Address `json:"tokens" yaml:"tokens"`
	Weights []uint32         `json:"weights" yaml:"weights"`
}

// Validate checks lengths, duplicates and that weights add up to 100%.
func (a Allocation) Validate() error {
	if len(a.Tokens) == 0 {
		return invalidParams("basket has no tokens")
	}
	if len(a.Tokens) > MaxComponents {
		return invalidParams(fmt.Sprintf("basket has %d tokens, max %d", len(a.Tokens), MaxComponents))
	}
	if len(a.Tokens) != len(a.Weights) {
		return invalidParams(fmt.Sprintf("%d tokens but %d weights", len(a.Tokens), len(a.Weights)))
	}

	seen := make(map[common.Address]struct{}, len(a.Tokens))
	var sum uint64
	for i, tok := range a.Tokens {
		if tok == (common.Address{}) {
			return invalidParams(fmt.Sprintf("token %d is the zero address", i))
		}
		if _, dup := seen[tok]; dup {
			return invalidParams(fmt.Sprintf("duplicate token %s", tok.Hex()))
		}
		seen[tok] = struct{}{}
		if a.Weights[i] == 0 {
			return invalidParams(fmt.Sprintf("token %s has zero weight", tok.Hex()))
		}
		sum += uint64(a.Weights[i])
	}
	if sum != asset.BpsDenominator {
		return invalidParams(fmt.Sprintf("weights sum to %d bps, want %d", sum, asset.BpsDenominator))
	}
	return nil
}

// WeightsBig returns the weights as ABI uint256 values.
func (a Allocation) WeightsBig() []*big.Int {
	out := make([]*big.Int, len(a.Weights))
	for i, w := range a.Weights {
		out[i] = new(big.Int).SetUint64(uint64(w))
	}
	return out
}

// CreateParams configures a new ETF created through the factory.
type CreateParams struct {
	Name         string         `json:"name" yaml:"name"`
	Symbol       string         `json:"symbol" yaml:"symbol"`
	DepositToken common.Address `json:"depositToken" yaml:"depositToken"`
	Allocation   `yaml:",inline"`
}

func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalidParams("name is required")
	}
	if strings.TrimSpace(p.Symbol) == "" {
		return invalidParams("symbol is required")
	}
	if p.DepositToken == (common.Address{}) {
		return invalidParams("deposit token is required")
	}
	return p.Allocation.Validate()
}

// VaultParams are the tunables a vault owner may update.
type VaultParams struct {
	MaxSlippageBps    uint32        `json:"maxSlippageBps" yaml:"maxSlippageBps"`
	RebalanceCooldown time.Duration `json:"rebalanceCooldown" yaml:"rebalanceCooldown"`
}

func (p VaultParams) Validate() error {
	if p.MaxSlippageBps > asset.BpsDenominator {
		return invalidParams(fmt.Sprintf("max slippage %d bps out of range", p.MaxSlippageBps))
	}
	if p.RebalanceCooldown < 0 {
		return invalidParams("rebalance cooldown is negative")
	}
	return nil
}

// FeeSwapConfig controls how collected fees are swapped into the fee token.
type FeeSwapConfig struct {
	Router         common.Address `json:"router" yaml:"router"`
	FeeToken       common.Address `json:"feeToken" yaml:"feeToken"`
	MaxSlippageBps uint32         `json:"maxSlippageBps" yaml:"maxSlippageBps"`
}

func (c FeeSwapConfig) Validate() error {
	if c.Router == (common.Address{}) || c.FeeToken == (common.Address{}) {
		return invalidParams("router and fee token are required")
	}
	if c.MaxSlippageBps > asset.BpsDenominator {
		return invalidParams(fmt.Sprintf("max slippage %d bps out of range", c.MaxSlippageBps))
	}
	return nil
}

// ValidateFeeBps checks a deposit fee in basis points.
func ValidateFeeBps(bps uint32) error {
	if bps > asset.HighRiskBps {
		return invalidParams(fmt.Sprintf("deposit fee %d bps above %d", bps, asset.HighRiskBps))
	}
	return nil
}

func invalidParams(ctx string) error {
	return apperror.New(apperror.CodeInvalidETFParams, apperror.WithContext(ctx))
}
