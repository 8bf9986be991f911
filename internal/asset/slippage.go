package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/fd1az/etfkit/internal/apperror"
)

const (
	// BpsDenominator is 100% expressed in basis points.
	BpsDenominator = 10000
	// HighRiskBps is the tolerance above which a trade is flagged as risky.
	HighRiskBps = 1000
)

var ErrSlippageOutOfRange = errors.New("asset: slippage tolerance out of range")

var (
	bigDenominator = big.NewInt(BpsDenominator)
	hundred        = decimal.NewFromInt(100)
)

// Tolerance is a slippage tolerance held both as a percentage (display)
// and as integer basis points (on-chain calls). 0 <= Bps <= 10000.
type Tolerance struct {
	Percent decimal.Decimal
	Bps     uint32
}

// ToleranceFromPercent converts a percentage in [0, 100] to a Tolerance,
// rounding to the nearest basis point.
func ToleranceFromPercent(percent decimal.Decimal) (Tolerance, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return Tolerance{}, apperror.New(apperror.CodeInvalidSlippage,
			apperror.WithCause(ErrSlippageOutOfRange),
			apperror.WithContext(fmt.Sprintf("percent=%s", percent.String())))
	}

	bps := percent.Mul(hundred).Round(0).IntPart()
	return Tolerance{Percent: percent, Bps: uint32(bps)}, nil
}

// ToleranceFromBps builds a Tolerance from basis points.
func ToleranceFromBps(bps uint32) (Tolerance, error) {
	if bps > BpsDenominator {
		return Tolerance{}, apperror.New(apperror.CodeInvalidSlippage,
			apperror.WithCause(ErrSlippageOutOfRange),
			apperror.WithContext(fmt.Sprintf("bps=%d", bps)))
	}
	return Tolerance{Percent: decimal.New(int64(bps), -2), Bps: bps}, nil
}

// MustTolerance is ToleranceFromBps that panics on out-of-range input.
func MustTolerance(bps uint32) Tolerance {
	t, err := ToleranceFromBps(bps)
	if err != nil {
		panic(err)
	}
	return t
}

// IsHighRisk reports a tolerance above 10%. Advisory only.
func (t Tolerance) IsHighRisk() bool {
	return t.Bps > HighRiskBps
}

// MinAmountOut applies the tolerance to an expected output.
func (t Tolerance) MinAmountOut(expected *big.Int) *big.Int {
	return ApplySlippage(expected, t.Bps)
}

func (t Tolerance) String() string {
	return fmt.Sprintf("%s%% (%d bps)", t.Percent.String(), t.Bps)
}

// ApplySlippage returns floor(amount * (10000 - bps) / 10000) on big.Int.
// Bps above 10000 are clamped; a nil amount is zero.
func ApplySlippage(amount *big.Int, bps uint32) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	if bps > BpsDenominator {
		bps = BpsDenominator
	}

	keep := big.NewInt(int64(BpsDenominator - bps))
	out := new(big.Int).Mul(amount, keep)
	return out.Div(out, bigDenominator)
}
