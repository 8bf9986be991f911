package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset       = errors.New("asset: nil asset")
	ErrNegativeAmount = errors.New("asset: negative amount")
	ErrAssetMismatch  = errors.New("asset: mismatched assets")
	ErrNegativeResult = errors.New("asset: result would be negative")
)

// Amount is a non-negative quantity of one asset in base units. The zero
// value has no asset and prints as "0".
type Amount struct {
	asset *Asset
	raw   *big.Int
}

// NewAmount copies raw. It panics on a nil asset or a nil or negative raw;
// ParseUnits is the checked path for user input.
func NewAmount(a *Asset, raw *big.Int) Amount {
	switch {
	case a == nil:
		panic(ErrNilAsset)
	case raw == nil || raw.Sign() < 0:
		panic(fmt.Errorf("%w: %v", ErrNegativeAmount, raw))
	}
	return Amount{asset: a, raw: new(big.Int).Set(raw)}
}

func Zero(a *Asset) Amount {
	return NewAmount(a, new(big.Int))
}

// ParseUnits reads loosely formatted user input such as "1,5" or
// " 2.50 ETH". Digits past the asset's decimals are dropped.
func ParseUnits(a *Asset, input string) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	return NewAmount(a, ToBaseUnitsBig(SanitizeInput(input, a.decimals), a.decimals)), nil
}

func (a Amount) Asset() *Asset { return a.asset }

// Raw returns a copy of the base-unit value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

func (a Amount) Add(b Amount) (Amount, error) {
	return a.combine(b, func(x, y *big.Int) (*big.Int, error) {
		return new(big.Int).Add(x, y), nil
	})
}

// Sub fails with ErrNegativeResult when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	return a.combine(b, func(x, y *big.Int) (*big.Int, error) {
		if x.Cmp(y) < 0 {
			return nil, ErrNegativeResult
		}
		return new(big.Int).Sub(x, y), nil
	})
}

// Cmp orders two amounts of the same asset.
func (a Amount) Cmp(b Amount) (int, error) {
	var order int
	_, err := a.combine(b, func(x, y *big.Int) (*big.Int, error) {
		order = x.Cmp(y)
		return x, nil
	})
	return order, err
}

// Equal is true when both amounts have the same asset and value.
func (a Amount) Equal(b Amount) bool {
	n, err := a.Cmp(b)
	return err == nil && n == 0
}

func (a Amount) combine(b Amount, op func(x, y *big.Int) (*big.Int, error)) (Amount, error) {
	if a.asset == nil || b.asset == nil {
		return Amount{}, ErrNilAsset
	}
	if !a.asset.Same(b.asset) {
		return Amount{}, fmt.Errorf("%w: %s and %s", ErrAssetMismatch, a.asset.symbol, b.asset.symbol)
	}
	out, err := op(a.Raw(), b.Raw())
	if err != nil {
		return Amount{}, err
	}
	return Amount{asset: a.asset, raw: out}, nil
}

// WithSlippage is the least acceptable output under t.
func (a Amount) WithSlippage(t Tolerance) Amount {
	return Amount{asset: a.asset, raw: t.MinAmountOut(a.Raw())}
}

// Units is the human value with trailing zeros removed.
func (a Amount) Units() string {
	if a.asset == nil {
		return "0"
	}
	return FromBaseUnits(a.Raw(), a.asset.decimals)
}

func (a Amount) ToDecimal() decimal.Decimal {
	if a.asset == nil || a.raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.decimals))
}

// String renders "1.5 WETH".
func (a Amount) String() string {
	if a.asset == nil {
		return "0"
	}
	return a.Units() + " " + a.asset.symbol
}
