package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of fractional digits a Price keeps.
const PricePrecision = 18

var priceScale = Pow10(PricePrecision)

// Price quotes one unit of Base in Quote at a point in time. The rate is
// held as an integer scaled by 10^PricePrecision so conversions between
// base units stay exact up to the final truncation.
type Price struct {
	Base  *Asset
	Quote *Asset
	At    time.Time

	scaled *big.Int
}

// NewPrice truncates rate to PricePrecision digits.
func NewPrice(base, quote *Asset, rate decimal.Decimal, at time.Time) (Price, error) {
	switch {
	case base == nil || quote == nil:
		return Price{}, ErrNilAsset
	case rate.IsNegative():
		return Price{}, fmt.Errorf("%w: rate %s", ErrNegativeAmount, rate)
	}
	return Price{Base: base, Quote: quote, At: at, scaled: rate.Shift(PricePrecision).BigInt()}, nil
}

// USDPrice quotes base in USD.
func USDPrice(base *Asset, rate decimal.Decimal, at time.Time) (Price, error) {
	return NewPrice(base, USD, rate, at)
}

func (p Price) Rate() decimal.Decimal {
	if p.scaled == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.scaled, -PricePrecision)
}

// Pair is "BASE/QUOTE".
func (p Price) Pair() string {
	return p.Base.String() + "/" + p.Quote.String()
}

func (p Price) String() string {
	return p.Rate().String() + " " + p.Pair()
}

// Value is amount priced in Quote, unrounded.
func (p Price) Value(amount Amount) (decimal.Decimal, error) {
	if err := p.accepts(amount); err != nil {
		return decimal.Zero, err
	}
	return amount.ToDecimal().Mul(p.Rate()), nil
}

// Convert turns amount into Quote base units, truncating.
func (p Price) Convert(amount Amount) (Amount, error) {
	if err := p.accepts(amount); err != nil {
		return Amount{}, err
	}
	out := new(big.Int).Mul(amount.Raw(), p.scaled)
	out.Mul(out, Pow10(p.Quote.decimals))
	out.Quo(out, priceScale)
	out.Quo(out, Pow10(p.Base.decimals))
	return NewAmount(p.Quote, out), nil
}

func (p Price) accepts(amount Amount) error {
	if p.Base == nil || amount.asset == nil {
		return ErrNilAsset
	}
	if !p.Base.Same(amount.asset) {
		return fmt.Errorf("%w: price is for %s, amount is %s", ErrAssetMismatch, p.Base, amount.asset)
	}
	return nil
}

// Stale reports whether the quote is older than maxAge at now.
func (p Price) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.At) > maxAge
}
