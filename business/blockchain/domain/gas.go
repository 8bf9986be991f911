package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

var weiPerGwei = decimal.New(1, 9)

// GasPrice is a legacy gas price observation.
type GasPrice struct {
	Wei        *big.Int
	ObservedAt time.Time
	Capped     bool
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int, observedAt time.Time) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), ObservedAt: observedAt}
}

// Gwei returns the price in gwei.
func (g *GasPrice) Gwei() decimal.Decimal {
	return decimal.NewFromBigInt(g.Wei, 0).Div(weiPerGwei)
}

// PadGas adds pct percent to an estimated gas limit, rounding down.
func PadGas(estimated uint64, pct uint64) uint64 {
	return estimated * (100 + pct) / 100
}

// GasQuote is the gas limit and price a transaction will be sent with.
type GasQuote struct {
	GasLimit uint64
	GasPrice *GasPrice
}

// MaxFeeWei returns GasLimit × price, the most the transaction can cost.
func (q GasQuote) MaxFeeWei() *big.Int {
	return new(big.Int).Mul(q.GasPrice.Wei, new(big.Int).SetUint64(q.GasLimit))
}
