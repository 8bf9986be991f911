package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPadGas(t *testing.T) {
	assert.Equal(t, uint64(120000), PadGas(100000, 20))
	assert.Equal(t, uint64(25200), PadGas(21000, 20))
	assert.Equal(t, uint64(1), PadGas(1, 20))
	assert.Equal(t, uint64(5000), PadGas(5000, 0))
}

func TestGasQuote_MaxFeeWei(t *testing.T) {
	q := GasQuote{GasLimit: 120000, GasPrice: NewGasPrice(big.NewInt(30e9), time.Now())}
	assert.Equal(t, "3600000000000000", q.MaxFeeWei().String())
	assert.True(t, q.GasPrice.Gwei().Equal(decimal.NewFromInt(30)))
}

func TestHeadStatus_Fresh(t *testing.T) {
	now := time.Now()
	assert.False(t, HeadStatus{}.Fresh(now, time.Minute))
	assert.True(t, HeadStatus{ObservedAt: now.Add(-10 * time.Second)}.Fresh(now, time.Minute))
	assert.False(t, HeadStatus{ObservedAt: now.Add(-2 * time.Minute)}.Fresh(now, time.Minute))
}
