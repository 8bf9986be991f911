package asset_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/etfkit/internal/asset"
)

func wei(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) }

func TestAmount_Display(t *testing.T) {
	tests := []struct {
		name    string
		amount  asset.Amount
		str     string
		decimal string
	}{
		{"one_eth", asset.NewAmount(asset.ETH, wei(1)), "1 ETH", "1"},
		{"fractional_usdc", asset.NewAmount(asset.USDC, big.NewInt(1234500)), "1.2345 USDC", "1.2345"},
		{"zero_wbtc", asset.Zero(asset.WBTC), "0 WBTC", "0"},
		{"zero_value", asset.Amount{}, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			if got := tt.amount.ToDecimal(); !got.Equal(decimal.RequireFromString(tt.decimal)) {
				t.Errorf("ToDecimal() = %s, want %s", got, tt.decimal)
			}
		})
	}
}

func TestAmount_ParseUnits(t *testing.T) {
	tests := []struct {
		name  string
		asset *asset.Asset
		input string
		raw   string
		units string
	}{
		{"usdc_comma", asset.USDC, "1,5", "1500000", "1.5"},
		{"usdc_truncates", asset.USDC, "0.0000001", "0", "0"},
		{"eth_dirty_input", asset.ETH, " 2.50 ETH", "2500000000000000000", "2.5"},
		{"wbtc_leading_dot", asset.WBTC, ".00000001", "1", "0.00000001"},
		{"empty", asset.USDC, "", "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amt, err := asset.ParseUnits(tt.asset, tt.input)
			if err != nil {
				t.Fatalf("ParseUnits: %v", err)
			}
			if amt.Raw().String() != tt.raw || amt.Units() != tt.units {
				t.Errorf("got raw=%s units=%s, want raw=%s units=%s", amt.Raw(), amt.Units(), tt.raw, tt.units)
			}
		})
	}

	if _, err := asset.ParseUnits(nil, "1"); !errors.Is(err, asset.ErrNilAsset) {
		t.Errorf("nil asset: got %v", err)
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	one := asset.NewAmount(asset.ETH, wei(1))
	two := asset.NewAmount(asset.ETH, wei(2))
	usdc := asset.NewAmount(asset.USDC, big.NewInt(1e6))

	sum, err := one.Add(two)
	if err != nil || sum.Units() != "3" {
		t.Fatalf("1+2 = %s, %v", sum, err)
	}

	diff, err := two.Sub(one)
	if err != nil || !diff.Equal(one) {
		t.Fatalf("2-1 = %s, %v", diff, err)
	}

	if _, err := one.Sub(two); !errors.Is(err, asset.ErrNegativeResult) {
		t.Errorf("1-2: got %v", err)
	}
	if _, err := one.Add(usdc); !errors.Is(err, asset.ErrAssetMismatch) {
		t.Errorf("ETH+USDC: got %v", err)
	}
	if n, err := one.Cmp(two); err != nil || n != -1 {
		t.Errorf("Cmp = %d, %v", n, err)
	}
	if one.Equal(usdc) {
		t.Error("amounts of different assets compared equal")
	}
}

func TestAmount_SameAssetByKey(t *testing.T) {
	// A second Asset value for the mainnet USDC contract is the same asset.
	other := asset.MustAsset(asset.TokenKey(asset.ChainIDEthereum, asset.AddrUSDCEthereum), "USDC", "", 6)

	sum, err := asset.NewAmount(asset.USDC, big.NewInt(1)).Add(asset.NewAmount(other, big.NewInt(2)))
	if err != nil || sum.Raw().Int64() != 3 {
		t.Fatalf("sum = %s, %v", sum, err)
	}

	sepolia := asset.MustAsset(asset.TokenKey(asset.ChainIDSepolia, asset.AddrUSDCEthereum), "USDC", "", 6)
	if asset.USDC.Same(sepolia) {
		t.Error("same address on another chain must be a different asset")
	}
}

func TestAmount_WithSlippage(t *testing.T) {
	minOut := asset.NewAmount(asset.USDC, big.NewInt(1000000)).WithSlippage(asset.MustTolerance(250))

	if minOut.Raw().Int64() != 975000 {
		t.Errorf("min out = %s, want 975000", minOut.Raw())
	}
	if minOut.Asset() != asset.USDC {
		t.Error("asset not preserved")
	}
}

func TestAmount_DoesNotAlias(t *testing.T) {
	raw := big.NewInt(100)
	amt := asset.NewAmount(asset.USDC, raw)

	raw.SetInt64(999)
	amt.Raw().SetInt64(5)

	if amt.Raw().Int64() != 100 {
		t.Errorf("amount changed to %s", amt.Raw())
	}
}

func TestNewAmount_Panics(t *testing.T) {
	for name, build := range map[string]func(){
		"negative":  func() { asset.NewAmount(asset.ETH, big.NewInt(-1)) },
		"nil_raw":   func() { asset.NewAmount(asset.ETH, nil) },
		"nil_asset": func() { asset.NewAmount(nil, big.NewInt(1)) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			build()
		})
	}
}

func TestKey(t *testing.T) {
	if k := asset.TokenKey(asset.ChainIDEthereum, common.Address{}); !k.Native() || k.String() != "1/native" {
		t.Errorf("native key = %s", k)
	}
	if !asset.USD.Key().OffChain() {
		t.Error("USD should be off-chain")
	}
	if asset.USDC.Key().Native() || asset.USDC.Key().OffChain() {
		t.Errorf("USDC key = %s", asset.USDC.Key())
	}
}
