// Package asset converts token amounts between human decimal strings and
// on-chain base units, applies slippage bounds and carries token metadata.
// Amounts are big.Int throughout; decimal.Decimal appears only for display
// and percent parsing.
package asset

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var ErrEmptySymbol = errors.New("asset: empty symbol")

// offChain is the chain id used for currencies that only exist as a
// valuation unit.
const offChain = 0

// Key identifies an asset. Native coins carry the zero address and
// off-chain currencies carry chain 0.
type Key struct {
	Chain   uint64
	Address common.Address
}

// TokenKey keys a contract on chain. The zero address yields the chain's
// native coin.
func TokenKey(chain uint64, address common.Address) Key {
	return Key{Chain: chain, Address: address}
}

func currencyKey(code string) Key {
	return Key{Chain: offChain, Address: common.BytesToAddress(common.RightPadBytes([]byte(code), common.AddressLength))}
}

func (k Key) Native() bool {
	return k.Chain != offChain && k.Address == (common.Address{})
}

func (k Key) OffChain() bool {
	return k.Chain == offChain
}

func (k Key) String() string {
	switch {
	case k.OffChain():
		return "offchain/" + k.Address.Hex()[:10]
	case k.Native():
		return fmt.Sprintf("%d/native", k.Chain)
	default:
		return fmt.Sprintf("%d/%s", k.Chain, k.Address.Hex())
	}
}

// Asset is what the converters need to know about a token: its key, the
// ticker shown to users and the decimals of its base unit.
type Asset struct {
	key      Key
	symbol   string
	name     string
	decimals uint8
}

// ParseAsset validates metadata from the backend or a config file.
func ParseAsset(key Key, symbol, name string, decimals int) (*Asset, error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}
	if err := ValidateDecimals(decimals); err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}
	if name == "" {
		name = symbol
	}
	return &Asset{key: key, symbol: symbol, name: name, decimals: uint8(decimals)}, nil
}

// MustAsset is ParseAsset for compile-time tables. It panics on bad input.
func MustAsset(key Key, symbol, name string, decimals uint8) *Asset {
	a, err := ParseAsset(key, symbol, name, int(decimals))
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Asset) Key() Key                { return a.key }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Name() string            { return a.name }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) ChainID() uint64         { return a.key.Chain }
func (a *Asset) Address() common.Address { return a.key.Address }
func (a *Asset) String() string          { return a.symbol }

// Same reports whether a and other denote the same asset. Two nil assets
// are the same.
func (a *Asset) Same(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.key == other.key
}
