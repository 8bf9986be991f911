package asset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry indexes assets by key and by case-insensitive symbol. One symbol
// may exist on several chains. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	byKey    map[Key]*Asset
	bySymbol map[string][]*Asset
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:    map[Key]*Asset{},
		bySymbol: map[string][]*Asset{},
	}
}

func normSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Register adds a. It panics on nil or on a key that is already taken.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: register nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, taken := r.byKey[a.key]; taken {
		panic(fmt.Sprintf("asset: %s already registered as %s", a.key, prev.symbol))
	}
	r.insert(a)
}

func (r *Registry) insert(a *Asset) {
	r.byKey[a.key] = a
	sym := normSymbol(a.symbol)
	r.bySymbol[sym] = append(r.bySymbol[sym], a)
}

// Resolve returns the asset at chainID/address. Unknown tokens are
// registered from symbol and decimals, which are validated. A known token
// keeps its first metadata.
func (r *Registry) Resolve(chainID uint64, address common.Address, symbol string, decimals int) (*Asset, error) {
	key := TokenKey(chainID, address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byKey[key]; ok {
		return a, nil
	}

	a, err := ParseAsset(key, symbol, "", decimals)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	r.insert(a)
	return a, nil
}

// Lookup finds the asset at chainID/address.
func (r *Registry) Lookup(chainID uint64, address common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKey[TokenKey(chainID, address)]
	return a, ok
}

// GetBySymbol returns every asset with symbol, in registration order.
func (r *Registry) GetBySymbol(symbol string) []*Asset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := r.bySymbol[normSymbol(symbol)]
	if len(matches) == 0 {
		return nil
	}
	return append([]*Asset(nil), matches...)
}

func (r *Registry) GetBySymbolAndChain(symbol string, chainID uint64) (*Asset, bool) {
	for _, a := range r.GetBySymbol(symbol) {
		if a.key.Chain == chainID {
			return a, true
		}
	}
	return nil, false
}

// Decimals reports the base-unit decimals of a known token.
func (r *Registry) Decimals(chainID uint64, address common.Address) (uint8, bool) {
	a, ok := r.Lookup(chainID, address)
	if !ok {
		return 0, false
	}
	return a.decimals, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
