package asset

import "github.com/ethereum/go-ethereum/common"

// Chains the ETF contracts are deployed on.
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
	ChainIDArbitrum = 42161
	ChainIDBase     = 8453
	ChainIDBSC      = 56
)

// AddrUSDCEthereum is the mainnet USDC contract, the default deposit token.
var AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

// Mainnet assets the CLI and catalog know without asking the backend.
var (
	ETH  = MustAsset(TokenKey(ChainIDEthereum, common.Address{}), "ETH", "Ethereum", 18)
	USDC = MustAsset(TokenKey(ChainIDEthereum, AddrUSDCEthereum), "USDC", "USD Coin", 6)
	USDT = mainnet("0xdAC17F958D2ee523a2206206994597C13D831ec7", "USDT", "Tether USD", 6)
	DAI  = mainnet("0x6B175474E89094C44Da98b954EedeAC495271d0F", "DAI", "Dai Stablecoin", 18)
	WETH = mainnet("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "WETH", "Wrapped Ether", 18)
	WBTC = mainnet("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", "WBTC", "Wrapped Bitcoin", 8)

	// USD is the valuation unit for portfolio totals.
	USD = MustAsset(currencyKey("USD"), "USD", "US Dollar", 2)
)

func mainnet(hex, symbol, name string, decimals uint8) *Asset {
	return MustAsset(TokenKey(ChainIDEthereum, common.HexToAddress(hex)), symbol, name, decimals)
}

// DefaultRegistry holds the assets above. Vault components discovered later
// are added with Registry.Resolve.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []*Asset{ETH, USDC, USDT, DAI, WETH, WBTC, USD} {
		r.Register(a)
	}
	return r
}
