// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/etfkit/business/pricing/app"
	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/cache"
	"github.com/fd1az/etfkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PriceService = di.NewToken[*app.PriceService]("pricing.PriceService")
)

// Private dependency tokens - internal to pricing module
var (
	MarketDataSource = di.NewToken[app.MarketDataSource]("pricing:marketDataSource")
	Store            = di.NewToken[app.Store]("pricing:store")
	Cache            = di.NewToken[*cache.Cache[string, domain.TokenData]]("pricing:cache")
)

// Helper functions for type-safe access
func GetPriceService(c di.ServiceRegistry) *app.PriceService {
	return di.GetToken(c, PriceService)
}

func GetMarketDataSource(c di.ServiceRegistry) app.MarketDataSource {
	return di.GetToken(c, MarketDataSource)
}

func GetStore(c di.ServiceRegistry) app.Store {
	return di.GetToken(c, Store)
}

func GetCache(c di.ServiceRegistry) *cache.Cache[string, domain.TokenData] {
	return di.GetToken(c, Cache)
}
