// Package pricing implements the token price cache backed by a market data
// API.
package pricing

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/etfkit/business/pricing/app"
	pricingDI "github.com/fd1az/etfkit/business/pricing/di"
	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/business/pricing/infra/coingecko"
	"github.com/fd1az/etfkit/business/pricing/infra/rediscache"
	"github.com/fd1az/etfkit/internal/cache"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/health"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/monolith"
)

const cacheCleanupInterval = time.Minute

// Module implements the pricing bounded context. It runs without a node.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.MarketDataSource, func(sr di.ServiceRegistry) app.MarketDataSource {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		clientCfg := coingecko.DefaultConfig()
		clientCfg.BaseURL = cfg.Pricing.BaseURL
		clientCfg.APIKey = cfg.Pricing.APIKey
		clientCfg.Timeout = cfg.Pricing.RequestTimeout
		clientCfg.RequestsPerMinute = cfg.Pricing.RequestsPerMinute
		clientCfg.MaxRetries = cfg.Pricing.MaxRetries

		client, err := coingecko.NewClient(clientCfg, log)
		if err != nil {
			panic("failed to create coingecko client: " + err.Error())
		}
		return client
	})

	// Store stays nil without redis; the service then relies on memory only.
	di.RegisterToken(c, pricingDI.Store, func(sr di.ServiceRegistry) app.Store {
		client, _ := sr.Get(monolith.ServiceRedis).(*redis.Client)
		if client == nil {
			return nil
		}
		return rediscache.NewStore(client, rediscache.DefaultPrefix)
	})

	di.RegisterToken(c, pricingDI.Cache, func(sr di.ServiceRegistry) *cache.Cache[string, domain.TokenData] {
		return cache.New[string, domain.TokenData](cacheCleanupInterval)
	})

	di.RegisterToken(c, pricingDI.PriceService, func(sr di.ServiceRegistry) *app.PriceService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		svcCfg := app.DefaultConfig()
		svcCfg.CacheTTL = cfg.Pricing.CacheTTL
		if cfg.Pricing.StaleTTL > 0 {
			svcCfg.StaleTTL = cfg.Pricing.StaleTTL
		}
		svcCfg.StrictSymbols = cfg.Pricing.StrictSymbols

		svc, err := app.NewPriceService(
			pricingDI.GetMarketDataSource(sr),
			pricingDI.GetCache(sr),
			pricingDI.GetStore(sr),
			svcCfg,
			log,
		)
		if err != nil {
			panic("failed to create price service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup resolves the price service and registers the shared store check.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	_ = pricingDI.GetPriceService(mono.Services())

	mono.OnClose(func() error {
		pricingDI.GetCache(mono.Services()).Close()
		return nil
	})

	store, ok := pricingDI.GetStore(mono.Services()).(*rediscache.Store)
	if ok && mono.Services().Has("health") {
		mono.Services().Get("health").(*health.Server).RegisterCheck("price_store", func(ctx context.Context) (bool, string) {
			if err := store.Ping(ctx); err != nil {
				return false, err.Error()
			}
			return true, "ok"
		})
	}

	log.Info(ctx, "pricing module started",
		"source", mono.Config().Pricing.BaseURL,
		"shared_store", ok)
	return nil
}
