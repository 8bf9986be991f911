// Package catalog implements ETF listings and portfolio valuation over the
// backend REST API.
package catalog

import (
	"context"

	"github.com/fd1az/etfkit/business/catalog/app"
	catalogDI "github.com/fd1az/etfkit/business/catalog/di"
	"github.com/fd1az/etfkit/business/catalog/infra/backend"
	pricingDI "github.com/fd1az/etfkit/business/pricing/di"
	"github.com/fd1az/etfkit/internal/asset"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/monolith"
)

// Module implements the catalog bounded context. It depends on the pricing
// module for valuations.
type Module struct{}

// RegisterServices registers all catalog services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, catalogDI.Backend, func(sr di.ServiceRegistry) app.Backend {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		client, err := backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: cfg.Backend.RequestTimeout,
		}, log)
		if err != nil {
			panic("failed to create backend client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, catalogDI.CatalogService, func(sr di.ServiceRegistry) *app.CatalogService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		registry := sr.Get(monolith.ServiceAssetRegistry).(*asset.Registry)

		return app.NewCatalogService(
			catalogDI.GetBackend(sr),
			pricingDI.GetPriceService(sr),
			registry,
			cfg.Ethereum.ChainID,
			log,
		)
	})

	return nil
}

// Startup initializes the catalog module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	_ = catalogDI.GetCatalogService(mono.Services())
	mono.Logger().Info(ctx, "catalog module started", "backend", mono.Config().Backend.BaseURL)
	return nil
}
