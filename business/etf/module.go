// Package etf implements ETF vault estimation and the factory/vault
// transaction flow.
package etf

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	blockchainDI "github.com/fd1az/etfkit/business/blockchain/di"
	"github.com/fd1az/etfkit/business/etf/app"
	etfDI "github.com/fd1az/etfkit/business/etf/di"
	"github.com/fd1az/etfkit/business/etf/infra/signer"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/monolith"
)

const (
	trackerPruneInterval = time.Minute
	trackerMaxIdle       = 15 * time.Minute
)

// Module implements the etf bounded context. It depends on the blockchain
// module for gas pricing.
type Module struct{}

// RegisterServices registers all etf services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, etfDI.Signer, func(sr di.ServiceRegistry) app.Signer {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		if !cfg.HasSigner() {
			return nil
		}

		s, err := signer.NewKeySigner(cfg.Signer.PrivateKey, cfg.Ethereum.ChainID)
		if err != nil {
			panic("failed to create signer: " + err.Error())
		}
		return s
	})

	di.RegisterToken(c, etfDI.EstimationService, func(sr di.ServiceRegistry) *app.EstimationService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		svc, err := app.NewEstimationService(client, app.EstimationConfig{
			DepositToken: cfg.Contracts.DepositTokenHex(),
			CallTimeout:  cfg.Ethereum.CallTimeout,
		}, log)
		if err != nil {
			panic("failed to create estimation service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, etfDI.Tracker, func(sr di.ServiceRegistry) *app.Tracker {
		return app.NewTracker(etfDI.GetEstimationService(sr))
	})

	di.RegisterToken(c, etfDI.TradeService, func(sr di.ServiceRegistry) *app.TradeService {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		svc, err := app.NewTradeService(
			client,
			blockchainDI.GetGasOracle(sr),
			etfDI.GetSigner(sr),
			app.TradeConfig{
				Factory: cfg.Contracts.FactoryAddressHex(),
				DryRun:  cfg.Signer.DryRun,
			},
			log,
		)
		if err != nil {
			panic("failed to create trade service: " + err.Error())
		}
		return svc
	})

	return nil
}

// Startup reports the signing mode and starts pruning idle estimation keys.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if mono.EthClient() == nil {
		return fmt.Errorf("etf module: node not configured")
	}

	trade := etfDI.GetTradeService(mono.Services())
	if trade.ReadOnly() {
		log.Info(ctx, "etf module running read-only, no signer key configured")
	} else {
		log.Info(ctx, "etf module signing enabled",
			"address", etfDI.GetSigner(mono.Services()).Address().Hex(),
			"dry_run", cfg.Signer.DryRun)
	}

	if cfg.Contracts.FactoryAddress == "" {
		log.Warn(ctx, "no factory address configured, factory operations disabled")
	}

	go etfDI.GetTracker(mono.Services()).Run(ctx, trackerPruneInterval, trackerMaxIdle)

	log.Info(ctx, "etf module started")
	return nil
}
