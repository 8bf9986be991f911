// Package blockchain implements chain access: gas pricing, raw JSON-RPC and
// head tracking.
package blockchain

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/etfkit/business/blockchain/app"
	blockchainDI "github.com/fd1az/etfkit/business/blockchain/di"
	"github.com/fd1az/etfkit/business/blockchain/infra/ethereum"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/health"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/monolith"
)

// Module implements the blockchain bounded context. It needs a configured
// node URL.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		client := sr.Get(monolith.ServiceEthClient).(*ethclient.Client)

		oracleCfg := ethereum.DefaultGasOracleConfig()
		oracleCfg.CacheTTL = cfg.Ethereum.GasPriceTTL
		oracleCfg.MaxGasPrice = cfg.Ethereum.MaxGasPriceWei()
		oracleCfg.BufferPct = cfg.Ethereum.GasBufferPct

		oracle, err := ethereum.NewGasOracle(client, oracleCfg, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.RPCClient, func(sr di.ServiceRegistry) *ethereum.RPCClient {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)

		client, err := ethereum.NewRPCClient(cfg.Ethereum.HTTPURL, cfg.Ethereum.CallTimeout)
		if err != nil {
			panic("failed to create rpc client: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, blockchainDI.HeadWatcher, func(sr di.ServiceRegistry) *ethereum.HeadWatcher {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)

		w, err := ethereum.NewHeadWatcher(
			blockchainDI.GetRPCClient(sr),
			blockchainDI.GetGasOracle(sr),
			cfg.Ethereum.ChainID,
			cfg.Ethereum.PollInterval,
			log,
		)
		if err != nil {
			panic("failed to create head watcher: " + err.Error())
		}
		return w
	})

	di.RegisterToken(c, blockchainDI.HeadStream, func(sr di.ServiceRegistry) *ethereum.HeadStream {
		cfg := sr.Get(monolith.ServiceConfig).(*config.Config)
		log := sr.Get(monolith.ServiceLogger).(logger.LoggerInterface)
		if cfg.Ethereum.WSURL == "" {
			return nil
		}

		s, err := ethereum.NewHeadStream(cfg.Ethereum.WSURL, blockchainDI.GetHeadWatcher(sr), log)
		if err != nil {
			panic("failed to create head stream: " + err.Error())
		}
		return s
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetGasOracle(sr), blockchainDI.GetHeadWatcher(sr))
	})

	return nil
}

// Startup verifies the node serves the configured chain and starts the head
// watcher, plus the newHeads stream when a websocket URL is configured.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	if err := cfg.RequireChain(); err != nil || mono.EthClient() == nil {
		return fmt.Errorf("blockchain module: node not configured: %v", err)
	}

	rpc := blockchainDI.GetRPCClient(mono.Services())
	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		log.Error(ctx, "failed to query chain id", "error", err)
	} else if chainID.Uint64() != cfg.Ethereum.ChainID {
		return fmt.Errorf("node serves chain %d, configured chain is %d", chainID.Uint64(), cfg.Ethereum.ChainID)
	}

	watcher := blockchainDI.GetHeadWatcher(mono.Services())
	go func() {
		_ = watcher.Run(ctx)
	}()

	if oracle, ok := blockchainDI.GetGasOracle(mono.Services()).(io.Closer); ok {
		mono.OnClose(oracle.Close)
	}

	if stream := blockchainDI.GetHeadStream(mono.Services()); stream != nil {
		mono.OnClose(stream.Close)
		go func() {
			if err := stream.Run(ctx); err != nil {
				log.Warn(ctx, "head stream unavailable, relying on polling", "error", err)
			}
		}()
	}

	if mono.Services().Has("health") {
		mono.Services().Get("health").(*health.Server).RegisterCheck("chain_head", watcher.Check)
	}

	log.Info(ctx, "blockchain module started", "chain_id", cfg.Ethereum.ChainID)
	return nil
}
