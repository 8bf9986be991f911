package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fd1az/etfkit/business/blockchain"
	"github.com/fd1az/etfkit/business/catalog"
	"github.com/fd1az/etfkit/business/etf"
	"github.com/fd1az/etfkit/business/pricing"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/monolith"
)

// container is the monolith as seen by main.
type container interface {
	monolith.Monolith
	Container() di.Container
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

type appRuntime struct {
	cfg  *config.Config
	log  *logger.Logger
	mono container
}

func loadConfig(opts *rootOptions) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	return cfg, log, nil
}

// modulesFor lists modules in dependency order. Chain modules are only
// included when a node is configured.
func modulesFor(cfg *config.Config) []monolith.Module {
	modules := []monolith.Module{
		&pricing.Module{},
		&catalog.Module{}, // depends on pricing
	}
	if cfg.Ethereum.HTTPURL != "" {
		modules = append(modules,
			&blockchain.Module{},
			&etf.Module{}, // depends on blockchain
		)
	}
	return modules
}

// startApp builds the container and starts every configured module.
// register runs before module registration, for shared services such as
// the health server.
func startApp(ctx context.Context, opts *rootOptions, needChain bool, register func(di.Container)) (*appRuntime, error) {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if needChain {
		if err := cfg.RequireChain(); err != nil {
			return nil, err
		}
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}
	if register != nil {
		register(mono.Container())
	}

	modules := modulesFor(cfg)
	if err := mono.RegisterModules(modules...); err != nil {
		_ = mono.Close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		_ = mono.Close()
		return nil, fmt.Errorf("failed to start modules: %w", err)
	}

	return &appRuntime{cfg: cfg, log: log, mono: mono}, nil
}

func (r *appRuntime) hasChain() bool {
	return r.mono.EthClient() != nil
}

func (r *appRuntime) Close() error {
	err := r.mono.Close()
	_ = r.log.Sync()
	return err
}
