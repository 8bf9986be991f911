// Package monolith wires the shared infrastructure every bounded context
// needs and drives module registration and startup.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/fd1az/etfkit/internal/asset"
	"github.com/fd1az/etfkit/internal/config"
	"github.com/fd1az/etfkit/internal/di"
	"github.com/fd1az/etfkit/internal/logger"
)

// Service names for the shared infrastructure in the container.
const (
	ServiceConfig        = "config"
	ServiceLogger        = "logger"
	ServiceEthClient     = "ethClient"
	ServiceRedis         = "redis"
	ServiceAssetRegistry = "assetRegistry"
)

// Monolith is what a module sees of the process at startup.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	// EthClient is nil without a node URL.
	EthClient() *ethclient.Client
	// Redis is nil without a redis address.
	Redis() *redis.Client
	AssetRegistry() *asset.Registry
	Services() di.ServiceRegistry
	// OnClose registers teardown run by Close, last registered first.
	OnClose(fn func() error)
}

// Module is one bounded context.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// App is the Monolith implementation owned by main.
type App struct {
	cfg      *config.Config
	log      logger.LoggerInterface
	eth      *ethclient.Client
	rdb      *redis.Client
	registry *asset.Registry
	services di.Container
	teardown []func() error
}

var _ Monolith = (*App)(nil)

// New connects what cfg asks for. Nothing is dialed for an unset node or
// redis address, so offline commands work without either.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      log,
		registry: asset.DefaultRegistry(),
		services: di.NewContainer(),
	}

	if url := cfg.Ethereum.HTTPURL; url != "" {
		eth, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("dial ethereum node: %w", err)
		}
		a.eth = eth
		a.OnClose(func() error { eth.Close(); return nil })
	}

	if cfg.Redis.Enabled() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.OnClose(a.rdb.Close)
	}

	for name, svc := range map[string]any{
		ServiceConfig:        cfg,
		ServiceLogger:        log,
		ServiceEthClient:     a.eth,
		ServiceRedis:         a.rdb,
		ServiceAssetRegistry: a.registry,
	} {
		a.services.Register(name, svc)
	}
	return a, nil
}

func (a *App) Config() *config.Config         { return a.cfg }
func (a *App) Logger() logger.LoggerInterface { return a.log }
func (a *App) EthClient() *ethclient.Client   { return a.eth }
func (a *App) Redis() *redis.Client           { return a.rdb }
func (a *App) AssetRegistry() *asset.Registry { return a.registry }
func (a *App) Services() di.ServiceRegistry   { return a.services }
func (a *App) Container() di.Container        { return a.services }
func (a *App) OnClose(fn func() error)        { a.teardown = append(a.teardown, fn) }

// RegisterModules registers every module before any of them starts, so a
// Startup can resolve services from modules listed after it.
func (a *App) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.services); err != nil {
			return fmt.Errorf("register %T: %w", m, err)
		}
	}
	return nil
}

func (a *App) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return fmt.Errorf("start %T: %w", m, err)
		}
	}
	return nil
}

// Close runs the teardown list once and joins every failure.
func (a *App) Close() error {
	var err error
	for i := len(a.teardown) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.teardown[i]())
	}
	a.teardown = nil
	return err
}
