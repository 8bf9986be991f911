// Package ethereum adapts a JSON-RPC node to the blockchain ports: gas
// pricing, raw contract calls and new-head detection.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/etfkit/business/blockchain/app"
	"github.com/fd1az/etfkit/business/blockchain/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/cache"
	"github.com/fd1az/etfkit/internal/circuitbreaker"
	"github.com/fd1az/etfkit/internal/logger"
)

const (
	tracerName = "github.com/fd1az/etfkit/business/blockchain/infra/ethereum"
	meterName  = tracerName

	latestPrice = "latest"
)

// GasOracleConfig tunes GasOracle.
type GasOracleConfig struct {
	// CacheTTL is how long a price is reused, about one block.
	CacheTTL time.Duration
	// MaxGasPrice caps suggestions; nil leaves them uncapped.
	MaxGasPrice *big.Int
	// BufferPct pads gas estimates.
	BufferPct uint64
}

func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{CacheTTL: 12 * time.Second, BufferPct: 20}
}

type gasInstruments struct {
	lookups   metric.Int64Counter
	estimates metric.Int64Counter
	gwei      metric.Float64Gauge
}

func newGasInstruments() (gasInstruments, error) {
	meter := otel.Meter(meterName)
	var (
		inst gasInstruments
		err  error
	)
	if inst.lookups, err = meter.Int64Counter("gas_price_lookups_total",
		metric.WithDescription("Gas price reads by result: hit, fetched or error")); err != nil {
		return inst, err
	}
	if inst.estimates, err = meter.Int64Counter("gas_estimates_total",
		metric.WithDescription("eth_estimateGas calls by result")); err != nil {
		return inst, err
	}
	inst.gwei, err = meter.Float64Gauge("gas_price_gwei",
		metric.WithDescription("Last gas price served"), metric.WithUnit("gwei"))
	return inst, err
}

func result(r string) metric.AddOption {
	return metric.WithAttributes(attribute.String("result", r))
}

// GasOracle implements app.GasOracle. Prices are cached per block and
// concurrent misses share one node call.
type GasOracle struct {
	cfg    GasOracleConfig
	logger logger.LoggerInterface
	reader app.ChainReader

	prices  *cache.Cache[string, *domain.GasPrice]
	breaker *circuitbreaker.CircuitBreaker[*big.Int]
	flight  singleflight.Group

	tracer trace.Tracer
	inst   gasInstruments
	now    func() time.Time
}

var _ app.GasOracle = (*GasOracle)(nil)

func NewGasOracle(reader app.ChainReader, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	inst, err := newGasInstruments()
	if err != nil {
		return nil, fmt.Errorf("gas oracle metrics: %w", err)
	}
	return &GasOracle{
		cfg:     cfg,
		logger:  log,
		reader:  reader,
		prices:  cache.New[string, *domain.GasPrice](time.Minute),
		breaker: circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:  otel.Tracer(tracerName),
		inst:    inst,
		now:     time.Now,
	}, nil
}

// GetGasPrice returns the node's suggestion, capped at MaxGasPrice.
func (g *GasOracle) GetGasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price")
	defer span.End()

	if p, ok := g.prices.Get(ctx, latestPrice); ok {
		g.inst.lookups.Add(ctx, 1, result("hit"))
		span.AddEvent("cache_hit")
		return p, nil
	}

	v, err, shared := g.flight.Do(latestPrice, func() (any, error) {
		// detached: callers joining the flight outlive the one that started it
		return g.fetch(context.WithoutCancel(ctx))
	})
	span.SetAttributes(attribute.Bool("shared", shared))
	if err != nil {
		g.inst.lookups.Add(ctx, 1, result("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	p := v.(*domain.GasPrice)
	g.inst.lookups.Add(ctx, 1, result("fetched"))
	span.SetAttributes(attribute.String("wei", p.Wei.String()), attribute.Bool("capped", p.Capped))
	return p, nil
}

func (g *GasOracle) fetch(ctx context.Context) (*domain.GasPrice, error) {
	// A flight that started after another finished finds its result here.
	if p, ok := g.prices.Get(ctx, latestPrice); ok {
		return p, nil
	}

	wei, err := g.breaker.Execute(func() (*big.Int, error) {
		return g.reader.SuggestGasPrice(ctx)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_gasPrice"))
	}

	p := domain.NewGasPrice(wei, g.now())
	if limit := g.cfg.MaxGasPrice; limit != nil && wei.Cmp(limit) > 0 {
		g.logger.Warn(ctx, "gas price above cap", "wei", wei.String(), "cap", limit.String())
		p = domain.NewGasPrice(limit, p.ObservedAt)
		p.Capped = true
	}

	g.prices.Set(ctx, latestPrice, p, g.cfg.CacheTTL)
	gwei, _ := p.Gwei().Float64()
	g.inst.gwei.Record(ctx, gwei)
	return p, nil
}

// EstimateGas runs eth_estimateGas and adds BufferPct on top.
func (g *GasOracle) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	target := "create"
	if msg.To != nil {
		target = msg.To.Hex()
	}
	ctx, span := g.tracer.Start(ctx, "gas.estimate", trace.WithAttributes(
		attribute.String("to", target),
		attribute.Int("calldata_bytes", len(msg.Data)),
	))
	defer span.End()

	raw, err := g.reader.EstimateGas(ctx, msg)
	if err != nil {
		g.inst.estimates.Add(ctx, 1, result("error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext("eth_estimateGas to "+target))
	}

	padded := domain.PadGas(raw, g.cfg.BufferPct)
	g.inst.estimates.Add(ctx, 1, result("ok"))
	span.SetAttributes(attribute.Int64("gas", int64(raw)), attribute.Int64("gas_padded", int64(padded)))
	return padded, nil
}

// Invalidate forgets the cached price; HeadWatcher calls it on each block.
func (g *GasOracle) Invalidate(ctx context.Context) {
	g.prices.Delete(ctx, latestPrice)
}

func (g *GasOracle) Close() error {
	g.prices.Close()
	return nil
}
