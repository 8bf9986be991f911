package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/cache"
	"github.com/fd1az/etfkit/internal/logger"
)

const (
	tracerName = "github.com/fd1az/etfkit/business/pricing/app"
	meterName  = "github.com/fd1az/etfkit/business/pricing/app"
)

// Config configures the price service.
type Config struct {
	// CacheTTL bounds how long a price is served from memory.
	CacheTTL time.Duration
	// StaleTTL bounds how long the store keeps a price for fallback.
	StaleTTL time.Duration
	// StrictSymbols disables prefix/suffix symbol heuristics.
	StrictSymbols bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL: time.Minute,
		StaleTTL: 24 * time.Hour,
	}
}

type priceMetrics struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	fetches       metric.Int64Counter
	coalesced     metric.Int64Counter
	staleFallback metric.Int64Counter
}

// PriceService resolves token prices and logos by symbol. Misses are
// fetched in one upstream request per distinct symbol set, and concurrent
// requests for the same set share that request.
type PriceService struct {
	source  MarketDataSource
	cache   *cache.Cache[string, domain.TokenData]
	store   Store
	matcher domain.Matcher
	config  Config
	logger  logger.LoggerInterface

	group singleflight.Group

	tracer  trace.Tracer
	metrics *priceMetrics
	now     func() time.Time
}

// NewPriceService creates a price service. store may be nil.
func NewPriceService(
	source MarketDataSource,
	c *cache.Cache[string, domain.TokenData],
	store Store,
	cfg Config,
	log logger.LoggerInterface,
) (*PriceService, error) {
	s := &PriceService{
		source:  source,
		cache:   c,
		store:   store,
		matcher: domain.Matcher{Strict: cfg.StrictSymbols},
		config:  cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *PriceService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &priceMetrics{}

	s.metrics.cacheHits, err = meter.Int64Counter(
		"price_cache_hits_total",
		metric.WithDescription("Symbols served from the price cache"),
		metric.WithUnit("{symbol}"),
	)
	if err != nil {
		return err
	}

	s.metrics.cacheMisses, err = meter.Int64Counter(
		"price_cache_misses_total",
		metric.WithDescription("Symbols missing from the price cache"),
		metric.WithUnit("{symbol}"),
	)
	if err != nil {
		return err
	}

	s.metrics.fetches, err = meter.Int64Counter(
		"price_upstream_fetches_total",
		metric.WithDescription("Upstream market data requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.coalesced, err = meter.Int64Counter(
		"price_coalesced_requests_total",
		metric.WithDescription("Callers that shared an in-flight upstream request"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.staleFallback, err = meter.Int64Counter(
		"price_stale_fallback_total",
		metric.WithDescription("Symbols served from the stale store after an upstream failure"),
		metric.WithUnit("{symbol}"),
	)
	return err
}

// FetchTokenData returns price data keyed by the caller's original symbols.
// Symbols the source does not know are absent from the result.
func (s *PriceService) FetchTokenData(ctx context.Context, symbols []string) (map[string]domain.TokenData, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.fetch_token_data",
		trace.WithAttributes(attribute.Int("symbols", len(symbols))),
	)
	defer span.End()

	result := make(map[string]domain.TokenData, len(symbols))
	wanted := make(map[string][]string)

	for _, sym := range symbols {
		n := domain.NormalizeSymbol(sym)
		if n == "" {
			continue
		}
		if data, ok := s.lookup(ctx, sym); ok {
			result[sym] = data
			s.metrics.cacheHits.Add(ctx, 1)
			continue
		}
		wanted[n] = append(wanted[n], sym)
	}

	if len(wanted) == 0 {
		span.SetStatus(codes.Ok, "cache")
		return result, nil
	}

	keys := make([]string, 0, len(wanted))
	for n := range wanted {
		keys = append(keys, n)
	}
	key := domain.SortedKey(keys)
	s.metrics.cacheMisses.Add(ctx, int64(len(wanted)))
	span.SetAttributes(attribute.String("fetch_key", key))

	v, err, shared := s.group.Do(key, func() (any, error) {
		// detached so one caller's cancellation does not fail the others
		return s.fetch(context.WithoutCancel(ctx), keys)
	})
	if shared {
		s.metrics.coalesced.Add(ctx, 1)
	}

	if err != nil {
		span.RecordError(err)
		served := s.fallback(ctx, wanted, result)
		if served == 0 {
			span.SetStatus(codes.Error, "upstream failed")
			return nil, err
		}
		s.logger.Warn(ctx, "price source failed, serving stale prices", "served", served, "error", err)
		span.SetStatus(codes.Ok, "stale")
		return result, nil
	}

	fetched := v.(map[string]domain.TokenData)
	for n, originals := range wanted {
		data, ok := fetched[n]
		if !ok {
			continue
		}
		for _, sym := range originals {
			result[sym] = data
		}
	}

	span.SetAttributes(attribute.Int("resolved", len(result)))
	span.SetStatus(codes.Ok, "fetched")
	return result, nil
}

// lookup checks the cache under each symbol variant.
func (s *PriceService) lookup(ctx context.Context, symbol string) (domain.TokenData, bool) {
	for _, v := range domain.SymbolVariants(symbol) {
		if data, ok := s.cache.Get(ctx, v); ok {
			return data, true
		}
	}
	return domain.TokenData{}, false
}

// fetch issues one upstream request for keys (plus their variants) and
// caches every match.
func (s *PriceService) fetch(ctx context.Context, keys []string) (map[string]domain.TokenData, error) {
	s.metrics.fetches.Add(ctx, 1)

	query := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		for _, v := range domain.SymbolVariants(k) {
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				query = append(query, v)
			}
		}
	}

	markets, err := s.source.FetchMarkets(ctx, query)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make(map[string]domain.TokenData, len(keys))
	for _, k := range keys {
		m, ok := s.matcher.Best(k, markets)
		if !ok {
			s.logger.Debug(ctx, "no market for symbol", "symbol", k)
			continue
		}
		data := m.TokenData(now)
		out[k] = data

		s.cache.Set(ctx, k, data, s.config.CacheTTL)
		if s.store != nil {
			if err := s.store.Set(ctx, k, data, s.config.StaleTTL); err != nil {
				s.logger.Warn(ctx, "price store write failed", "symbol", k, "error", err)
			}
		}
	}
	return out, nil
}

// fallback fills result from the store and returns how many symbols it
// served.
func (s *PriceService) fallback(ctx context.Context, wanted map[string][]string, result map[string]domain.TokenData) int {
	if s.store == nil {
		return 0
	}

	served := 0
	for n, originals := range wanted {
		data, ok, err := s.store.Get(ctx, n)
		if err != nil {
			s.logger.Warn(ctx, "price store read failed", "symbol", n, "error", err)
			continue
		}
		if !ok {
			continue
		}
		for _, sym := range originals {
			result[sym] = data
		}
		served++
	}
	s.metrics.staleFallback.Add(ctx, int64(served))
	return served
}

// Invalidate drops cached prices for symbols.
func (s *PriceService) Invalidate(ctx context.Context, symbols ...string) {
	for _, sym := range symbols {
		for _, v := range domain.SymbolVariants(sym) {
			s.cache.Delete(ctx, v)
		}
	}
}
