// Package coingecko implements app.MarketDataSource over the CoinGecko
// markets API.
package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/etfkit/business/pricing/app"
	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/circuitbreaker"
	"github.com/fd1az/etfkit/internal/httpclient"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/etfkit/business/pricing/infra/coingecko"

	DefaultBaseURL = "https://api.coingecko.com"

	marketsEndpoint = "/api/v3/coins/markets"
	apiKeyHeader    = "x-cg-demo-api-key"

	httpTimeout = 10 * time.Second
	maxPerPage  = 250
)

// Config holds configuration for the CoinGecko client.
type Config struct {
	BaseURL           string
	APIKey            string // optional demo key
	Timeout           time.Duration
	RequestsPerMinute int
	MaxRetries        uint
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
}

// DefaultConfig returns the public API limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           httpTimeout,
		RequestsPerMinute: 30,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
	}
}

// Client fetches USD market data by symbol.
type Client struct {
	client  httpclient.Client
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[[]marketResponse]
	config  Config
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

var _ app.MarketDataSource = (*Client)(nil)

// NewClient creates a new CoinGecko client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}

	tracer := otel.Tracer(tracerName)

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers[apiKeyHeader] = cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("coingecko"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("coingecko")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || apperror.IsCode(err, apperror.CodeInvalidSymbols)
	}

	return &Client{
		client:  client,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cb:      circuitbreaker.New[[]marketResponse](cbCfg),
		config:  cfg,
		logger:  log,
		tracer:  tracer,
	}, nil
}

// marketResponse is one entry of /coins/markets.
type marketResponse struct {
	ID           string              `json:"id"`
	Symbol       string              `json:"symbol"`
	Name         string              `json:"name"`
	Image        string              `json:"image"`
	CurrentPrice decimal.NullDecimal `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
	LastUpdated  time.Time           `json:"last_updated"`
}

// FetchMarkets queries all symbols in a single request. Entries without a
// price are dropped.
func (c *Client) FetchMarkets(ctx context.Context, symbols []string) ([]domain.Market, error) {
	ctx, span := c.tracer.Start(ctx, "coingecko.fetch_markets",
		trace.WithAttributes(attribute.Int("symbols", len(symbols))),
	)
	defer span.End()

	if len(symbols) == 0 {
		return nil, nil
	}
	for _, s := range symbols {
		if strings.TrimSpace(s) == "" || strings.Contains(s, ",") {
			return nil, apperror.New(apperror.CodeInvalidSymbols,
				apperror.WithContext(fmt.Sprintf("invalid symbol %q", s)))
		}
	}

	joined := strings.Join(symbols, ",")
	span.SetAttributes(attribute.String("query", joined))

	raw, err := c.cb.Execute(func() ([]marketResponse, error) {
		return c.fetchWithRetry(ctx, joined)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodePriceFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext("symbols="+joined))
	}

	markets := make([]domain.Market, 0, len(raw))
	for _, m := range raw {
		if !m.CurrentPrice.Valid {
			continue
		}
		markets = append(markets, domain.Market{
			ID:          m.ID,
			Symbol:      m.Symbol,
			Name:        m.Name,
			Image:       m.Image,
			Price:       m.CurrentPrice.Decimal,
			MarketCap:   m.MarketCap.Decimal,
			LastUpdated: m.LastUpdated,
		})
	}

	span.SetAttributes(attribute.Int("markets", len(markets)))
	span.SetStatus(codes.Ok, "fetched")
	c.logger.Debug(ctx, "fetched coingecko markets", "symbols", joined, "markets", len(markets))

	return markets, nil
}

// fetchWithRetry retries 429 and 5xx responses with exponential backoff,
// honouring Retry-After. Everything else fails immediately.
func (c *Client) fetchWithRetry(ctx context.Context, symbols string) ([]marketResponse, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialBackoff
	b.MaxInterval = c.config.InitialBackoff * 10

	operation := func() ([]marketResponse, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		var out []marketResponse
		_, err := c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", "markets")),
		).
			SetQueryParam("vs_currency", "usd").
			SetQueryParam("symbols", symbols).
			SetQueryParam("per_page", strconv.Itoa(maxPerPage)).
			SetResult(&out).
			Get(ctx, marketsEndpoint)
		if err == nil {
			return out, nil
		}

		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.Retryable() {
			if statusErr.RetryAfter > 0 {
				c.limiter.Penalize(statusErr.RetryAfter)
				return nil, backoff.RetryAfter(int(statusErr.RetryAfter.Seconds()))
			}
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	notify := func(err error, d time.Duration) {
		c.logger.Warn(ctx, "coingecko request failed, retrying", "error", err, "backoff", d)
	}

	out, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.config.MaxRetries+1),
		backoff.WithNotify(notify),
	)
	if err != nil {
		var (
			statusErr  *httpclient.StatusError
			retryAfter *backoff.RetryAfterError
		)
		if errors.As(err, &retryAfter) || (errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests) {
			return nil, apperror.New(apperror.CodePriceRateLimited, apperror.WithCause(err))
		}
		return nil, err
	}
	return out, nil
}
