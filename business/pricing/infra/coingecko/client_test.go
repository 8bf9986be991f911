package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/logger"
)

const marketsJSON = `[
	{"id":"ethereum","symbol":"eth","name":"Ethereum","image":"https://img/eth.png","current_price":2000.5,"market_cap":240000000000,"last_updated":"2024-05-01T12:00:00.000Z"},
	{"id":"usd-coin","symbol":"usdc","name":"USDC","image":"https://img/usdc.png","current_price":0.9998,"market_cap":33000000000,"last_updated":"2024-05-01T12:00:00.000Z"},
	{"id":"dead-coin","symbol":"eth","name":"Dead","image":"","current_price":null,"market_cap":null,"last_updated":null}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerMinute = 6000
	cfg.InitialBackoff = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := NewClient(cfg, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestFetchMarkets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, marketsEndpoint, r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "eth,usdc", r.URL.Query().Get("symbols"))
		assert.Equal(t, "demo-key", r.Header.Get(apiKeyHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(marketsJSON))
	}, func(cfg *Config) { cfg.APIKey = "demo-key" })

	markets, err := c.FetchMarkets(context.Background(), []string{"eth", "usdc"})
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "ethereum", markets[0].ID)
	assert.True(t, markets[0].Price.Equal(decimal.RequireFromString("2000.5")))
	assert.Equal(t, "https://img/usdc.png", markets[1].Image)
	assert.False(t, markets[1].LastUpdated.IsZero())
}

func TestFetchMarkets_NoAPIKeyHeaderByDefault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(apiKeyHeader))
		_, _ = w.Write([]byte(`[]`))
	}, nil)

	markets, err := c.FetchMarkets(context.Background(), []string{"eth"})
	require.NoError(t, err)
	assert.Empty(t, markets)
}

func TestFetchMarkets_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(marketsJSON))
	}, nil)

	markets, err := c.FetchMarkets(context.Background(), []string{"eth"})
	require.NoError(t, err)
	assert.Len(t, markets, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchMarkets_RateLimitedAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}, func(cfg *Config) { cfg.MaxRetries = 2 })

	_, err := c.FetchMarkets(context.Background(), []string{"eth"})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePriceRateLimited))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchMarkets_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid vs_currency"}`))
	}, nil)

	_, err := c.FetchMarkets(context.Background(), []string{"eth"})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodePriceFetchFailed))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchMarkets_InvalidSymbols(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}, nil)

	_, err := c.FetchMarkets(context.Background(), []string{"eth", "a,b"})
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidSymbols))

	markets, err := c.FetchMarkets(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, markets)
}
