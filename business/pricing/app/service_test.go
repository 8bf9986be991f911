package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/business/pricing/mock"
	"github.com/fd1az/etfkit/internal/cache"
	"github.com/fd1az/etfkit/internal/logger"
)

func market(symbol, price string, capUSD int64) domain.Market {
	return domain.Market{
		ID:        symbol,
		Symbol:    symbol,
		Image:     "https://img/" + symbol + ".png",
		Price:     decimal.RequireFromString(price),
		MarketCap: decimal.NewFromInt(capUSD),
	}
}

func newService(t *testing.T, source MarketDataSource, store Store, cfg Config) *PriceService {
	t.Helper()
	c := cache.New[string, domain.TokenData](time.Minute)
	t.Cleanup(c.Close)

	s, err := NewPriceService(source, c, store, cfg, logger.NewNop())
	require.NoError(t, err)
	return s
}

// countingSource blocks every call until release is closed.
type countingSource struct {
	calls   atomic.Int32
	release chan struct{}
	markets []domain.Market
}

func (s *countingSource) FetchMarkets(ctx context.Context, _ []string) ([]domain.Market, error) {
	s.calls.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.markets, nil
}

func TestFetchTokenData_CoalescesConcurrentRequests(t *testing.T) {
	src := &countingSource{
		release: make(chan struct{}),
		markets: []domain.Market{market("eth", "2000", 100), market("usdc", "1", 50)},
	}
	s := newService(t, src, nil, DefaultConfig())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]map[string]domain.TokenData, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// same set, different order and case
			syms := []string{"ETH", "usdc"}
			if i%2 == 1 {
				syms = []string{"USDC", "eth"}
			}
			results[i], errs[i] = s.FetchTokenData(context.Background(), syms)
		}(i)
	}

	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
	assert.True(t, results[0]["ETH"].Price.Equal(decimal.NewFromInt(2000)))
	assert.True(t, results[1]["USDC"].Price.Equal(decimal.NewFromInt(1)))
}

func TestFetchTokenData_ServesFromCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	s := newService(t, src, nil, DefaultConfig())

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).
		Return([]domain.Market{market("eth", "2000", 1)}, nil).Times(1)

	ctx := context.Background()
	_, err := s.FetchTokenData(ctx, []string{"ETH"})
	require.NoError(t, err)

	got, err := s.FetchTokenData(ctx, []string{"eth", "WETH"})
	require.NoError(t, err)
	assert.Contains(t, got, "eth")
	assert.Contains(t, got, "WETH")
}

func TestFetchTokenData_FetchesOnlyMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	s := newService(t, src, nil, DefaultConfig())

	gomock.InOrder(
		src.EXPECT().FetchMarkets(gomock.Any(), []string{"eth"}).
			Return([]domain.Market{market("eth", "2000", 1)}, nil),
		src.EXPECT().FetchMarkets(gomock.Any(), []string{"dai"}).
			Return([]domain.Market{market("dai", "1.0001", 1)}, nil),
	)

	ctx := context.Background()
	_, err := s.FetchTokenData(ctx, []string{"ETH"})
	require.NoError(t, err)

	got, err := s.FetchTokenData(ctx, []string{"ETH", "DAI"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFetchTokenData_QueriesVariantsAndMapsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	s := newService(t, src, nil, DefaultConfig())

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, symbols []string) ([]domain.Market, error) {
			assert.ElementsMatch(t, []string{"nope", "usdc.e", "usdc", "weth", "eth"}, symbols)
			return []domain.Market{market("usdc", "1", 10), market("eth", "2000", 10)}, nil
		})

	got, err := s.FetchTokenData(context.Background(), []string{"USDC.e", "wETH", "NOPE"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "usdc", got["USDC.e"].Symbol)
	assert.Equal(t, "eth", got["wETH"].Symbol)
	assert.NotContains(t, got, "NOPE")
}

func TestFetchTokenData_SymbolWithComma(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	s := newService(t, src, nil, DefaultConfig())

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, symbols []string) ([]domain.Market, error) {
			assert.Contains(t, symbols, "lp,v2")
			return []domain.Market{market("lp,v2", "7", 10)}, nil
		})

	got, err := s.FetchTokenData(context.Background(), []string{"LP,V2"})
	require.NoError(t, err)
	require.Contains(t, got, "LP,V2")
	assert.True(t, got["LP,V2"].Price.Equal(decimal.NewFromInt(7)))
}

func TestFetchTokenData_StrictSkipsHeuristics(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	cfg := DefaultConfig()
	cfg.StrictSymbols = true
	s := newService(t, src, nil, cfg)

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).
		Return([]domain.Market{market("steth", "1990", 10)}, nil)

	got, err := s.FetchTokenData(context.Background(), []string{"ETH"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetchTokenData_StaleFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	store := mock.NewMockStore(ctrl)
	s := newService(t, src, store, DefaultConfig())

	stale := domain.TokenData{Symbol: "eth", Price: decimal.NewFromInt(1900), UpdatedAt: time.Now().Add(-time.Hour)}

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).Return(nil, errors.New("coingecko down"))
	store.EXPECT().Get(gomock.Any(), "eth").Return(stale, true, nil)
	store.EXPECT().Get(gomock.Any(), "dai").Return(domain.TokenData{}, false, nil)

	got, err := s.FetchTokenData(context.Background(), []string{"ETH", "DAI"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.True(t, got["ETH"].Price.Equal(decimal.NewFromInt(1900)))
}

func TestFetchTokenData_ErrorWithoutFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	store := mock.NewMockStore(ctrl)
	s := newService(t, src, store, DefaultConfig())

	cause := errors.New("coingecko down")
	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).Return(nil, cause)
	store.EXPECT().Get(gomock.Any(), "eth").Return(domain.TokenData{}, false, nil)

	_, err := s.FetchTokenData(context.Background(), []string{"ETH"})
	assert.ErrorIs(t, err, cause)
}

func TestFetchTokenData_WritesStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	store := mock.NewMockStore(ctrl)
	cfg := DefaultConfig()
	s := newService(t, src, store, cfg)

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).Return([]domain.Market{market("eth", "2000", 1)}, nil)
	store.EXPECT().Set(gomock.Any(), "eth", gomock.Any(), cfg.StaleTTL).Return(errors.New("redis down"))

	got, err := s.FetchTokenData(context.Background(), []string{"ETH"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFetchTokenData_EmptyInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newService(t, mock.NewMockMarketDataSource(ctrl), nil, DefaultConfig())

	got, err := s.FetchTokenData(context.Background(), []string{"", "  "})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvalidate(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mock.NewMockMarketDataSource(ctrl)
	s := newService(t, src, nil, DefaultConfig())

	src.EXPECT().FetchMarkets(gomock.Any(), gomock.Any()).
		Return([]domain.Market{market("eth", "2000", 1)}, nil).Times(2)

	ctx := context.Background()
	_, err := s.FetchTokenData(ctx, []string{"ETH"})
	require.NoError(t, err)
	s.Invalidate(ctx, "ETH")
	_, err = s.FetchTokenData(ctx, []string{"ETH"})
	require.NoError(t, err)
}
