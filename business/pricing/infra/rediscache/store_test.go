package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/business/pricing/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	return NewStore(client, "etf:test:"+uuid.NewString()+":")
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := domain.TokenData{
		Symbol:    "weth",
		Price:     decimal.RequireFromString("2000.25"),
		Logo:      "https://img/weth.png",
		UpdatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Set(ctx, "WETH", data, time.Minute))

	got, ok, err := s.Get(ctx, " weth ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Price.Equal(data.Price))
	assert.Equal(t, data.Logo, got.Logo)
	assert.True(t, got.UpdatedAt.Equal(data.UpdatedAt))
}

func TestStore_Missing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStore_DefaultPrefix(t *testing.T) {
	s := NewStore(nil, "")
	assert.Equal(t, "etf:price:usdc", s.key("USDC"))
}
