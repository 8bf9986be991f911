// Package app contains the price cache service and its ports.
package app

import (
	"context"
	"time"

	"github.com/fd1az/etfkit/business/pricing/domain"
)

//go:generate mockgen -source=ports.go -destination=../mock/ports_mock.go -package=mock

// MarketDataSource fetches USD market data for a set of symbols in one
// upstream request.
type MarketDataSource interface {
	FetchMarkets(ctx context.Context, symbols []string) ([]domain.Market, error)
}

// Store is an optional shared second cache tier. Entries outlive the
// in-process cache and serve as stale fallback when the source fails.
type Store interface {
	Get(ctx context.Context, symbol string) (domain.TokenData, bool, error)
	Set(ctx context.Context, symbol string, data domain.TokenData, ttl time.Duration) error
}
