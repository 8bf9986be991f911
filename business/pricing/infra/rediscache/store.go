// Package rediscache provides a redis-backed shared price store.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/etfkit/business/pricing/app"
	"github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/apperror"
)

// DefaultPrefix namespaces price keys.
const DefaultPrefix = "etf:price:"

// Store keeps token data as JSON strings under prefix+symbol.
type Store struct {
	client redis.Cmdable
	prefix string
}

var _ app.Store = (*Store)(nil)

// NewStore creates a store. An empty prefix uses DefaultPrefix.
func NewStore(client redis.Cmdable, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(symbol string) string {
	return s.prefix + domain.NormalizeSymbol(symbol)
}

// Get returns the stored entry. A missing key is not an error.
func (s *Store) Get(ctx context.Context, symbol string) (domain.TokenData, bool, error) {
	raw, err := s.client.Get(ctx, s.key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TokenData{}, false, nil
	}
	if err != nil {
		return domain.TokenData{}, false, apperror.New(apperror.CodeCacheError,
			apperror.WithCause(err),
			apperror.WithContext("redis get "+symbol))
	}

	var data domain.TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.TokenData{}, false, apperror.New(apperror.CodeCacheError,
			apperror.WithCause(err),
			apperror.WithContext("decode cached price "+symbol))
	}
	return data, true, nil
}

// Set stores data for ttl. A non-positive ttl keeps the key forever.
func (s *Store) Set(ctx context.Context, symbol string, data domain.TokenData, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperror.New(apperror.CodeCacheError, apperror.WithCause(err))
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(symbol), raw, ttl).Err(); err != nil {
		return apperror.New(apperror.CodeCacheError,
			apperror.WithCause(err),
			apperror.WithContext("redis set "+symbol))
	}
	return nil
}

// Ping checks the connection, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
