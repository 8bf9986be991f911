// Package ratelimit keeps outbound calls inside a provider's published
// per-minute quota.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fd1az/etfkit/internal/apperror"
)

// Limiter is a token bucket refilled at a per-minute rate. The burst is a
// tenth of the budget, at least one. A provider that answers 429 can freeze
// the bucket with Penalize.
type Limiter struct {
	bucket *rate.Limiter

	mu     sync.Mutex
	frozen time.Time
	now    func() time.Time
}

func New(requestsPerMinute int) *Limiter {
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), max(requestsPerMinute/10, 1)),
		now:    time.Now,
	}
}

// Penalize stops every caller for d. Overlapping penalties keep the later
// deadline.
func (l *Limiter) Penalize(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(d); until.After(l.frozen) {
		l.frozen = until
	}
}

func (l *Limiter) remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frozen.Sub(l.now())
}

// Wait blocks for a penalty to lapse and then for a token. Cancellation
// surfaces as CodePriceRateLimited.
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.remaining(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return apperror.New(apperror.CodePriceRateLimited, apperror.WithCause(ctx.Err()))
		case <-t.C:
		}
	}
	if err := l.bucket.Wait(ctx); err != nil {
		return apperror.New(apperror.CodePriceRateLimited, apperror.WithCause(err))
	}
	return nil
}

// Allow takes a token without blocking.
func (l *Limiter) Allow() bool {
	return l.remaining() <= 0 && l.bucket.Allow()
}
