package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/apperror"
)

// ErrSuperseded is the cause of CodeEstimationSuperseded errors.
var ErrSuperseded = errors.New("etf: estimation superseded by a newer request")

// TrackKey scopes estimation sequencing, e.g. one open trade form.
func TrackKey(session string, intent domain.Intent) string {
	return fmt.Sprintf("%s/%s/%s", session, intent.Vault.Hex(), intent.Action)
}

type slot struct {
	seq      uint64
	cancel   context.CancelFunc
	latest   *domain.EstimationResult
	touched  time.Time
	inFlight int
}

// Tracker orders overlapping estimations per key. Every call takes the
// next sequence number and cancels the call it replaces; a result that
// completes after a newer call was issued is discarded with ErrSuperseded.
type Tracker struct {
	estimator Estimator

	mu    sync.Mutex
	slots map[string]*slot
	now   func() time.Time
}

// NewTracker creates a tracker over estimator.
func NewTracker(estimator Estimator) *Tracker {
	return &Tracker{
		estimator: estimator,
		slots:     make(map[string]*slot),
		now:       time.Now,
	}
}

// Estimate runs a sequenced estimation for key.
func (t *Tracker) Estimate(ctx context.Context, key string, intent domain.Intent) (*domain.EstimationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.mu.Lock()
	s, ok := t.slots[key]
	if !ok {
		s = &slot{}
		t.slots[key] = s
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.touched = t.now()
	s.inFlight++
	t.mu.Unlock()

	result, err := t.estimator.EstimateOutput(ctx, intent)

	t.mu.Lock()
	defer t.mu.Unlock()

	s.inFlight--
	if s.seq != seq {
		return nil, apperror.New(apperror.CodeEstimationSuperseded,
			apperror.WithCause(ErrSuperseded),
			apperror.WithContext(fmt.Sprintf("key=%s seq=%d latest=%d", key, seq, s.seq)))
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}

	result = result.WithSequence(seq)
	s.latest = result
	return result, nil
}

// Latest returns the newest accepted result for key.
func (t *Tracker) Latest(key string) (*domain.EstimationResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.slots[key]
	if !ok || s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

// Sequence returns the last sequence number issued for key.
func (t *Tracker) Sequence(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.slots[key]; ok {
		return s.seq
	}
	return 0
}

// Forget cancels any in-flight call for key and drops its state. A call
// still running on the dropped slot ends with ErrSuperseded.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.slots[key]; ok {
		if s.cancel != nil {
			s.cancel()
		}
		s.seq++
		delete(t.slots, key)
	}
}

// Prune drops idle keys untouched for maxIdle and returns how many were
// removed.
func (t *Tracker) Prune(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-maxIdle)
	removed := 0
	for key, s := range t.slots {
		if s.inFlight == 0 && s.touched.Before(cutoff) {
			delete(t.slots, key)
			removed++
		}
	}
	return removed
}

// Run prunes idle keys every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Prune(maxIdle)
		}
	}
}
