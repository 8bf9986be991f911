package ethereum

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/etfkit/business/blockchain/app"
	"github.com/fd1az/etfkit/business/blockchain/domain"
	"github.com/fd1az/etfkit/internal/logger"
)

// BlockNumberer returns the latest block number. *RPCClient satisfies it.
type BlockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// HeadWatcher polls the chain head. Each new head invalidates the gas price
// cache so prices follow blocks; the observed head feeds readiness checks.
type HeadWatcher struct {
	source   BlockNumberer
	oracle   app.GasOracle
	interval time.Duration
	chainID  uint64
	logger   logger.LoggerInterface

	mu     sync.RWMutex
	status domain.HeadStatus

	tracer    trace.Tracer
	newHeads  metric.Int64Counter
	pollFails metric.Int64Counter
	now       func() time.Time
}

var _ app.HeadSource = (*HeadWatcher)(nil)

// NewHeadWatcher creates a watcher polling every interval. oracle may be nil.
func NewHeadWatcher(source BlockNumberer, oracle app.GasOracle, chainID uint64, interval time.Duration, log logger.LoggerInterface) (*HeadWatcher, error) {
	meter := otel.Meter(meterName)

	newHeads, err := meter.Int64Counter("eth_heads_observed_total",
		metric.WithDescription("New chain heads observed"),
		metric.WithUnit("{block}"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	pollFails, err := meter.Int64Counter("eth_head_poll_errors_total",
		metric.WithDescription("Failed head polls"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return &HeadWatcher{
		source:    source,
		oracle:    oracle,
		interval:  interval,
		chainID:   chainID,
		logger:    log,
		status:    domain.HeadStatus{ChainID: chainID},
		tracer:    otel.Tracer(tracerName),
		newHeads:  newHeads,
		pollFails: pollFails,
		now:       time.Now,
	}, nil
}

// Run polls until ctx is done. It always returns nil.
func (w *HeadWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info(ctx, "head watcher started", "interval", w.interval.String(), "chain_id", w.chainID)

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "head watcher stopped")
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll fetches the head once.
func (w *HeadWatcher) Poll(ctx context.Context) {
	ctx, span := w.tracer.Start(ctx, "eth.poll.head")
	defer span.End()

	number, err := w.source.BlockNumber(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		w.pollFails.Add(ctx, 1)

		w.mu.Lock()
		w.status.Failures++
		failures := w.status.Failures
		w.mu.Unlock()

		w.logger.Warn(ctx, "head poll failed", "error", err, "consecutive_failures", failures)
		return
	}

	span.SetAttributes(attribute.Int64("block_number", int64(number)))
	span.SetStatus(codes.Ok, "polled")

	w.Observe(ctx, number)
}

// Observe records a head seen by polling or by a subscription. Heads at or
// below the current one only refresh the observation time.
func (w *HeadWatcher) Observe(ctx context.Context, number uint64) {
	w.mu.Lock()
	isNew := number > w.status.Number
	if isNew {
		w.status.Number = number
	}
	w.status.ObservedAt = w.now()
	w.status.Failures = 0
	w.mu.Unlock()

	if !isNew {
		return
	}

	w.newHeads.Add(ctx, 1)
	if w.oracle != nil {
		w.oracle.Invalidate(ctx)
	}
	w.logger.Debug(ctx, "new head", "number", number)
}

// Status returns the last observed head.
func (w *HeadWatcher) Status() domain.HeadStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Check is a readiness probe: healthy while a head was seen within three
// poll intervals.
func (w *HeadWatcher) Check(_ context.Context) (bool, string) {
	s := w.Status()
	if !s.Fresh(w.now(), 3*w.interval) {
		return false, fmt.Sprintf("no head observed recently (last block %d, failures %d)", s.Number, s.Failures)
	}
	return true, fmt.Sprintf("block %d", s.Number)
}
