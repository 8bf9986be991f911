package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/business/etf/mock"
	"github.com/fd1az/etfkit/internal/apperror"
)

// scriptedEstimator returns the output stored in the intent amount. Calls
// whose amount is in block wait for release (or ctx when honorCtx is set).
type scriptedEstimator struct {
	block    map[int64]chan struct{}
	started  chan int64
	honorCtx bool
}

func (e *scriptedEstimator) EstimateOutput(ctx context.Context, intent domain.Intent) (*domain.EstimationResult, error) {
	amount := intent.InputAmount.Int64()
	if e.started != nil {
		e.started <- amount
	}
	if ch, ok := e.block[amount]; ok {
		if e.honorCtx {
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else {
			<-ch
		}
	}
	return domain.NewEstimationResult(intent.Action, intent.InputAmount, nil, intent.InputAmount, 0, time.Now()), nil
}

func TestTracker_SequencesAndRecordsLatest(t *testing.T) {
	ctrl := gomock.NewController(t)
	est := mock.NewMockEstimator(ctrl)
	tr := NewTracker(est)

	est.EXPECT().EstimateOutput(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, in domain.Intent) (*domain.EstimationResult, error) {
			return domain.NewEstimationResult(in.Action, in.InputAmount, nil, in.InputAmount, 0, time.Now()), nil
		}).Times(2)

	intent := depositIntent(10, 0)
	key := TrackKey("s1", intent)

	r1, err := tr.Estimate(context.Background(), key, intent)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r1.Sequence())

	intent.InputAmount = big.NewInt(20)
	r2, err := tr.Estimate(context.Background(), key, intent)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r2.Sequence())

	latest, ok := tr.Latest(key)
	require.True(t, ok)
	assert.Equal(t, "20", latest.Output().String())
	assert.Equal(t, uint64(2), tr.Sequence(key))
}

func TestTracker_NewerCallCancelsOlder(t *testing.T) {
	est := &scriptedEstimator{
		block:    map[int64]chan struct{}{1: make(chan struct{})},
		started:  make(chan int64, 2),
		honorCtx: true,
	}
	tr := NewTracker(est)
	key := "form"

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = tr.Estimate(context.Background(), key, depositIntent(1, 0))
	}()
	require.Equal(t, int64(1), <-est.started)

	res, err := tr.Estimate(context.Background(), key, depositIntent(2, 0))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Sequence())

	wg.Wait()
	require.Error(t, slowErr)
	assert.True(t, apperror.IsCode(slowErr, apperror.CodeEstimationSuperseded))
	assert.True(t, errors.Is(slowErr, ErrSuperseded))
}

func TestTracker_StaleSuccessIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	est := &scriptedEstimator{
		block:   map[int64]chan struct{}{1: release},
		started: make(chan int64, 2),
	}
	tr := NewTracker(est)
	key := "form"

	done := make(chan error, 1)
	go func() {
		_, err := tr.Estimate(context.Background(), key, depositIntent(1, 0))
		done <- err
	}()
	require.Equal(t, int64(1), <-est.started)

	_, err := tr.Estimate(context.Background(), key, depositIntent(2, 0))
	require.NoError(t, err)
	<-est.started

	// the older call ignores cancellation and completes last
	close(release)
	err = <-done
	assert.ErrorIs(t, err, ErrSuperseded)

	latest, ok := tr.Latest(key)
	require.True(t, ok)
	assert.Equal(t, "2", latest.Output().String())
}

func TestTracker_KeysAreIndependent(t *testing.T) {
	est := &scriptedEstimator{}
	tr := NewTracker(est)

	_, err := tr.Estimate(context.Background(), "a", depositIntent(1, 0))
	require.NoError(t, err)
	r, err := tr.Estimate(context.Background(), "b", depositIntent(2, 0))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), r.Sequence())
	assert.Equal(t, uint64(1), tr.Sequence("a"))
}

func TestTracker_ErrorsDoNotReplaceLatest(t *testing.T) {
	ctrl := gomock.NewController(t)
	est := mock.NewMockEstimator(ctrl)
	tr := NewTracker(est)

	ok := domain.NewEstimationResult(domain.ActionDeposit, big.NewInt(5), nil, big.NewInt(5), 0, time.Now())
	gomock.InOrder(
		est.EXPECT().EstimateOutput(gomock.Any(), gomock.Any()).Return(ok, nil),
		est.EXPECT().EstimateOutput(gomock.Any(), gomock.Any()).
			Return(nil, apperror.New(apperror.CodeSimulationReverted)),
	)

	_, err := tr.Estimate(context.Background(), "k", depositIntent(5, 0))
	require.NoError(t, err)
	_, err = tr.Estimate(context.Background(), "k", depositIntent(6, 0))
	assert.True(t, apperror.IsCode(err, apperror.CodeSimulationReverted))

	latest, found := tr.Latest("k")
	require.True(t, found)
	assert.Equal(t, uint64(1), latest.Sequence())
}

func TestTracker_ForgetSupersedesInFlight(t *testing.T) {
	release := make(chan struct{})
	est := &scriptedEstimator{
		block:   map[int64]chan struct{}{1: release},
		started: make(chan int64, 1),
	}
	tr := NewTracker(est)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Estimate(context.Background(), "form", depositIntent(1, 0))
		done <- err
	}()
	require.Equal(t, int64(1), <-est.started)

	tr.Forget("form")
	close(release)

	err := <-done
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.True(t, apperror.IsCode(err, apperror.CodeEstimationSuperseded))
	_, ok := tr.Latest("form")
	assert.False(t, ok)
	assert.Equal(t, uint64(0), tr.Sequence("form"))
}

func TestTracker_ForgetAndPrune(t *testing.T) {
	tr := NewTracker(&scriptedEstimator{})
	now := time.Now()
	tr.now = func() time.Time { return now }

	for _, k := range []string{"a", "b", "c"} {
		_, err := tr.Estimate(context.Background(), k, depositIntent(1, 0))
		require.NoError(t, err)
	}

	tr.Forget("a")
	_, ok := tr.Latest("a")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	_, err := tr.Estimate(context.Background(), "c", depositIntent(1, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, tr.Prune(30*time.Minute))
	_, ok = tr.Latest("b")
	assert.False(t, ok)
	_, ok = tr.Latest("c")
	assert.True(t, ok)
}
