package ethereum

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fd1az/etfkit/business/blockchain/mock"
	"github.com/fd1az/etfkit/internal/logger"
)

type scriptedHeads struct {
	numbers []uint64
	errs    []error
	i       int
}

func (s *scriptedHeads) BlockNumber(context.Context) (uint64, error) {
	i := s.i
	s.i++
	if i < len(s.errs) && s.errs[i] != nil {
		return 0, s.errs[i]
	}
	return s.numbers[i], nil
}

func TestHeadWatcher_InvalidatesOnNewHeadOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	oracle := mock.NewMockGasOracle(ctrl)

	src := &scriptedHeads{numbers: []uint64{100, 100, 101}}
	w, err := NewHeadWatcher(src, oracle, 1, time.Second, logger.NewNop())
	require.NoError(t, err)

	oracle.EXPECT().Invalidate(gomock.Any()).Times(2)

	ctx := context.Background()
	w.Poll(ctx)
	w.Poll(ctx)
	w.Poll(ctx)

	assert.Equal(t, uint64(101), w.Status().Number)
}

func TestHeadWatcher_CheckTracksFreshness(t *testing.T) {
	src := &scriptedHeads{
		numbers: []uint64{7, 0},
		errs:    []error{nil, errors.New("timeout")},
	}
	w, err := NewHeadWatcher(src, nil, 1, time.Second, logger.NewNop())
	require.NoError(t, err)

	now := time.Now()
	w.now = func() time.Time { return now }

	ok, _ := w.Check(context.Background())
	assert.False(t, ok, "no head observed yet")

	w.Poll(context.Background())
	ok, msg := w.Check(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "block 7", msg)

	w.Poll(context.Background())
	assert.Equal(t, 1, w.Status().Failures)

	now = now.Add(5 * time.Second)
	ok, _ = w.Check(context.Background())
	assert.False(t, ok)
}
