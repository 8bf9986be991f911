package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fd1az/etfkit/business/blockchain/domain"
	"github.com/fd1az/etfkit/business/blockchain/mock"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/logger"
)

func newOracle(t *testing.T, reader *mock.MockChainReader, cfg GasOracleConfig) *GasOracle {
	t.Helper()
	g, err := NewGasOracle(reader, cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGasOracle_GetGasPriceCaches(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	reader.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(25e9), nil).Times(1)

	ctx := context.Background()
	p1, err := g.GetGasPrice(ctx)
	require.NoError(t, err)
	p2, err := g.GetGasPrice(ctx)
	require.NoError(t, err)

	assert.Equal(t, "25000000000", p1.Wei.String())
	assert.Same(t, p1, p2)
}

func TestGasOracle_InvalidateRefetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	gomock.InOrder(
		reader.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(10e9), nil),
		reader.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(12e9), nil),
	)

	ctx := context.Background()
	_, err := g.GetGasPrice(ctx)
	require.NoError(t, err)

	g.Invalidate(ctx)

	p, err := g.GetGasPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12000000000", p.Wei.String())
}

func TestGasOracle_CapsPrice(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	cfg := DefaultGasOracleConfig()
	cfg.MaxGasPrice = big.NewInt(100e9)
	g := newOracle(t, reader, cfg)

	reader.EXPECT().SuggestGasPrice(gomock.Any()).Return(big.NewInt(900e9), nil)

	p, err := g.GetGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100000000000", p.Wei.String())
	assert.True(t, p.Capped)
}

func TestGasOracle_GetGasPriceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	reader.EXPECT().SuggestGasPrice(gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := g.GetGasPrice(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEthereumRPCError))
}

func TestGasOracle_EstimateGasPadsTwentyPercent(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	to := common.HexToAddress("0x1234")
	msg := ethereum.CallMsg{To: &to, Data: []byte{0xde, 0xad}}

	reader.EXPECT().EstimateGas(gomock.Any(), msg).Return(uint64(150000), nil)

	gas, err := g.EstimateGas(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(180000), gas)
}

func TestGasOracle_EstimateGasError(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	reader.EXPECT().EstimateGas(gomock.Any(), gomock.Any()).Return(uint64(0), errors.New("execution reverted"))

	_, err := g.EstimateGas(context.Background(), ethereum.CallMsg{})
	assert.True(t, apperror.IsCode(err, apperror.CodeGasEstimationFailed))
}

func TestGasOracle_ConcurrentMissesShareOneCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	release := make(chan struct{})
	reader.EXPECT().SuggestGasPrice(gomock.Any()).DoAndReturn(func(context.Context) (*big.Int, error) {
		<-release
		return big.NewInt(30e9), nil
	}).Times(1)

	const callers = 8
	var wg sync.WaitGroup
	prices := make([]*domain.GasPrice, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := g.GetGasPrice(context.Background())
			assert.NoError(t, err)
			prices[i] = p
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, p := range prices {
		require.NotNil(t, p)
		assert.Equal(t, "30000000000", p.Wei.String())
	}
}

func TestGasOracle_CancelledLeaderDoesNotFailFollowers(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := mock.NewMockChainReader(ctrl)
	g := newOracle(t, reader, DefaultGasOracleConfig())

	started := make(chan struct{})
	release := make(chan struct{})
	reader.EXPECT().SuggestGasPrice(gomock.Any()).DoAndReturn(func(ctx context.Context) (*big.Int, error) {
		close(started)
		select {
		case <-release:
			return big.NewInt(40e9), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}).Times(1)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = g.GetGasPrice(leaderCtx)
	}()
	<-started

	var (
		p   *domain.GasPrice
		err error
	)
	followerDone := make(chan struct{})
	go func() {
		defer close(followerDone)
		p, err = g.GetGasPrice(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-followerDone
	<-leaderDone

	require.NoError(t, err)
	assert.Equal(t, "40000000000", p.Wei.String())
}
