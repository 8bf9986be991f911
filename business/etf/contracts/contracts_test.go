package contracts

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/business/etf/domain"
)

type rpcDataError struct {
	msg  string
	data any
}

func (e *rpcDataError) Error() string  { return e.msg }
func (e *rpcDataError) ErrorCode() int { return 3 }
func (e *rpcDataError) ErrorData() any { return e.data }

func errorStringData(t *testing.T, reason string) []byte {
	t.Helper()
	str, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: str}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func TestUnpackEstimate(t *testing.T) {
	ret, err := VaultABI.Methods["deposit"].Outputs.Pack(
		big.NewInt(1_000_000),
		[]*big.Int{big.NewInt(400_000), big.NewInt(600_000)},
	)
	require.NoError(t, err)

	est, err := UnpackEstimate("deposit", ret)
	require.NoError(t, err)
	assert.Equal(t, "1000000", est.Output.String())
	require.Len(t, est.PerAsset, 2)
	assert.Equal(t, "600000", est.PerAsset[1].String())

	_, err = UnpackEstimate("deposit", []byte{0x01})
	assert.Error(t, err)
}

func TestPackSimulation_UsesZeroMinimum(t *testing.T) {
	data, err := PackSimulation(domain.ActionRedeem, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, VaultABI.Methods["redeem"].ID, data[:4])

	args, err := VaultABI.Methods["redeem"].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	assert.Equal(t, "42", args[0].(*big.Int).String())
	assert.Equal(t, "0", args[1].(*big.Int).String())

	data, err = PackSimulation(domain.ActionDeposit, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, VaultABI.Methods["deposit"].ID, data[:4])
}

func TestPackAdminCalls(t *testing.T) {
	a := common.HexToAddress("0x0000000000000000000000000000000000000001")
	b := common.HexToAddress("0x0000000000000000000000000000000000000002")

	create, err := PackCreateETF(domain.CreateParams{
		Name: "Blue", Symbol: "BLUE", DepositToken: a,
		Allocation: domain.Allocation{Tokens: []common.Address{a, b}, Weights: []uint32{5000, 5000}},
	})
	require.NoError(t, err)
	assert.Equal(t, FactoryABI.Methods["createETF"].ID, create[:4])

	params, err := PackUpdateParams(domain.VaultParams{MaxSlippageBps: 100, RebalanceCooldown: time.Hour})
	require.NoError(t, err)
	args, err := VaultABI.Methods["updateParams"].Inputs.Unpack(params[4:])
	require.NoError(t, err)
	assert.Equal(t, "3600", args[1].(*big.Int).String())

	for _, fn := range []func() ([]byte, error){
		func() ([]byte, error) { return PackSetHLSAddress(a) },
		func() ([]byte, error) { return PackSetTreasury(b) },
		func() ([]byte, error) { return PackSetDepositFee(30) },
		func() ([]byte, error) { return PackSetFeeSwapConfig(domain.FeeSwapConfig{Router: a, FeeToken: b}) },
		func() ([]byte, error) { return PackApprove(a, big.NewInt(1)) },
		func() ([]byte, error) { return PackAllowance(a, b) },
	} {
		data, err := fn()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(data), 36)
	}
}

func TestUnpackSingleValues(t *testing.T) {
	ret, err := ERC20ABI.Methods["allowance"].Outputs.Pack(big.NewInt(5))
	require.NoError(t, err)
	v, err := UnpackUint256(ERC20ABI, "allowance", ret)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int64())

	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	ret, err = VaultABI.Methods["depositToken"].Outputs.Pack(token)
	require.NoError(t, err)
	addr, err := UnpackAddress(VaultABI, "depositToken", ret)
	require.NoError(t, err)
	assert.Equal(t, token, addr)
}

func TestRevertReason(t *testing.T) {
	reason, ok := RevertReason(&rpcDataError{
		msg:  "execution reverted: slippage",
		data: hexutil.Encode(errorStringData(t, "ETF: slippage exceeded")),
	})
	require.True(t, ok)
	assert.Equal(t, "ETF: slippage exceeded", reason)

	wrapped := fmt.Errorf("call: %w", &rpcDataError{
		msg:  "execution reverted",
		data: hexutil.Encode([]byte{0xde, 0xad, 0xbe, 0xef}),
	})
	reason, ok = RevertReason(wrapped)
	require.True(t, ok)
	assert.Equal(t, "custom error 0xdeadbeef", reason)

	reason, ok = RevertReason(errors.New("execution reverted"))
	require.True(t, ok)
	assert.Equal(t, "execution reverted", reason)

	_, ok = RevertReason(errors.New("dial tcp: connection refused"))
	assert.False(t, ok)
	assert.False(t, IsRevert(nil))
}
