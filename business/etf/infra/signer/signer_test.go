package signer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known hardhat account #0
const (
	testKey  = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewKeySigner(t *testing.T) {
	s, err := NewKeySigner(testKey, 1)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddr), s.Address())

	s2, err := NewKeySigner(testKey[2:], 1)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), s2.Address())

	_, err = NewKeySigner("not-a-key", 1)
	assert.Error(t, err)
}

func TestKeySigner_SignTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s := FromKey(key, 11155111)

	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    7,
		GasPrice: big.NewInt(30e9),
		Gas:      120_000,
		To:       &to,
		Value:    new(big.Int),
	})

	signed, err := s.SignTx(tx)
	require.NoError(t, err)

	from, err := types.Sender(types.NewEIP155Signer(big.NewInt(11155111)), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
	assert.Equal(t, int64(11155111), signed.ChainId().Int64())
	assert.Equal(t, uint64(7), signed.Nonce())
}
