// Package app contains the ETF estimation and trade services and their ports.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/etfkit/business/etf/domain"
)

//go:generate mockgen -source=ports.go -destination=../mock/ports_mock.go -package=mock

// ContractCaller performs read-only eth_call simulations.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// TxBackend is the node surface needed to submit transactions.
// *ethclient.Client satisfies it.
type TxBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Signer signs transactions for a single account on a single chain.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// Estimator simulates a trade intent.
type Estimator interface {
	EstimateOutput(ctx context.Context, intent domain.Intent) (*domain.EstimationResult, error)
}
