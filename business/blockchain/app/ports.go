// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/etfkit/business/blockchain/domain"
)

//go:generate mockgen -source=ports.go -destination=../mock/ports_mock.go -package=mock

// ChainReader is the node surface the gas oracle needs. *ethclient.Client
// satisfies it.
type ChainReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// GasOracle prices and sizes transactions.
type GasOracle interface {
	// GetGasPrice returns the current gas price, cached for about one block.
	GetGasPrice(ctx context.Context) (*domain.GasPrice, error)
	// EstimateGas estimates msg and pads the result by the configured buffer.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	// Invalidate drops the cached gas price.
	Invalidate(ctx context.Context)
}

// HeadSource reports the latest observed chain head.
type HeadSource interface {
	Status() domain.HeadStatus
}
