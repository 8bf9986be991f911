package app

import (
	"context"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/etfkit/business/blockchain/domain"
)

// BlockchainService is the public face of the blockchain context.
type BlockchainService struct {
	gasOracle GasOracle
	heads     HeadSource
}

// NewBlockchainService creates a new BlockchainService. heads may be nil.
func NewBlockchainService(gasOracle GasOracle, heads HeadSource) *BlockchainService {
	return &BlockchainService{
		gasOracle: gasOracle,
		heads:     heads,
	}
}

// GasOracle returns the oracle, for services that sign transactions.
func (s *BlockchainService) GasOracle() GasOracle {
	return s.gasOracle
}

// QuoteGas estimates msg (padded) and prices it.
func (s *BlockchainService) QuoteGas(ctx context.Context, msg ethereum.CallMsg) (domain.GasQuote, error) {
	limit, err := s.gasOracle.EstimateGas(ctx, msg)
	if err != nil {
		return domain.GasQuote{}, err
	}
	price, err := s.gasOracle.GetGasPrice(ctx)
	if err != nil {
		return domain.GasQuote{}, err
	}
	return domain.GasQuote{GasLimit: limit, GasPrice: price}, nil
}

// Head returns the last observed chain head.
func (s *BlockchainService) Head() domain.HeadStatus {
	if s.heads == nil {
		return domain.HeadStatus{}
	}
	return s.heads.Status()
}
