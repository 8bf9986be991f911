package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TxReceipt describes a submitted (or, in dry-run mode, prepared)
// transaction. Hash is empty for dry runs.
type TxReceipt struct {
	Method   string         `json:"method" yaml:"method"`
	To       common.Address `json:"to" yaml:"to"`
	Hash     common.Hash    `json:"hash" yaml:"hash"`
	GasLimit uint64         `json:"gasLimit" yaml:"gasLimit"`
	GasPrice *big.Int       `json:"gasPrice" yaml:"gasPrice"`
	Nonce    uint64         `json:"nonce" yaml:"nonce"`
	DryRun   bool           `json:"dryRun" yaml:"dryRun"`
}

// MaxCostWei is the upper bound on the fee paid: gas limit times gas price.
func (r TxReceipt) MaxCostWei() *big.Int {
	if r.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(r.GasLimit), r.GasPrice)
}
