// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the subset of a block header the service tracks.
type Block struct {
	Number    uint64
	Hash      common.Hash
	Timestamp time.Time
	BaseFee   *big.Int
}

// HeadStatus describes the chain head as last observed by the watcher.
type HeadStatus struct {
	ChainID    uint64    `json:"chainId"`
	Number     uint64    `json:"number"`
	ObservedAt time.Time `json:"observedAt"`
	Failures   int       `json:"consecutiveFailures"`
}

// Fresh reports whether the head was observed within maxAge of now.
func (s HeadStatus) Fresh(now time.Time, maxAge time.Duration) bool {
	return !s.ObservedAt.IsZero() && now.Sub(s.ObservedAt) <= maxAge
}
