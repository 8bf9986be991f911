package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Holding is one token balance. Balance is in base units. SharePrice is the
// backend's USD price for ETF share tokens that have no market listing.
type Holding struct {
	Token      Token               `json:"token" yaml:"token"`
	Balance    string              `json:"balance" yaml:"balance"`
	Vault      *common.Address     `json:"vault,omitempty" yaml:"vault,omitempty"`
	SharePrice decimal.NullDecimal `json:"sharePrice" yaml:"-"`
}

// Portfolio is every holding of an owner.
type Portfolio struct {
	Owner    common.Address `json:"owner" yaml:"owner"`
	Holdings []Holding      `json:"holdings" yaml:"holdings"`
}

// PriceSource names where a position's price came from.
type PriceSource string

const (
	PriceSourceMarket  PriceSource = "market"
	PriceSourceBackend PriceSource = "backend"
	PriceSourceNone    PriceSource = "none"
)

// Position is a valued holding. Amount is in token units.
type Position struct {
	Token    Token           `json:"token" yaml:"token"`
	Vault    *common.Address `json:"vault,omitempty" yaml:"vault,omitempty"`
	Amount   string          `json:"amount" yaml:"amount"`
	PriceUSD decimal.Decimal `json:"priceUsd" yaml:"priceUsd"`
	ValueUSD decimal.Decimal `json:"valueUsd" yaml:"valueUsd"`
	Source   PriceSource     `json:"source" yaml:"source"`
}

// Valuation is the USD value of a portfolio. Unpriced positions count as
// zero and are listed in Unpriced.
type Valuation struct {
	Owner     common.Address  `json:"owner" yaml:"owner"`
	TotalUSD  decimal.Decimal `json:"totalUsd" yaml:"totalUsd"`
	Positions []Position      `json:"positions" yaml:"positions"`
	Unpriced  []string        `json:"unpriced,omitempty" yaml:"unpriced,omitempty"`
}

// Verification is the backend's verdict on a proposed basket.
type Verification struct {
	Valid    bool     `json:"valid" yaml:"valid"`
	Reasons  []string `json:"reasons,omitempty" yaml:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
