package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token is token metadata as reported by the backend.
type Token struct {
	Address  common.Address `json:"address" yaml:"address"`
	Symbol   string         `json:"symbol" yaml:"symbol"`
	Decimals int            `json:"decimals" yaml:"decimals"`
	Logo     string         `json:"logo,omitempty" yaml:"logo,omitempty"`
}

// Component is one weighted token of a basket. Weight is in basis points.
type Component struct {
	Token  Token  `json:"token" yaml:"token"`
	Weight uint32 `json:"weight" yaml:"weight"`
}

// ETF is a listed basket vault.
type ETF struct {
	Vault        common.Address  `json:"vault" yaml:"vault"`
	ChainID      uint64          `json:"chainId" yaml:"chainId"`
	Name         string          `json:"name" yaml:"name"`
	Symbol       string          `json:"symbol" yaml:"symbol"`
	ShareToken   Token           `json:"shareToken" yaml:"shareToken"`
	DepositToken Token           `json:"depositToken" yaml:"depositToken"`
	Components   []Component     `json:"components" yaml:"components"`
	TVL          decimal.Decimal `json:"tvl" yaml:"tvl"`
	SharePrice   decimal.Decimal `json:"sharePrice" yaml:"sharePrice"`
	Owner        common.Address  `json:"owner" yaml:"owner"`
	Verified     bool            `json:"verified" yaml:"verified"`
	CreatedAt    time.Time       `json:"createdAt" yaml:"createdAt"`
}

// Symbols returns the component token symbols.
func (e ETF) Symbols() []string {
	out := make([]string, 0, len(e.Components))
	for _, c := range e.Components {
		out = append(out, c.Token.Symbol)
	}
	return out
}

// Sort orders a listing.
type Sort string

const (
	SortNewest Sort = "newest"
	SortTVL    Sort = "tvl"
	SortName   Sort = "name"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListQuery filters an ETF listing.
type ListQuery struct {
	Page   int
	Limit  int
	Search string
	Sort   Sort
	Owner  common.Address
}

// Normalize clamps paging to valid bounds.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	q.Search = strings.TrimSpace(q.Search)
	return q
}

// Params renders the query string parameters. Empty filters are omitted.
func (q ListQuery) Params() map[string]string {
	q = q.Normalize()
	params := map[string]string{
		"page":  strconv.Itoa(q.Page),
		"limit": strconv.Itoa(q.Limit),
	}
	if q.Search != "" {
		params["search"] = q.Search
	}
	if q.Sort != "" {
		params["sort"] = string(q.Sort)
	}
	if q.Owner != (common.Address{}) {
		params["owner"] = q.Owner.Hex()
	}
	return params
}
