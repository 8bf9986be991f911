// Package domain contains the price cache model: token market data and
// symbol normalization.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenData is the USD price and logo of a token.
type TokenData struct {
	Symbol    string          `json:"symbol" yaml:"symbol"`
	Price     decimal.Decimal `json:"price" yaml:"price"`
	Logo      string          `json:"logo" yaml:"logo"`
	UpdatedAt time.Time       `json:"updatedAt" yaml:"updatedAt"`
}

// Age returns how old the data is at now.
func (d TokenData) Age(now time.Time) time.Duration {
	return now.Sub(d.UpdatedAt)
}

// Market is one coin returned by the market data source.
type Market struct {
	ID          string
	Symbol      string
	Name        string
	Image       string
	Price       decimal.Decimal
	MarketCap   decimal.Decimal
	LastUpdated time.Time
}

// TokenData converts the market entry, falling back to fetchedAt when the
// source did not report an update time.
func (m Market) TokenData(fetchedAt time.Time) TokenData {
	updated := m.LastUpdated
	if updated.IsZero() {
		updated = fetchedAt
	}
	return TokenData{
		Symbol:    m.Symbol,
		Price:     m.Price,
		Logo:      m.Image,
		UpdatedAt: updated,
	}
}
