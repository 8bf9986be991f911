// Package app contains the ETF catalog service and its ports.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/etfkit/business/catalog/domain"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	pricingDomain "github.com/fd1az/etfkit/business/pricing/domain"
)

//go:generate mockgen -source=ports.go -destination=../mock/ports_mock.go -package=mock

// Backend is the ETF backend REST API.
type Backend interface {
	ListETFs(ctx context.Context, q domain.ListQuery) (domain.Page[domain.ETF], error)
	GetETF(ctx context.Context, vault common.Address) (domain.ETF, error)
	GetPortfolio(ctx context.Context, owner common.Address) (domain.Portfolio, error)
	VerifyETF(ctx context.Context, params etfDomain.CreateParams) (domain.Verification, error)
}

// PriceLookup resolves USD prices by token symbol.
type PriceLookup interface {
	FetchTokenData(ctx context.Context, symbols []string) (map[string]pricingDomain.TokenData, error)
}
