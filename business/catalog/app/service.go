package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/etfkit/business/catalog/domain"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/asset"
	"github.com/fd1az/etfkit/internal/logger"
)

const tracerName = "github.com/fd1az/etfkit/business/catalog/app"

// CatalogService serves ETF listings and values portfolios in USD.
type CatalogService struct {
	backend  Backend
	prices   PriceLookup
	registry *asset.Registry
	chainID  uint64
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

// NewCatalogService creates a catalog service for chainID.
func NewCatalogService(
	backend Backend,
	prices PriceLookup,
	registry *asset.Registry,
	chainID uint64,
	log logger.LoggerInterface,
) *CatalogService {
	return &CatalogService{
		backend:  backend,
		prices:   prices,
		registry: registry,
		chainID:  chainID,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *CatalogService) ListETFs(ctx context.Context, q domain.ListQuery) (domain.Page[domain.ETF], error) {
	return s.backend.ListETFs(ctx, q.Normalize())
}

func (s *CatalogService) GetETF(ctx context.Context, vault common.Address) (domain.ETF, error) {
	return s.backend.GetETF(ctx, vault)
}

// VerifyETF validates params locally before asking the backend.
func (s *CatalogService) VerifyETF(ctx context.Context, params etfDomain.CreateParams) (domain.Verification, error) {
	if err := params.Validate(); err != nil {
		return domain.Verification{}, err
	}
	return s.backend.VerifyETF(ctx, params)
}

// PortfolioValue values every holding of owner. Vault shares are priced
// only from the backend's share price; other tokens use market prices, and a
// failing price source leaves them unpriced.
func (s *CatalogService) PortfolioValue(ctx context.Context, owner common.Address) (domain.Valuation, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.portfolio_value",
		trace.WithAttributes(attribute.String("owner", owner.Hex())),
	)
	defer span.End()

	portfolio, err := s.backend.GetPortfolio(ctx, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portfolio fetch failed")
		return domain.Valuation{}, err
	}

	symbols := make([]string, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		if h.Token.Symbol != "" && !sharePriced(h) {
			symbols = append(symbols, h.Token.Symbol)
		}
	}

	market := map[string]marketPrice{}
	if len(symbols) > 0 {
		data, err := s.prices.FetchTokenData(ctx, symbols)
		if err != nil {
			span.RecordError(err)
			s.logger.Warn(ctx, "price lookup failed, using backend prices only", "owner", owner.Hex(), "error", err)
		}
		for sym, d := range data {
			market[sym] = marketPrice{rate: d.Price, at: d.UpdatedAt}
		}
	}

	valuation := domain.Valuation{
		Owner:     owner,
		TotalUSD:  decimal.Zero,
		Positions: make([]domain.Position, 0, len(portfolio.Holdings)),
	}

	for _, h := range portfolio.Holdings {
		pos, err := s.value(h, market)
		if err != nil {
			s.logger.Warn(ctx, "skipping unvaluable holding",
				"token", h.Token.Address.Hex(), "symbol", h.Token.Symbol, "error", err)
			valuation.Unpriced = append(valuation.Unpriced, h.Token.Symbol)
			continue
		}
		if pos.Source == domain.PriceSourceNone {
			valuation.Unpriced = append(valuation.Unpriced, h.Token.Symbol)
		}
		valuation.TotalUSD = valuation.TotalUSD.Add(pos.ValueUSD)
		valuation.Positions = append(valuation.Positions, pos)
	}

	span.SetAttributes(
		attribute.Int("positions", len(valuation.Positions)),
		attribute.Int("unpriced", len(valuation.Unpriced)),
		attribute.String("total_usd", valuation.TotalUSD.StringFixed(2)),
	)
	span.SetStatus(codes.Ok, "valued")
	return valuation, nil
}

type marketPrice struct {
	rate decimal.Decimal
	at   time.Time
}

// sharePriced reports whether h is an ETF share the backend prices. Share
// symbols are user chosen and can collide with listed tokens.
func sharePriced(h domain.Holding) bool {
	return h.Vault != nil && h.SharePrice.Valid
}

func (s *CatalogService) value(h domain.Holding, market map[string]marketPrice) (domain.Position, error) {
	a, err := s.registry.Resolve(s.chainID, h.Token.Address, h.Token.Symbol, h.Token.Decimals)
	if err != nil {
		return domain.Position{}, err
	}

	raw, ok := new(big.Int).SetString(h.Balance, 10)
	if !ok {
		return domain.Position{}, fmt.Errorf("invalid balance %q", h.Balance)
	}
	if raw.Sign() < 0 {
		return domain.Position{}, fmt.Errorf("%w: balance %s", asset.ErrNegativeAmount, h.Balance)
	}
	amount := asset.NewAmount(a, raw)

	pos := domain.Position{
		Token:    h.Token,
		Vault:    h.Vault,
		Amount:   amount.Units(),
		PriceUSD: decimal.Zero,
		ValueUSD: decimal.Zero,
		Source:   domain.PriceSourceNone,
	}

	mp, found := market[h.Token.Symbol]
	switch {
	case found && !sharePriced(h):
		pos.Source = domain.PriceSourceMarket
	case h.SharePrice.Valid:
		mp = marketPrice{rate: h.SharePrice.Decimal}
		pos.Source = domain.PriceSourceBackend
	default:
		return pos, nil
	}

	price, err := asset.USDPrice(a, mp.rate, mp.at)
	if err != nil {
		return domain.Position{}, err
	}
	value, err := price.Value(amount)
	if err != nil {
		return domain.Position{}, err
	}

	pos.PriceUSD = price.Rate()
	pos.ValueUSD = value
	return pos, nil
}
