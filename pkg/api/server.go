// Package api is the HTTP presentation layer: unit conversion, slippage,
// estimation, prices and the ETF catalog over echo.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	catalogDomain "github.com/fd1az/etfkit/business/catalog/domain"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	pricingDomain "github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/logger"
)

// Estimator runs sequenced estimations; the etf tracker implements it.
type Estimator interface {
	Estimate(ctx context.Context, key string, intent etfDomain.Intent) (*etfDomain.EstimationResult, error)
}

// PriceReader resolves token prices by symbol.
type PriceReader interface {
	FetchTokenData(ctx context.Context, symbols []string) (map[string]pricingDomain.TokenData, error)
}

// Catalog serves listings and portfolio valuations.
type Catalog interface {
	ListETFs(ctx context.Context, q catalogDomain.ListQuery) (catalogDomain.Page[catalogDomain.ETF], error)
	GetETF(ctx context.Context, vault common.Address) (catalogDomain.ETF, error)
	VerifyETF(ctx context.Context, params etfDomain.CreateParams) (catalogDomain.Verification, error)
	PortfolioValue(ctx context.Context, owner common.Address) (catalogDomain.Valuation, error)
}

// Config holds server settings.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Deps are the services behind the routes. Routes whose service is nil are
// not mounted.
type Deps struct {
	Estimator Estimator
	Prices    PriceReader
	Catalog   Catalog
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP API server.
type Server struct {
	echo   *echo.Echo
	server *http.Server
	deps   Deps
	logger logger.LoggerInterface
}

// NewServer builds the router.
func NewServer(cfg Config, deps Deps, log logger.LoggerInterface) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	s := &Server{
		echo:   e,
		deps:   deps,
		logger: log,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      e,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.echo.Group("/v1")

	v1.POST("/convert/to-base", s.handleToBase)
	v1.POST("/convert/from-base", s.handleFromBase)
	v1.POST("/slippage", s.handleSlippage)

	if s.deps.Estimator != nil {
		v1.POST("/estimate", s.handleEstimate)
	}
	if s.deps.Prices != nil {
		v1.GET("/prices", s.handlePrices)
	}
	if s.deps.Catalog != nil {
		v1.GET("/etfs", s.handleListETFs)
		v1.GET("/etfs/:vault", s.handleGetETF)
		v1.POST("/etfs/verify", s.handleVerifyETF)
		v1.GET("/portfolio/:owner", s.handlePortfolio)
	}
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "api server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func requestLogger(log logger.LoggerInterface) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				log.Warn(c.Request().Context(), "api request failed", append(args, "error", v.Error)...)
				return nil
			}
			log.Debug(c.Request().Context(), "api request", args...)
			return nil
		},
	})
}
