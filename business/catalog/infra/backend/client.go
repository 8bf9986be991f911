// Package backend is the HTTP client for the ETF backend REST API.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/etfkit/business/catalog/app"
	"github.com/fd1az/etfkit/business/catalog/domain"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/circuitbreaker"
	"github.com/fd1az/etfkit/internal/httpclient"
	"github.com/fd1az/etfkit/internal/logger"
)

const (
	tracerName = "github.com/fd1az/etfkit/business/catalog/infra/backend"

	etfsPath      = "/api/etfs"
	verifyPath    = "/api/etfs/verify"
	portfolioPath = "/api/portfolio"
)

// Config holds backend client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements app.Backend over the instrumented HTTP client.
type Client struct {
	client httpclient.Client
	cb     *circuitbreaker.CircuitBreaker[[]byte]
	logger logger.LoggerInterface
	tracer trace.Tracer
}

var _ app.Backend = (*Client)(nil)

// NewClient creates a backend client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("backend base url is required"))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("backend"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceRequest),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// 4xx answers mean the backend is healthy.
	cbCfg := circuitbreaker.DefaultConfig("backend")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || apperror.StatusCodeOf(err) < http.StatusInternalServerError
	}

	return &Client{
		client: client,
		cb:     circuitbreaker.New[[]byte](cbCfg),
		logger: log,
		tracer: tracer,
	}, nil
}

// ListETFs returns one page of listed ETFs.
func (c *Client) ListETFs(ctx context.Context, q domain.ListQuery) (domain.Page[domain.ETF], error) {
	q = q.Normalize()
	ctx, span := c.tracer.Start(ctx, "backend.list_etfs",
		trace.WithAttributes(attribute.Int("page", q.Page), attribute.Int("limit", q.Limit)),
	)
	defer span.End()

	raw, err := c.send(ctx, http.MethodGet, etfsPath, "list_etfs", q.Params(), nil, apperror.CodeBackendError)
	if err != nil {
		return domain.Page[domain.ETF]{}, fail(span, err)
	}
	env, err := decode[[]domain.ETF](raw)
	if err != nil {
		return domain.Page[domain.ETF]{}, fail(span, err)
	}

	page := domain.Page[domain.ETF]{Items: env.Data}
	if page.Items == nil {
		page.Items = []domain.ETF{}
	}
	if env.Pagination != nil {
		page.Pagination = *env.Pagination
	} else {
		page.Pagination = domain.Pagination{Page: q.Page, Limit: q.Limit, Total: len(page.Items), TotalPages: 1}
	}

	span.SetAttributes(attribute.Int("items", len(page.Items)))
	span.SetStatus(codes.Ok, "listed")
	return page, nil
}

// GetETF returns one ETF by vault address.
func (c *Client) GetETF(ctx context.Context, vault common.Address) (domain.ETF, error) {
	ctx, span := c.tracer.Start(ctx, "backend.get_etf",
		trace.WithAttributes(attribute.String("vault", vault.Hex())),
	)
	defer span.End()

	raw, err := c.send(ctx, http.MethodGet, etfsPath+"/"+vault.Hex(), "get_etf", nil, nil, apperror.CodeETFNotFound)
	if err != nil {
		return domain.ETF{}, fail(span, err)
	}
	env, err := decode[domain.ETF](raw)
	if err != nil {
		return domain.ETF{}, fail(span, err)
	}

	span.SetStatus(codes.Ok, "found")
	return env.Data, nil
}

// GetPortfolio returns every holding of owner.
func (c *Client) GetPortfolio(ctx context.Context, owner common.Address) (domain.Portfolio, error) {
	ctx, span := c.tracer.Start(ctx, "backend.get_portfolio",
		trace.WithAttributes(attribute.String("owner", owner.Hex())),
	)
	defer span.End()

	raw, err := c.send(ctx, http.MethodGet, portfolioPath+"/"+owner.Hex(), "get_portfolio", nil, nil, apperror.CodeBackendError)
	if err != nil {
		return domain.Portfolio{}, fail(span, err)
	}
	env, err := decode[domain.Portfolio](raw)
	if err != nil {
		return domain.Portfolio{}, fail(span, err)
	}

	portfolio := env.Data
	if portfolio.Owner == (common.Address{}) {
		portfolio.Owner = owner
	}

	span.SetAttributes(attribute.Int("holdings", len(portfolio.Holdings)))
	span.SetStatus(codes.Ok, "fetched")
	return portfolio, nil
}

type verifyRequest struct {
	Name         string   `json:"name"`
	Symbol       string   `json:"symbol"`
	DepositToken string   `json:"depositToken"`
	Tokens       []string `json:"tokens"`
	Weights      []uint32 `json:"weights"`
}

// VerifyETF asks the backend to check a proposed basket.
func (c *Client) VerifyETF(ctx context.Context, params etfDomain.CreateParams) (domain.Verification, error) {
	ctx, span := c.tracer.Start(ctx, "backend.verify_etf",
		trace.WithAttributes(attribute.String("symbol", params.Symbol)),
	)
	defer span.End()

	body := verifyRequest{
		Name:         params.Name,
		Symbol:       params.Symbol,
		DepositToken: params.DepositToken.Hex(),
		Tokens:       make([]string, len(params.Tokens)),
		Weights:      params.Weights,
	}
	for i, t := range params.Tokens {
		body.Tokens[i] = t.Hex()
	}

	raw, err := c.send(ctx, http.MethodPost, verifyPath, "verify_etf", nil, body, apperror.CodeBackendError)
	if err != nil {
		return domain.Verification{}, fail(span, err)
	}
	env, err := decode[domain.Verification](raw)
	if err != nil {
		return domain.Verification{}, fail(span, err)
	}

	span.SetAttributes(attribute.Bool("valid", env.Data.Valid))
	span.SetStatus(codes.Ok, "verified")
	return env.Data, nil
}

// send performs one request through the breaker. notFound is the code used
// for 404 answers.
func (c *Client) send(
	ctx context.Context,
	method, path, endpoint string,
	query map[string]string,
	body any,
	notFound apperror.Code,
) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		req := c.client.NewRequestWithOptions(
			httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
			httpclient.WithResponseErrorHandler(statusHandler(notFound)),
		)
		for k, v := range query {
			req = req.SetQueryParam(k, v)
		}
		if body != nil {
			req = req.SetBody(body)
		}

		var (
			resp *httpclient.Response
			err  error
		)
		if method == http.MethodPost {
			resp, err = req.Post(ctx, path)
		} else {
			resp, err = req.Get(ctx, path)
		}
		if err != nil {
			if apperror.IsAppError(err) {
				return nil, err
			}
			c.logger.Warn(ctx, "backend request failed", "path", path, "error", err)
			return nil, apperror.New(apperror.CodeBackendConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext(method+" "+path))
		}
		return resp.Body(), nil
	})
}

// statusHandler turns error statuses into AppErrors carrying the envelope's
// message. 4xx keeps the backend status; 5xx becomes a bad gateway.
func statusHandler(notFound apperror.Code) httpclient.ResponseErrorHandler {
	return func(status int, body []byte) error {
		if status < http.StatusBadRequest {
			return nil
		}

		var env domain.Envelope[json.RawMessage]
		_ = json.Unmarshal(body, &env)
		reason := env.Reason(http.StatusText(status))

		switch {
		case status == http.StatusNotFound:
			return apperror.New(notFound,
				apperror.WithMessage(reason),
				apperror.WithStatusCode(http.StatusNotFound))
		case status >= http.StatusInternalServerError:
			return apperror.New(apperror.CodeBackendError,
				apperror.WithMessage(reason),
				apperror.WithContext(fmt.Sprintf("status %d", status)),
				apperror.WithStatusCode(http.StatusBadGateway))
		default:
			return apperror.New(apperror.CodeBackendError,
				apperror.WithMessage(reason),
				apperror.WithStatusCode(status))
		}
	}
}

// decode parses the envelope and rejects success=false answers.
func decode[T any](raw []byte) (domain.Envelope[T], error) {
	var env domain.Envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, apperror.New(apperror.CodeBackendError,
			apperror.WithCause(err),
			apperror.WithContext("malformed response envelope"))
	}
	if !env.Success {
		return env, apperror.New(apperror.CodeBackendError,
			apperror.WithMessage(env.Reason("backend reported failure")))
	}
	return env, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
