package api_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogDomain "github.com/fd1az/etfkit/business/catalog/domain"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	pricingDomain "github.com/fd1az/etfkit/business/pricing/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/pkg/api"
)

var (
	testVault  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSender = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeEstimator struct {
	key    string
	intent etfDomain.Intent
	err    error
}

func (f *fakeEstimator) Estimate(_ context.Context, key string, intent etfDomain.Intent) (*etfDomain.EstimationResult, error) {
	f.key, f.intent = key, intent
	if f.err != nil {
		return nil, f.err
	}
	out := big.NewInt(1000)
	min := intent.Tolerance.MinAmountOut(out)
	return etfDomain.NewEstimationResult(intent.Action, out, []*big.Int{big.NewInt(400), big.NewInt(600)}, min, intent.Tolerance.Bps, time.Now()).WithSequence(3), nil
}

type fakePrices struct {
	symbols []string
}

func (f *fakePrices) FetchTokenData(_ context.Context, symbols []string) (map[string]pricingDomain.TokenData, error) {
	f.symbols = symbols
	return map[string]pricingDomain.TokenData{
		"WETH": {Symbol: "weth", Price: decimal.RequireFromString("2000.5"), Logo: "https://img/weth.png"},
	}, nil
}

type fakeCatalog struct {
	query catalogDomain.ListQuery
}

func (f *fakeCatalog) ListETFs(_ context.Context, q catalogDomain.ListQuery) (catalogDomain.Page[catalogDomain.ETF], error) {
	f.query = q
	return catalogDomain.Page[catalogDomain.ETF]{
		Items:      []catalogDomain.ETF{{Vault: testVault, Symbol: "BLUE"}},
		Pagination: catalogDomain.Pagination{Page: 1, Limit: 20, Total: 1, TotalPages: 1},
	}, nil
}

func (f *fakeCatalog) GetETF(_ context.Context, vault common.Address) (catalogDomain.ETF, error) {
	return catalogDomain.ETF{}, apperror.New(apperror.CodeETFNotFound, apperror.WithContext(vault.Hex()))
}

func (f *fakeCatalog) VerifyETF(_ context.Context, params etfDomain.CreateParams) (catalogDomain.Verification, error) {
	if err := params.Validate(); err != nil {
		return catalogDomain.Verification{}, err
	}
	return catalogDomain.Verification{Valid: true}, nil
}

func (f *fakeCatalog) PortfolioValue(_ context.Context, owner common.Address) (catalogDomain.Valuation, error) {
	return catalogDomain.Valuation{Owner: owner, TotalUSD: decimal.NewFromInt(42)}, nil
}

func newTestServer(deps api.Deps) http.Handler {
	return api.NewServer(api.Config{Port: 0}, deps, logger.NewNop()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return errBody["code"].(string)
}

func TestConvert(t *testing.T) {
	h := newTestServer(api.Deps{})

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantField  string
		wantValue  string
		wantCode   apperror.Code
	}{
		{"to base", "/v1/convert/to-base", `{"amount":"1.5","decimals":6}`, http.StatusOK, "baseUnits", "1500000", ""},
		{"to base truncates", "/v1/convert/to-base", `{"amount":"0.0000001","decimals":6}`, http.StatusOK, "baseUnits", "0", ""},
		{"to base zero decimals", "/v1/convert/to-base", `{"amount":"42","decimals":0}`, http.StatusOK, "baseUnits", "42", ""},
		{"to base sanitized", "/v1/convert/to-base", `{"amount":"1,239abc","decimals":2,"sanitize":true}`, http.StatusOK, "amount", "1.23", ""},
		{"to base unparsable", "/v1/convert/to-base", `{"amount":"abc","decimals":6}`, http.StatusOK, "baseUnits", "0", ""},
		{"to base missing decimals", "/v1/convert/to-base", `{"amount":"1"}`, http.StatusBadRequest, "", "", apperror.CodeValidationError},
		{"to base decimals too large", "/v1/convert/to-base", `{"amount":"1","decimals":31}`, http.StatusBadRequest, "", "", apperror.CodeValidationError},
		{"from base", "/v1/convert/from-base", `{"baseUnits":"1500000","decimals":6}`, http.StatusOK, "amount", "1.5", ""},
		{"from base whole", "/v1/convert/from-base", `{"baseUnits":"2000000","decimals":6}`, http.StatusOK, "amount", "2", ""},
		{"from base invalid", "/v1/convert/from-base", `{"baseUnits":"-5","decimals":6}`, http.StatusBadRequest, "", "", apperror.CodeInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, string(tt.wantCode), errorCode(t, rec))
				return
			}
			assert.Equal(t, tt.wantValue, decodeBody(t, rec)[tt.wantField])
		})
	}
}

func TestSlippage(t *testing.T) {
	h := newTestServer(api.Deps{})

	rec := do(t, h, http.MethodPost, "/v1/slippage", `{"amount":"1000000","percent":"2.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "975000", body["minAmount"])
	assert.Equal(t, float64(250), body["bps"])
	assert.Equal(t, false, body["highRisk"])

	rec = do(t, h, http.MethodPost, "/v1/slippage", `{"amount":"1000000","bps":1500}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "850000", body["minAmount"])
	assert.Equal(t, true, body["highRisk"])

	rec = do(t, h, http.MethodPost, "/v1/slippage", `{"amount":"1000000","percent":"101"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidSlippage), errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/slippage", `{"amount":"1000000"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeValidationError), errorCode(t, rec))
}

func TestEstimate(t *testing.T) {
	est := &fakeEstimator{}
	h := newTestServer(api.Deps{Estimator: est})

	body := `{"session":"tab-1","action":"Deposit","vault":"` + testVault.Hex() + `","amount":"1000000","sender":"` + testSender.Hex() + `","slippagePercent":"1"}`
	rec := do(t, h, http.MethodPost, "/v1/estimate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "tab-1/"+testVault.Hex()+"/deposit", est.key)
	assert.Equal(t, etfDomain.ActionDeposit, est.intent.Action)
	assert.Equal(t, testSender, est.intent.Sender)
	assert.Equal(t, uint32(100), est.intent.Tolerance.Bps)
	assert.Equal(t, "1000000", est.intent.InputAmount.String())

	out := decodeBody(t, rec)
	assert.Equal(t, "1000", out["output"])
	assert.Equal(t, "990", out["minOutput"])
	assert.Equal(t, float64(3), out["sequence"])
}

func TestEstimate_DefaultSlippage(t *testing.T) {
	est := &fakeEstimator{}
	h := newTestServer(api.Deps{Estimator: est})

	rec := do(t, h, http.MethodPost, "/v1/estimate", `{"session":"s","action":"redeem","vault":"`+testVault.Hex()+`","amount":"5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, uint32(50), est.intent.Tolerance.Bps)
}

func TestEstimate_Errors(t *testing.T) {
	est := &fakeEstimator{err: apperror.New(apperror.CodeEstimationSuperseded)}
	h := newTestServer(api.Deps{Estimator: est})

	rec := do(t, h, http.MethodPost, "/v1/estimate", `{"session":"s","action":"deposit","vault":"`+testVault.Hex()+`","amount":"5"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(apperror.CodeEstimationSuperseded), errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/estimate", `{"session":"s","action":"swap","vault":"`+testVault.Hex()+`","amount":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidIntent), errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/estimate", `{"session":"s","action":"deposit","vault":"nope","amount":"5"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeValidationError), errorCode(t, rec))
}

func TestPrices(t *testing.T) {
	prices := &fakePrices{}
	h := newTestServer(api.Deps{Prices: prices})

	rec := do(t, h, http.MethodGet, "/v1/prices?symbols=WETH,%20,nope", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"WETH", "nope"}, prices.symbols)

	body := decodeBody(t, rec)
	weth := body["WETH"].(map[string]any)
	assert.Equal(t, "2000.5", weth["price"])
	assert.Equal(t, "https://img/weth.png", weth["logo"])

	rec = do(t, h, http.MethodGet, "/v1/prices", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidSymbols), errorCode(t, rec))
}

func TestCatalogRoutes(t *testing.T) {
	cat := &fakeCatalog{}
	h := newTestServer(api.Deps{Catalog: cat})

	rec := do(t, h, http.MethodGet, "/v1/etfs?page=2&limit=5&sort=tvl&owner="+testSender.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, cat.query.Page)
	assert.Equal(t, 5, cat.query.Limit)
	assert.Equal(t, catalogDomain.SortTVL, cat.query.Sort)
	assert.Equal(t, testSender, cat.query.Owner)

	rec = do(t, h, http.MethodGet, "/v1/etfs?page=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/etfs/"+testVault.Hex(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperror.CodeETFNotFound), errorCode(t, rec))

	rec = do(t, h, http.MethodGet, "/v1/portfolio/0xnope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/portfolio/"+testSender.Hex(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", decodeBody(t, rec)["totalUsd"])

	rec = do(t, h, http.MethodPost, "/v1/etfs/verify", `{"name":"Blue","symbol":"BLUE","depositToken":"`+testSender.Hex()+`","tokens":["`+testVault.Hex()+`"],"weights":[10000]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["valid"])

	rec = do(t, h, http.MethodPost, "/v1/etfs/verify", `{"name":"Blue","symbol":"BLUE","depositToken":"`+testSender.Hex()+`","tokens":["`+testVault.Hex()+`"],"weights":[5000]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(apperror.CodeInvalidETFParams), errorCode(t, rec))
}

func TestUnmountedRoutes(t *testing.T) {
	h := newTestServer(api.Deps{})

	rec := do(t, h, http.MethodGet, "/v1/prices?symbols=eth", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperror.CodeNotFound), errorCode(t, rec))

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsAndRequestID(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP up\n"))
	})
	h := newTestServer(api.Deps{Metrics: metrics})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(t, h, http.MethodPost, "/v1/convert/from-base", `{"baseUnits":"x","decimals":6}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody(t, rec)["error"].(map[string]any)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), errBody["traceId"])
}
