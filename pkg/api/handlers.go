package api

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	catalogDomain "github.com/fd1az/etfkit/business/catalog/domain"
	etfApp "github.com/fd1az/etfkit/business/etf/app"
	etfDomain "github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/asset"
)

// DefaultSlippagePercent applies when an estimate request names none.
const DefaultSlippagePercent = "0.5"

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

type toBaseRequest struct {
	Amount   string `json:"amount"`
	Decimals *uint8 `json:"decimals" validate:"required,max=30"`
	Sanitize bool   `json:"sanitize"`
}

type toBaseResponse struct {
	Amount    string `json:"amount"`
	BaseUnits string `json:"baseUnits"`
}

func (s *Server) handleToBase(c echo.Context) error {
	var req toBaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	amount := req.Amount
	if req.Sanitize {
		amount = asset.SanitizeInput(amount, *req.Decimals)
	}
	return c.JSON(http.StatusOK, toBaseResponse{
		Amount:    amount,
		BaseUnits: asset.ToBaseUnits(amount, *req.Decimals),
	})
}

type fromBaseRequest struct {
	BaseUnits string `json:"baseUnits" validate:"required"`
	Decimals  *uint8 `json:"decimals" validate:"required,max=30"`
}

func (s *Server) handleFromBase(c echo.Context) error {
	var req fromBaseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	raw, err := asset.ParseBaseUnits(req.BaseUnits)
	if err != nil {
		return badRequest(apperror.CodeInvalidAmount, "baseUnits="+req.BaseUnits, err)
	}
	return c.JSON(http.StatusOK, toBaseResponse{
		Amount:    asset.FromBaseUnits(raw, *req.Decimals),
		BaseUnits: raw.String(),
	})
}

type slippageRequest struct {
	Amount  string  `json:"amount" validate:"required"`
	Percent string  `json:"percent" validate:"required_without=Bps"`
	Bps     *uint32 `json:"bps" validate:"omitempty,max=10000"`
}

type slippageResponse struct {
	Amount    string `json:"amount"`
	MinAmount string `json:"minAmount"`
	Bps       uint32 `json:"bps"`
	Percent   string `json:"percent"`
	HighRisk  bool   `json:"highRisk"`
}

func (s *Server) handleSlippage(c echo.Context) error {
	var req slippageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	amount, err := asset.ParseBaseUnits(req.Amount)
	if err != nil {
		return badRequest(apperror.CodeInvalidAmount, "amount="+req.Amount, err)
	}

	var tol asset.Tolerance
	if req.Bps != nil {
		tol, err = asset.ToleranceFromBps(*req.Bps)
	} else {
		tol, err = parseTolerance(req.Percent)
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, slippageResponse{
		Amount:    amount.String(),
		MinAmount: tol.MinAmountOut(amount).String(),
		Bps:       tol.Bps,
		Percent:   tol.Percent.String(),
		HighRisk:  tol.IsHighRisk(),
	})
}

type estimateRequest struct {
	Session         string `json:"session" validate:"required,max=128"`
	Action          string `json:"action" validate:"required"`
	Vault           string `json:"vault" validate:"required,eth_addr"`
	Amount          string `json:"amount" validate:"required"`
	Sender          string `json:"sender" validate:"omitempty,eth_addr"`
	SlippagePercent string `json:"slippagePercent"`
	AllowanceKnown  bool   `json:"allowanceKnown"`
}

func (r estimateRequest) intent() (etfDomain.Intent, error) {
	action, err := etfDomain.ParseAction(r.Action)
	if err != nil {
		return etfDomain.Intent{}, badRequest(apperror.CodeInvalidIntent, "action="+r.Action, err)
	}

	amount, err := asset.ParseBaseUnits(r.Amount)
	if err != nil {
		return etfDomain.Intent{}, badRequest(apperror.CodeInvalidAmount, "amount="+r.Amount, err)
	}

	percent := r.SlippagePercent
	if percent == "" {
		percent = DefaultSlippagePercent
	}
	tol, err := parseTolerance(percent)
	if err != nil {
		return etfDomain.Intent{}, err
	}

	intent := etfDomain.Intent{
		Action:         action,
		Vault:          common.HexToAddress(r.Vault),
		InputAmount:    amount,
		AllowanceKnown: r.AllowanceKnown,
		Tolerance:      tol,
	}
	if r.Sender != "" {
		intent.Sender = common.HexToAddress(r.Sender)
	}
	return intent, nil
}

func (s *Server) handleEstimate(c echo.Context) error {
	var req estimateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	intent, err := req.intent()
	if err != nil {
		return err
	}

	res, err := s.deps.Estimator.Estimate(c.Request().Context(), etfApp.TrackKey(req.Session, intent), intent)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res.Snapshot())
}

func (s *Server) handlePrices(c echo.Context) error {
	var symbols []string
	for _, sym := range strings.Split(c.QueryParam("symbols"), ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, sym)
		}
	}
	if len(symbols) == 0 {
		return apperror.New(apperror.CodeInvalidSymbols, apperror.WithContext("symbols query parameter is empty"))
	}

	data, err := s.deps.Prices.FetchTokenData(c.Request().Context(), symbols)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, data)
}

func (s *Server) handleListETFs(c echo.Context) error {
	var (
		q     catalogDomain.ListQuery
		sort  string
		owner string
	)
	err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("limit", &q.Limit).
		String("search", &q.Search).
		String("sort", &sort).
		String("owner", &owner).
		BindError()
	if err != nil {
		return badRequest(apperror.CodeInvalidInput, "query", err)
	}

	q.Sort = catalogDomain.Sort(sort)
	if owner != "" {
		addr, err := parseAddress("owner", owner)
		if err != nil {
			return err
		}
		q.Owner = addr
	}

	page, err := s.deps.Catalog.ListETFs(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetETF(c echo.Context) error {
	vault, err := parseAddress("vault", c.Param("vault"))
	if err != nil {
		return err
	}

	etf, err := s.deps.Catalog.GetETF(c.Request().Context(), vault)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, etf)
}

func (s *Server) handleVerifyETF(c echo.Context) error {
	var params etfDomain.CreateParams
	if err := c.Bind(&params); err != nil {
		return err
	}

	v, err := s.deps.Catalog.VerifyETF(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) handlePortfolio(c echo.Context) error {
	owner, err := parseAddress("owner", c.Param("owner"))
	if err != nil {
		return err
	}

	v, err := s.deps.Catalog.PortfolioValue(c.Request().Context(), owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func parseTolerance(percent string) (asset.Tolerance, error) {
	p, err := decimal.NewFromString(strings.TrimSpace(percent))
	if err != nil {
		return asset.Tolerance{}, badRequest(apperror.CodeInvalidSlippage, "percent="+percent, err)
	}
	return asset.ToleranceFromPercent(p)
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(field+" is not a hex address: "+s))
	}
	return common.HexToAddress(s), nil
}
