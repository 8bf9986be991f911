package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/etfkit/business/etf/contracts"
	"github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/asset"
	"github.com/fd1az/etfkit/internal/circuitbreaker"
	"github.com/fd1az/etfkit/internal/logger"
)

const (
	tracerName = "github.com/fd1az/etfkit/business/etf/app"
	meterName  = "github.com/fd1az/etfkit/business/etf/app"
)

// EstimationConfig configures the estimation service.
type EstimationConfig struct {
	// DepositToken is read from the vault when zero.
	DepositToken common.Address
	CallTimeout  time.Duration
}

type estimationMetrics struct {
	estimations metric.Int64Counter
	latency     metric.Float64Histogram
}

// EstimationService previews vault deposits and redeems with a single
// read-only simulation call. Results are never cached and failures are
// never retried.
type EstimationService struct {
	caller ContractCaller
	config EstimationConfig
	logger logger.LoggerInterface

	cb      *circuitbreaker.CircuitBreaker[[]byte]
	tracer  trace.Tracer
	metrics *estimationMetrics
	now     func() time.Time
}

var _ Estimator = (*EstimationService)(nil)

// NewEstimationService creates an estimation service.
func NewEstimationService(caller ContractCaller, cfg EstimationConfig, log logger.LoggerInterface) (*EstimationService, error) {
	cbCfg := circuitbreaker.DefaultConfig("etf-estimation")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || contracts.IsRevert(err) || errors.Is(err, context.Canceled)
	}

	s := &EstimationService{
		caller: caller,
		config: cfg,
		logger: log,
		cb:     circuitbreaker.New[[]byte](cbCfg),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *EstimationService) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &estimationMetrics{}

	s.metrics.estimations, err = meter.Int64Counter(
		"etf_estimations_total",
		metric.WithDescription("Total trade estimations by action and outcome"),
		metric.WithUnit("{estimation}"),
	)
	if err != nil {
		return err
	}

	s.metrics.latency, err = meter.Float64Histogram(
		"etf_estimation_duration_seconds",
		metric.WithDescription("Latency of trade simulation calls"),
		metric.WithUnit("s"),
	)
	return err
}

// EstimateOutput simulates intent and bounds the output by its slippage
// tolerance. A revert yields CodeSimulationReverted with the decoded reason;
// any other failure yields CodeEstimationFailed.
func (s *EstimationService) EstimateOutput(ctx context.Context, intent domain.Intent) (*domain.EstimationResult, error) {
	ctx, span := s.tracer.Start(ctx, "etf.estimate_output",
		trace.WithAttributes(
			attribute.String("action", intent.Action.String()),
			attribute.String("vault", intent.Vault.Hex()),
		),
	)
	defer span.End()

	start := s.now()
	result, err := s.estimate(ctx, intent)

	outcome := "ok"
	if err != nil {
		outcome = string(apperror.GetCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(
			attribute.String("output", result.Output().String()),
			attribute.String("min_output", result.MinOutput().String()),
		)
		span.SetStatus(codes.Ok, "estimated")
	}

	attrs := metric.WithAttributes(
		attribute.String("action", intent.Action.String()),
		attribute.String("outcome", outcome),
	)
	s.metrics.estimations.Add(ctx, 1, attrs)
	s.metrics.latency.Record(ctx, s.now().Sub(start).Seconds(), attrs)

	return result, err
}

func (s *EstimationService) estimate(ctx context.Context, intent domain.Intent) (*domain.EstimationResult, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	if intent.NeedsAllowanceCheck() {
		if err := s.checkAllowance(ctx, intent); err != nil {
			return nil, err
		}
	}

	data, err := contracts.PackSimulation(intent.Action, intent.InputAmount)
	if err != nil {
		return nil, apperror.New(apperror.CodeEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext("pack simulation call"))
	}

	ret, err := s.call(ctx, ethereum.CallMsg{From: intent.Sender, To: &intent.Vault, Data: data})
	if err != nil {
		s.logger.Warn(ctx, "estimation call failed", "action", intent.Action, "vault", intent.Vault.Hex(), "error", err)
		return nil, simulationError(err, apperror.CodeEstimationFailed, "simulate "+intent.Action.Method())
	}

	est, err := contracts.UnpackEstimate(intent.Action.Method(), ret)
	if err != nil {
		return nil, apperror.New(apperror.CodeEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext("decode simulation result"))
	}

	minOut := asset.ApplySlippage(est.Output, intent.Tolerance.Bps)
	return domain.NewEstimationResult(intent.Action, est.Output, est.PerAsset, minOut, intent.Tolerance.Bps, s.now()), nil
}

// checkAllowance reports CodeInsufficientAllowance up front instead of
// letting the simulation fail with a transferFrom revert.
func (s *EstimationService) checkAllowance(ctx context.Context, intent domain.Intent) error {
	if intent.Sender == (common.Address{}) {
		return apperror.New(apperror.CodeInvalidIntent,
			apperror.WithContext("sender is required to check the deposit allowance"))
	}

	token, err := s.depositToken(ctx, intent.Vault)
	if err != nil {
		return err
	}

	data, err := contracts.PackAllowance(intent.Sender, intent.Vault)
	if err != nil {
		return apperror.New(apperror.CodeEstimationFailed, apperror.WithCause(err))
	}
	ret, err := s.call(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return simulationError(err, apperror.CodeEstimationFailed, "read allowance")
	}
	allowance, err := contracts.UnpackUint256(contracts.ERC20ABI, "allowance", ret)
	if err != nil {
		return apperror.New(apperror.CodeEstimationFailed, apperror.WithCause(err))
	}

	if allowance.Cmp(intent.InputAmount) < 0 {
		return apperror.New(apperror.CodeInsufficientAllowance,
			apperror.WithContext(fmt.Sprintf("allowance %s < amount %s of token %s",
				allowance, intent.InputAmount, token.Hex())))
	}
	return nil
}

func (s *EstimationService) depositToken(ctx context.Context, vault common.Address) (common.Address, error) {
	if s.config.DepositToken != (common.Address{}) {
		return s.config.DepositToken, nil
	}

	data, err := contracts.PackDepositToken()
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeEstimationFailed, apperror.WithCause(err))
	}
	ret, err := s.call(ctx, ethereum.CallMsg{To: &vault, Data: data})
	if err != nil {
		return common.Address{}, simulationError(err, apperror.CodeEstimationFailed, "read deposit token")
	}
	token, err := contracts.UnpackAddress(contracts.VaultABI, "depositToken", ret)
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeEstimationFailed, apperror.WithCause(err))
	}
	return token, nil
}

func (s *EstimationService) call(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if s.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CallTimeout)
		defer cancel()
	}
	return s.cb.Execute(func() ([]byte, error) {
		return s.caller.CallContract(ctx, msg, nil)
	})
}

// simulationError maps a failed eth_call to CodeSimulationReverted when the
// node reported a revert, otherwise to code.
func simulationError(err error, code apperror.Code, what string) error {
	if reason, ok := contracts.RevertReason(err); ok {
		return apperror.New(apperror.CodeSimulationReverted,
			apperror.WithCause(err),
			apperror.WithContext(reason))
	}
	return apperror.New(code,
		apperror.WithCause(err),
		apperror.WithContext(what))
}
