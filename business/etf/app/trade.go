package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	blockchainApp "github.com/fd1az/etfkit/business/blockchain/app"
	"github.com/fd1az/etfkit/business/etf/contracts"
	"github.com/fd1az/etfkit/business/etf/domain"
	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/logger"
)

// TradeConfig configures the trade service.
type TradeConfig struct {
	Factory common.Address
	DryRun  bool
}

type tradeMetrics struct {
	transactions metric.Int64Counter
}

// TradeService sends factory and vault transactions. Every call is
// simulated first; nothing is sent when the simulation reverts.
type TradeService struct {
	backend TxBackend
	gas     blockchainApp.GasOracle
	signer  Signer
	config  TradeConfig
	logger  logger.LoggerInterface

	// serializes nonce lookup and submission for the signer account
	sendMu sync.Mutex

	tracer  trace.Tracer
	metrics *tradeMetrics
}

// NewTradeService creates a trade service. A nil signer makes it
// read-only: every operation returns CodeSignerUnavailable.
func NewTradeService(backend TxBackend, gas blockchainApp.GasOracle, signer Signer, cfg TradeConfig, log logger.LoggerInterface) (*TradeService, error) {
	s := &TradeService{
		backend: backend,
		gas:     gas,
		signer:  signer,
		config:  cfg,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	counter, err := meter.Int64Counter(
		"etf_transactions_total",
		metric.WithDescription("Total ETF transactions by method and outcome"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s.metrics = &tradeMetrics{transactions: counter}

	return s, nil
}

// ReadOnly reports whether no signer is configured.
func (s *TradeService) ReadOnly() bool {
	return s.signer == nil
}

// CreateETF deploys a new ETF vault through the factory.
func (s *TradeService) CreateETF(ctx context.Context, p domain.CreateParams) (*domain.TxReceipt, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	factory, err := s.factory()
	if err != nil {
		return nil, err
	}
	data, err := contracts.PackCreateETF(p)
	if err != nil {
		return nil, packError("createETF", err)
	}
	return s.submit(ctx, "createETF", factory, data)
}

// Deposit deposits amount of the deposit token, reverting on-chain if
// fewer than minSharesOut shares would be minted.
func (s *TradeService) Deposit(ctx context.Context, vault common.Address, amount, minSharesOut *big.Int) (*domain.TxReceipt, error) {
	if err := checkTrade(vault, amount, minSharesOut); err != nil {
		return nil, err
	}
	data, err := contracts.PackDeposit(amount, minSharesOut)
	if err != nil {
		return nil, packError("deposit", err)
	}
	return s.submit(ctx, "deposit", vault, data)
}

// Redeem burns shares, reverting on-chain if the payout is below
// minAmountOut.
func (s *TradeService) Redeem(ctx context.Context, vault common.Address, shares, minAmountOut *big.Int) (*domain.TxReceipt, error) {
	if err := checkTrade(vault, shares, minAmountOut); err != nil {
		return nil, err
	}
	data, err := contracts.PackRedeem(shares, minAmountOut)
	if err != nil {
		return nil, packError("redeem", err)
	}
	return s.submit(ctx, "redeem", vault, data)
}

// Rebalance moves a vault to a new allocation.
func (s *TradeService) Rebalance(ctx context.Context, vault common.Address, a domain.Allocation) (*domain.TxReceipt, error) {
	if err := requireAddress(vault, "vault"); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	data, err := contracts.PackRebalance(a)
	if err != nil {
		return nil, packError("rebalance", err)
	}
	return s.submit(ctx, "rebalance", vault, data)
}

// UpdateParams updates vault tunables.
func (s *TradeService) UpdateParams(ctx context.Context, vault common.Address, p domain.VaultParams) (*domain.TxReceipt, error) {
	if err := requireAddress(vault, "vault"); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := contracts.PackUpdateParams(p)
	if err != nil {
		return nil, packError("updateParams", err)
	}
	return s.submit(ctx, "updateParams", vault, data)
}

// SetHLSAddress points the factory at a new HLS contract.
func (s *TradeService) SetHLSAddress(ctx context.Context, hls common.Address) (*domain.TxReceipt, error) {
	return s.factoryCall(ctx, "setHLSAddress", func() ([]byte, error) {
		if err := requireAddress(hls, "hls"); err != nil {
			return nil, err
		}
		return contracts.PackSetHLSAddress(hls)
	})
}

// SetTreasury sets where the factory sends collected fees.
func (s *TradeService) SetTreasury(ctx context.Context, treasury common.Address) (*domain.TxReceipt, error) {
	return s.factoryCall(ctx, "setTreasury", func() ([]byte, error) {
		if err := requireAddress(treasury, "treasury"); err != nil {
			return nil, err
		}
		return contracts.PackSetTreasury(treasury)
	})
}

// SetDepositFee sets the factory deposit fee in basis points.
func (s *TradeService) SetDepositFee(ctx context.Context, feeBps uint32) (*domain.TxReceipt, error) {
	return s.factoryCall(ctx, "setDepositFee", func() ([]byte, error) {
		if err := domain.ValidateFeeBps(feeBps); err != nil {
			return nil, err
		}
		return contracts.PackSetDepositFee(feeBps)
	})
}

// SetFeeSwapConfig sets the router and token used to swap collected fees.
func (s *TradeService) SetFeeSwapConfig(ctx context.Context, c domain.FeeSwapConfig) (*domain.TxReceipt, error) {
	return s.factoryCall(ctx, "setFeeSwapConfig", func() ([]byte, error) {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return contracts.PackSetFeeSwapConfig(c)
	})
}

// Approve lets spender (usually a vault) pull amount of token.
func (s *TradeService) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (*domain.TxReceipt, error) {
	if err := requireAddress(token, "token"); err != nil {
		return nil, err
	}
	if err := requireAddress(spender, "spender"); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("approve amount"))
	}
	data, err := contracts.PackApprove(spender, amount)
	if err != nil {
		return nil, packError("approve", err)
	}
	return s.submit(ctx, "approve", token, data)
}

func (s *TradeService) factoryCall(ctx context.Context, method string, pack func() ([]byte, error)) (*domain.TxReceipt, error) {
	factory, err := s.factory()
	if err != nil {
		return nil, err
	}
	data, err := pack()
	if err != nil {
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, packError(method, err)
	}
	return s.submit(ctx, method, factory, data)
}

// submit runs simulate, estimate, price, nonce, sign and send.
func (s *TradeService) submit(ctx context.Context, method string, to common.Address, data []byte) (*domain.TxReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "etf.submit",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("to", to.Hex()),
			attribute.Bool("dry_run", s.config.DryRun),
		),
	)
	defer span.End()

	receipt, err := s.doSubmit(ctx, method, to, data)

	outcome := "sent"
	switch {
	case err != nil:
		outcome = string(apperror.GetCode(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.logger.Error(ctx, "etf transaction failed", "method", method, "to", to.Hex(), "error", err)
	case receipt.DryRun:
		outcome = "dry_run"
		span.SetStatus(codes.Ok, outcome)
	default:
		span.SetAttributes(attribute.String("tx_hash", receipt.Hash.Hex()))
		span.SetStatus(codes.Ok, outcome)
		s.logger.Info(ctx, "etf transaction sent",
			"method", method,
			"to", to.Hex(),
			"hash", receipt.Hash.Hex(),
			"nonce", receipt.Nonce,
			"gas_limit", receipt.GasLimit,
		)
	}
	s.metrics.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))

	return receipt, err
}

func (s *TradeService) doSubmit(ctx context.Context, method string, to common.Address, data []byte) (*domain.TxReceipt, error) {
	if s.signer == nil {
		return nil, apperror.New(apperror.CodeSignerUnavailable,
			apperror.WithContext(method))
	}

	from := s.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &to, Data: data}

	if _, err := s.backend.CallContract(ctx, msg, nil); err != nil {
		return nil, simulationError(err, apperror.CodeContractCallFailed, "simulate "+method)
	}

	gasLimit, err := s.gas.EstimateGas(ctx, msg)
	if err != nil {
		return nil, err
	}
	price, err := s.gas.GetGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if price.Capped {
		s.logger.Warn(ctx, "gas price capped for transaction", "method", method, "gwei", price.Gwei().String())
	}

	receipt := &domain.TxReceipt{
		Method:   method,
		To:       to,
		GasLimit: gasLimit,
		GasPrice: new(big.Int).Set(price.Wei),
		DryRun:   s.config.DryRun,
	}
	if s.config.DryRun {
		return receipt, nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("pending nonce"))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: receipt.GasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})

	signed, err := s.signer.SignTx(tx)
	if err != nil {
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext("sign "+method))
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext("send "+method))
	}

	receipt.Hash = signed.Hash()
	receipt.Nonce = nonce
	return receipt, nil
}

func (s *TradeService) factory() (common.Address, error) {
	if s.config.Factory == (common.Address{}) {
		return common.Address{}, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("contracts.factory_address is not set"))
	}
	return s.config.Factory, nil
}

func checkTrade(vault common.Address, amount, minOut *big.Int) error {
	if err := requireAddress(vault, "vault"); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("amount must be positive"))
	}
	if minOut != nil && minOut.Sign() < 0 {
		return apperror.New(apperror.CodeInvalidAmount, apperror.WithContext("minimum output is negative"))
	}
	return nil
}

func requireAddress(addr common.Address, field string) error {
	if addr == (common.Address{}) {
		return apperror.New(apperror.CodeInvalidETFParams,
			apperror.WithContext(field+" address is zero"))
	}
	return nil
}

func packError(method string, err error) error {
	return apperror.New(apperror.CodeInvalidETFParams,
		apperror.WithCause(err),
		apperror.WithContext("pack "+method))
}
