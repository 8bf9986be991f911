package apperror

import "net/http"

// Code is the stable, machine-readable identifier of a failure. API clients
// switch on it, so values never change once released.
type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeValidationError    Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"

	CodeInvalidAmount   Code = "INVALID_AMOUNT"
	CodeInvalidDecimals Code = "INVALID_DECIMALS"
	CodeInvalidSlippage Code = "INVALID_SLIPPAGE"

	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"

	CodeInvalidIntent         Code = "INVALID_INTENT"
	CodeInvalidETFParams      Code = "INVALID_ETF_PARAMS"
	CodeEstimationFailed      Code = "ESTIMATION_FAILED"
	CodeEstimationSuperseded  Code = "ESTIMATION_SUPERSEDED"
	CodeSimulationReverted    Code = "SIMULATION_REVERTED"
	CodeInsufficientAllowance Code = "INSUFFICIENT_ALLOWANCE"
	CodeSignerUnavailable     Code = "SIGNER_UNAVAILABLE"
	CodeTransactionFailed     Code = "TRANSACTION_FAILED"

	CodePriceFetchFailed Code = "PRICE_FETCH_FAILED"
	CodePriceRateLimited Code = "PRICE_RATE_LIMITED"
	CodeInvalidSymbols   Code = "INVALID_SYMBOLS"

	CodeBackendConnectionFailed Code = "BACKEND_CONNECTION_FAILED"
	CodeBackendError            Code = "BACKEND_ERROR"
	CodeETFNotFound             Code = "ETF_NOT_FOUND"

	CodeCacheError      Code = "CACHE_ERROR"
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)

type codeInfo struct {
	status  int
	message string
}

// catalog holds the default status and message per code. Codes missing
// here answer 500 with the code itself as message.
var catalog = map[Code]codeInfo{
	CodeInvalidInput:       {http.StatusBadRequest, "Invalid input provided"},
	CodeValidationError:    {http.StatusBadRequest, "Validation error"},
	CodeNotFound:           {http.StatusNotFound, "Resource not found"},
	CodeConfigurationError: {http.StatusInternalServerError, "Configuration error"},
	CodeInternalError:      {http.StatusInternalServerError, "Internal server error"},
	CodeUnknownError:       {http.StatusInternalServerError, "An unknown error occurred"},

	CodeInvalidAmount:   {http.StatusBadRequest, "Invalid token amount"},
	CodeInvalidDecimals: {http.StatusBadRequest, "Token decimals out of range"},
	CodeInvalidSlippage: {http.StatusBadRequest, "Slippage tolerance must be between 0 and 100 percent"},

	CodeEthereumConnectionFailed: {http.StatusServiceUnavailable, "Ethereum node unreachable"},
	CodeEthereumRPCError:         {http.StatusBadGateway, "Ethereum RPC call failed"},
	CodeGasEstimationFailed:      {http.StatusBadGateway, "Gas estimation failed"},
	CodeContractCallFailed:       {http.StatusBadGateway, "Contract call failed"},

	CodeInvalidIntent:         {http.StatusBadRequest, "Invalid deposit or redeem request"},
	CodeInvalidETFParams:      {http.StatusBadRequest, "Invalid ETF parameters"},
	CodeEstimationFailed:      {http.StatusBadGateway, "Failed to estimate output"},
	CodeEstimationSuperseded:  {http.StatusConflict, "Estimation superseded by a newer request"},
	CodeSimulationReverted:    {http.StatusUnprocessableEntity, "Transaction simulation reverted"},
	CodeInsufficientAllowance: {http.StatusUnprocessableEntity, "Deposit token allowance is too low"},
	CodeSignerUnavailable:     {http.StatusServiceUnavailable, "No signing key configured"},
	CodeTransactionFailed:     {http.StatusBadGateway, "Failed to send transaction"},

	CodePriceFetchFailed: {http.StatusBadGateway, "Failed to fetch token prices"},
	CodePriceRateLimited: {http.StatusTooManyRequests, "Price API rate limit exceeded"},
	CodeInvalidSymbols:   {http.StatusBadRequest, "No valid token symbols provided"},

	CodeBackendConnectionFailed: {http.StatusServiceUnavailable, "Backend API unreachable"},
	CodeBackendError:            {http.StatusBadGateway, "Backend API returned an error"},
	CodeETFNotFound:             {http.StatusNotFound, "ETF not found"},

	CodeCacheError:      {http.StatusInternalServerError, "Shared cache unavailable"},
	CodeCircuitOpen:     {http.StatusServiceUnavailable, "Circuit breaker is open"},
	CodeCircuitHalfOpen: {http.StatusServiceUnavailable, "Circuit breaker is half-open"},
}

// Status is the HTTP status for c.
func (c Code) Status() int {
	if info, ok := catalog[c]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Message is the default human-readable text for c.
func (c Code) Message() string {
	if info, ok := catalog[c]; ok {
		return info.message
	}
	return string(c)
}
