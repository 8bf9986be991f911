// Package di contains dependency injection tokens for the etf context.
package di

import (
	"github.com/fd1az/etfkit/business/etf/app"
	"github.com/fd1az/etfkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	EstimationService = di.NewToken[*app.EstimationService]("etf.EstimationService")
	Tracker           = di.NewToken[*app.Tracker]("etf.Tracker")
	TradeService      = di.NewToken[*app.TradeService]("etf.TradeService")
)

// Private dependency tokens - internal to etf module
var (
	Signer = di.NewToken[app.Signer]("etf:signer")
)

func GetEstimationService(c di.ServiceRegistry) *app.EstimationService {
	return di.GetToken(c, EstimationService)
}

func GetTracker(c di.ServiceRegistry) *app.Tracker {
	return di.GetToken(c, Tracker)
}

func GetTradeService(c di.ServiceRegistry) *app.TradeService {
	return di.GetToken(c, TradeService)
}

func GetSigner(c di.ServiceRegistry) app.Signer {
	return di.GetToken(c, Signer)
}
