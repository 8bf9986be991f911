// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/fd1az/etfkit/business/blockchain/app"
	"github.com/fd1az/etfkit/business/blockchain/infra/ethereum"
	"github.com/fd1az/etfkit/internal/di"
)

// Public service tokens - exposed to other modules
var (
	BlockchainService = di.NewToken[*app.BlockchainService]("blockchain.BlockchainService")
	GasOracle         = di.NewToken[app.GasOracle]("blockchain.GasOracle")
	RPCClient         = di.NewToken[*ethereum.RPCClient]("blockchain.RPCClient")
)

// Private dependency tokens - internal to blockchain module
var (
	HeadWatcher = di.NewToken[*ethereum.HeadWatcher]("blockchain:headWatcher")
	HeadStream  = di.NewToken[*ethereum.HeadStream]("blockchain:headStream")
)

func GetBlockchainService(c di.ServiceRegistry) *app.BlockchainService {
	return di.GetToken(c, BlockchainService)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}

func GetRPCClient(c di.ServiceRegistry) *ethereum.RPCClient {
	return di.GetToken(c, RPCClient)
}

func GetHeadWatcher(c di.ServiceRegistry) *ethereum.HeadWatcher {
	return di.GetToken(c, HeadWatcher)
}

func GetHeadStream(c di.ServiceRegistry) *ethereum.HeadStream {
	return di.GetToken(c, HeadStream)
}
