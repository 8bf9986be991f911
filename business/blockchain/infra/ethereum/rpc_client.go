package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/etfkit/internal/apperror"
	"github.com/fd1az/etfkit/internal/httpclient"
)

// rpcRequest is a JSON-RPC 2.0 request object.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCClient issues raw JSON-RPC calls to a node over HTTP. It covers
// methods ethclient has no typed wrapper for and backs the head watcher.
type RPCClient struct {
	http   httpclient.Client
	nextID atomic.Uint64
}

// NewRPCClient creates a client for the node at url.
func NewRPCClient(url string, timeout time.Duration) (*RPCClient, error) {
	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("ethereum-rpc"),
		httpclient.WithBaseURL(url),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{"Content-Type": "application/json"}),
	)
	if err != nil {
		return nil, err
	}
	return &RPCClient{http: hc}, nil
}

// Call invokes method with params and decodes the result into result.
func (c *RPCClient) Call(ctx context.Context, result any, method string, params ...any) error {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}

	var resp rpcResponse
	_, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("method", method)),
	).SetBody(req).SetResult(&resp).Post(ctx, "")
	if err != nil {
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}

	if resp.Error != nil {
		return apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(resp.Error),
			apperror.WithMessage(resp.Error.Message),
			apperror.WithContext(method))
	}
	if resp.ID != req.ID {
		return apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithContext(fmt.Sprintf("%s: response id %d, want %d", method, resp.ID, req.ID)))
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(method+": decode result"))
	}
	return nil
}

// BlockNumber returns the latest block number.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.Call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ChainID returns the chain ID reported by the node.
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.Call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}
