package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/etfkit/internal/apperror"
)

// fakeNode answers JSON-RPC requests from a method → result table.
func fakeNode(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		res, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":%s}`, req.ID, res)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCClient_BlockNumberAndChainID(t *testing.T) {
	srv := fakeNode(t, map[string]string{
		"eth_blockNumber": `"0x1b4"`,
		"eth_chainId":     `"0xaa36a7"`,
	})
	c, err := NewRPCClient(srv.URL, time.Second)
	require.NoError(t, err)

	n, err := c.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(436), n)

	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11155111), id.Int64())
}

func TestRPCClient_ErrorObject(t *testing.T) {
	srv := fakeNode(t, nil)
	c, err := NewRPCClient(srv.URL, time.Second)
	require.NoError(t, err)

	_, err = c.BlockNumber(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeEthereumRPCError))

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32601, rpcErr.Code)
}

func TestRPCClient_ConnectionFailure(t *testing.T) {
	c, err := NewRPCClient("http://127.0.0.1:1", 200*time.Millisecond)
	require.NoError(t, err)

	_, err = c.BlockNumber(context.Background())
	assert.True(t, apperror.IsCode(err, apperror.CodeEthereumConnectionFailed))
}
