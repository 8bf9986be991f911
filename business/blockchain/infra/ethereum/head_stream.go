package ethereum

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/etfkit/internal/logger"
	"github.com/fd1az/etfkit/internal/wsconn"
)

const subscribeID = 1

// headNotification covers both the eth_subscribe reply and the
// eth_subscription pushes that follow it.
type headNotification struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Subscription string `json:"subscription"`
		Result       struct {
			Number hexutil.Uint64 `json:"number"`
		} `json:"result"`
	} `json:"params"`
}

// HeadStream subscribes to newHeads over the node websocket and feeds each
// header to a HeadWatcher. Polling keeps running underneath, so a dropped
// stream only slows head detection down to the poll interval.
type HeadStream struct {
	ws      *wsconn.Client
	watcher *HeadWatcher
	logger  logger.LoggerInterface
}

// NewHeadStream creates a stream for the websocket endpoint url.
func NewHeadStream(url string, watcher *HeadWatcher, log logger.LoggerInterface) (*HeadStream, error) {
	ws, err := wsconn.New(wsconn.DefaultConfig(url, "eth-heads"), wsconn.WithLogger(log))
	if err != nil {
		return nil, err
	}

	s := &HeadStream{ws: ws, watcher: watcher, logger: log}
	ws.OnConnect(s.subscribe)
	ws.OnMessage(s.handle)
	ws.OnStateChange(func(state wsconn.State, err error) {
		log.Debug(context.Background(), "head stream state", "state", string(state), "error", err)
	})
	return s, nil
}

// Run connects and blocks until ctx is done.
func (s *HeadStream) Run(ctx context.Context) error {
	if err := s.ws.Connect(ctx); err != nil {
		return fmt.Errorf("head stream: %w", err)
	}
	<-ctx.Done()
	return s.ws.Close()
}

// Connected reports whether the subscription socket is open.
func (s *HeadStream) Connected() bool {
	return s.ws.IsConnected()
}

func (s *HeadStream) subscribe(ctx context.Context) error {
	return s.ws.SendJSON(ctx, rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_subscribe",
		Params:  []any{"newHeads"},
		ID:      subscribeID,
	})
}

func (s *HeadStream) handle(ctx context.Context, msg []byte) {
	var n headNotification
	if err := json.Unmarshal(msg, &n); err != nil {
		s.logger.Warn(ctx, "malformed head notification", "error", err)
		return
	}

	switch {
	case n.Error != nil:
		s.logger.Warn(ctx, "head subscription rejected", "error", n.Error)
	case n.Method == "eth_subscription":
		s.watcher.Observe(ctx, uint64(n.Params.Result.Number))
	case n.ID == subscribeID:
		s.logger.Info(ctx, "subscribed to new heads", "subscription", string(n.Result))
	}
}

// Close stops the stream.
func (s *HeadStream) Close() error {
	return s.ws.Close()
}
