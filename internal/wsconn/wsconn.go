// Package wsconn provides a WebSocket client that reconnects with
// exponential backoff and replays its subscriptions after each reconnect.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/fd1az/etfkit/internal/logger"
)

// ErrNotConnected is returned by Send while no connection is open.
var ErrNotConnected = errors.New("wsconn: not connected")

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PongTimeout    time.Duration
	DialTimeout    time.Duration
	MaxMessageSize int64 // 0 keeps the library default
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
		DialTimeout:    10 * time.Second,
		MaxMessageSize: 1 << 20,
	}
}

// MessageHandler receives every inbound message.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition. err is the cause of
// a disconnect, if any.
type StateHandler func(state State, err error)

// ConnectHandler runs after each successful (re)connect, typically to send
// subscriptions. An error drops the connection.
type ConnectHandler func(ctx context.Context) error

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log logger.LoggerInterface) Option {
	return func(c *Client) {
		c.logger = log
	}
}

// Client is a reconnecting WebSocket client.
type Client struct {
	config Config
	logger logger.LoggerInterface

	mu           sync.RWMutex
	conn         *websocket.Conn
	state        State
	reconnecting bool

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	onMessage MessageHandler
	onState   StateHandler
	onConnect ConnectHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a client. Nothing is dialed until Connect.
func New(config Config, opts ...Option) (*Client, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("wsconn: url is required")
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: config,
		logger: logger.NewNop(),
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OnMessage sets the inbound message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlerMu.Lock()
	c.onMessage = h
	c.handlerMu.Unlock()
}

// OnStateChange sets the state transition handler.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlerMu.Lock()
	c.onState = h
	c.handlerMu.Unlock()
}

// OnConnect sets the handler run after every successful connect.
func (c *Client) OnConnect(h ConnectHandler) {
	c.handlerMu.Lock()
	c.onConnect = h
	c.handlerMu.Unlock()
}

// Connect dials once. Later disconnects are recovered in the background
// until Close.
func (c *Client) Connect(ctx context.Context) error {
	if c.State() == StateClosed {
		return fmt.Errorf("wsconn: client closed")
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return fmt.Errorf("wsconn %s: %w", c.config.Name, err)
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx := ctx
	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.config.URL, nil)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return fmt.Errorf("client closed")
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}

	c.setState(StateConnected, nil)

	c.handlerMu.RLock()
	onConnect := c.onConnect
	c.handlerMu.RUnlock()
	if onConnect != nil {
		if err := onConnect(c.ctx); err != nil {
			c.logger.Warn(c.ctx, "websocket connect handler failed", "name", c.config.Name, "error", err)
			_ = conn.Close(websocket.StatusInternalError, "connect handler failed")
		}
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		c.handlerMu.RLock()
		h := c.onMessage
		c.handlerMu.RUnlock()
		if h != nil {
			h(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.isCurrent(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.config.PongTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Warn(c.ctx, "websocket ping failed", "name", c.config.Name, "error", err)
				_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

func (c *Client) isCurrent(conn *websocket.Conn) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn == conn
}

// handleDisconnect starts one reconnect loop per lost connection.
func (c *Client) handleDisconnect(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn || c.state == StateClosed || c.reconnecting {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.reconnecting = true
	c.mu.Unlock()

	_ = conn.CloseNow()
	c.logger.Warn(c.ctx, "websocket disconnected", "name", c.config.Name, "error", cause)
	c.setState(StateReconnecting, cause)

	go c.reconnect()
}

func (c *Client) reconnect() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialBackoff
	b.MaxInterval = c.config.MaxBackoff

	for attempt := 1; c.config.MaxReconnects == 0 || attempt <= c.config.MaxReconnects; attempt++ {
		wait := b.NextBackOff()
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(wait):
		}

		err := c.dial(c.ctx)
		if err == nil {
			c.logger.Info(c.ctx, "websocket reconnected", "name", c.config.Name, "attempt", attempt)
			return
		}
		c.logger.Warn(c.ctx, "websocket reconnect failed",
			"name", c.config.Name,
			"attempt", attempt,
			"backoff", wait.String(),
			"error", err)
	}

	c.setState(StateDisconnected, fmt.Errorf("gave up after %d reconnects", c.config.MaxReconnects))
}

// Send writes a text message.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, msg)
}

// SendJSON writes v as a JSON text message.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Close stops reconnecting and closes the connection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		c.setState(StateClosed, nil)
		c.cancel()
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
		}
	})
	return nil
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.handlerMu.RLock()
	h := c.onState
	c.handlerMu.RUnlock()
	if h != nil {
		h(state, err)
	}
}
