package actuate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playcast/internal/core/domain"
	apperrors "playcast/pkg/errors"
	"playcast/pkg/retry"
)

const defaultBridgeWriteTimeout = 2 * time.Second

var (
	errBridgeClosed       = errors.New("bridge closed")
	errBridgeDisconnected = errors.New("bridge disconnected")
)

// bridgeConn is the websocket client shared by the bridge-backed
// adapters. Each adapter owns one connection to the local driver
// agent; the agent owns the actual devices.
type bridgeConn struct {
	url          string
	dialTimeout  time.Duration
	writeTimeout time.Duration
	retryCfg     retry.Config
	logger       *zap.SugaredLogger

	onReconnect func()

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	conn         *websocket.Conn
	closed       bool
	reconnecting bool
}

func newBridgeConn(url string, dialTimeout time.Duration, logger *zap.SugaredLogger) *bridgeConn {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &bridgeConn{
		url:          url,
		dialTimeout:  dialTimeout,
		writeTimeout: defaultBridgeWriteTimeout,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// setOnReconnect registers a callback fired after every successful
// reconnect, before sends resume.
func (c *bridgeConn) setOnReconnect(fn func()) {
	c.onReconnect = fn
}

// connect dials the agent with backoff. Called once at startup; later
// drops reconnect in the background.
func (c *bridgeConn) connect(ctx context.Context) error {
	conn, err := retry.RetryWithResult(ctx, c.retryCfg, c.dial)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return errBridgeClosed
	}
	c.conn = conn
	c.logger.Infow("driver bridge connected", "url", c.url)
	return nil
}

func (c *bridgeConn) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	return conn, err
}

// sendJSON writes one message. A write failure marks the connection
// dead and kicks off a background redial; callers fail fast until it
// lands.
func (c *bridgeConn) sendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errBridgeClosed
	}
	if c.conn == nil {
		return errBridgeDisconnected
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err := c.conn.WriteJSON(v)
	if err == nil {
		return nil
	}

	c.conn.Close()
	c.conn = nil
	if !c.reconnecting {
		c.reconnecting = true
		go c.reconnect()
	}
	return err
}

func (c *bridgeConn) reconnect() {
	conn, err := retry.RetryWithResult(c.ctx, c.retryCfg, c.dial)

	c.mu.Lock()
	c.reconnecting = false
	if err != nil || c.closed {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warnw("driver bridge reconnect failed", "url", c.url, "error", err)
		}
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.logger.Infow("driver bridge reconnected", "url", c.url)
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *bridgeConn) close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// statePayload is the wire form of a controller snapshot.
type statePayload struct {
	Type         string `json:"type"`
	Buttons      uint16 `json:"buttons"`
	LeftTrigger  uint8  `json:"left_trigger"`
	RightTrigger uint8  `json:"right_trigger"`
	ThumbLX      int16  `json:"thumb_lx"`
	ThumbLY      int16  `json:"thumb_ly"`
	ThumbRX      int16  `json:"thumb_rx"`
	ThumbRY      int16  `json:"thumb_ry"`
}

// BridgeGamepad feeds full controller snapshots to the driver agent.
type BridgeGamepad struct {
	conn *bridgeConn
}

func NewBridgeGamepad(url string, dialTimeout time.Duration, logger *zap.SugaredLogger) *BridgeGamepad {
	return &BridgeGamepad{conn: newBridgeConn(url, dialTimeout, logger)}
}

// SetOnReconnect registers a hook fired after a successful redial.
func (g *BridgeGamepad) SetOnReconnect(fn func()) {
	g.conn.setOnReconnect(fn)
}

func (g *BridgeGamepad) Connect(ctx context.Context) error {
	return g.conn.connect(ctx)
}

func (g *BridgeGamepad) Push(ctx context.Context, state domain.GamepadState) error {
	err := g.conn.sendJSON(statePayload{
		Type:         "gamepad-state",
		Buttons:      state.Buttons,
		LeftTrigger:  state.LeftTrigger,
		RightTrigger: state.RightTrigger,
		ThumbLX:      state.ThumbLX,
		ThumbLY:      state.ThumbLY,
		ThumbRX:      state.ThumbRX,
		ThumbRY:      state.ThumbRY,
	})
	if err != nil {
		return apperrors.NewActuationFailure(err, "gamepad bridge")
	}
	return nil
}

func (g *BridgeGamepad) Close() error {
	return g.conn.close()
}
