// Package socketio is a minimal Socket.IO v4 client over the Engine.IO v4
// websocket transport. It speaks only the main namespace and JSON events,
// which is all the ZeroStack realtime server uses.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"zerostack-chat/internal/logging"
)

// Lifecycle events delivered through On alongside server events.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

const (
	defaultPath              = "/socket.io/"
	defaultReconnectDelay    = time.Second
	defaultReconnectMaxDelay = 5 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
)

type Options struct {
	// URL is the server origin; http(s) and ws(s) schemes are accepted.
	URL    string
	Path   string
	Auth   map[string]any
	Header http.Header
	Dialer *websocket.Dialer

	ReconnectDelay    time.Duration
	ReconnectMaxDelay time.Duration
	WriteTimeout      time.Duration

	Logger *logging.Logger
}

type Client struct {
	url          string
	opts         Options
	connectFrame []byte
	logger       *logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	done      chan struct{}

	mu        sync.Mutex
	handlers  map[string][]func(json.RawMessage)
	conn      *websocket.Conn
	connected bool
	closed    bool
	pending   [][]byte
	err       error

	writeMu sync.Mutex
}

var errServerDisconnect = errors.New("server disconnected the namespace")

// New prepares a client. Nothing is dialed until Connect, so listeners
// registered with On in between see the first connect.
func New(opts Options) (*Client, error) {
	if opts.Logger == nil {
		panic("socketio.New: logger must not be nil")
	}
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	target, err := endpointURL(opts.URL, opts.Path)
	if err != nil {
		return nil, err
	}
	connectFrame, err := encodeConnect(opts.Auth)
	if err != nil {
		return nil, err
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.ReconnectMaxDelay < opts.ReconnectDelay {
		opts.ReconnectMaxDelay = max(defaultReconnectMaxDelay, opts.ReconnectDelay)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:          target,
		opts:         opts,
		connectFrame: connectFrame,
		logger:       opts.Logger.Component("socketio"),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		handlers:     make(map[string][]func(json.RawMessage)),
	}, nil
}

func endpointURL(raw string, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse realtime URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported realtime URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("realtime URL has no host")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path
	u.RawPath = ""
	u.Fragment = ""
	query := url.Values{}
	query.Set("EIO", "4")
	query.Set("transport", "websocket")
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// On registers fn for a server event or one of the lifecycle events.
// Callbacks run on the client's reader goroutine, in arrival order.
func (c *Client) On(event string, fn func(json.RawMessage)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], fn)
}

// Connect starts the connection loop. It returns immediately; progress is
// reported through the lifecycle events.
func (c *Client) Connect() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	c.startOnce.Do(func() {
		go c.run()
	})
	return nil
}

// Emit sends an event. While the namespace is not connected the frame is
// buffered and flushed, in order, after the next successful connect.
func (c *Client) Emit(event string, payload any) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected || c.conn == nil {
		c.pending = append(c.pending, frame)
		c.mu.Unlock()
		c.logger.Debug("buffered event until connected", logging.Field("event", event))
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.write(conn, frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Done is closed once the connection loop has stopped for good.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the loop stopped: ErrClosed after Close, a *ConnectError
// after a refused handshake, nil after a server-side namespace disconnect.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close leaves the namespace and stops reconnecting. No callbacks start
// after Close returns.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn, connected := c.conn, c.connected
	c.pending = nil
	c.mu.Unlock()

	if conn != nil && connected {
		if err := c.write(conn, []byte{engineMessage, socketDisconnect}); err != nil {
			c.logger.Debug("failed to send namespace disconnect", logging.Field("error", err))
		}
	}
	c.cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	// Never started: nothing else will close done.
	c.startOnce.Do(func() {
		c.setErr(ErrClosed)
		close(c.done)
	})
	c.logger.Debug("client closed")
	return nil
}

func (c *Client) run() {
	defer close(c.done)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = c.opts.ReconnectDelay
	retry.MaxInterval = c.opts.ReconnectMaxDelay
	retry.Reset()

	_, err := backoff.Retry(c.ctx, func() (struct{}, error) {
		err := c.runSession(retry)
		if err == nil {
			return struct{}{}, nil
		}
		if c.ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ErrClosed)
		}
		if IsConnectError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(retry),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Debug("reconnecting",
				logging.Field("error", err),
				logging.Field("next_retry", next.String()))
		}),
	)
	if errors.Is(err, context.Canceled) {
		err = ErrClosed
	}
	c.setErr(err)

	switch {
	case err == nil:
		c.logger.Info("realtime connection ended by server")
	case errors.Is(err, ErrClosed):
	default:
		c.logger.Warn("realtime connection stopped", logging.Field("error", err))
	}
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// runSession runs one websocket connection from dial to drop. A nil return
// means the server ended the namespace and no reconnect should follow.
func (c *Client) runSession(retry *backoff.ExponentialBackOff) (err error) {
	ws, open, err := c.dial()
	if err != nil {
		if c.ctx.Err() == nil {
			c.fire(EventConnectError, errorPayload(err.Error()))
		}
		return err
	}
	defer ws.Close()
	if !c.attach(ws) {
		return ErrClosed
	}
	defer func() {
		wasConnected := c.detach(ws)
		switch {
		case c.ctx.Err() != nil:
		case errors.Is(err, errServerDisconnect):
			c.fire(EventDisconnect, reasonPayload("io server disconnect"))
			err = nil
		case err == nil, IsConnectError(err):
		case wasConnected:
			c.fire(EventDisconnect, reasonPayload("transport close"))
		default:
			c.fire(EventConnectError, errorPayload(err.Error()))
		}
	}()

	if err := c.write(ws, c.connectFrame); err != nil {
		return fmt.Errorf("send namespace connect: %w", err)
	}

	liveness := open.liveness()
	for {
		_ = ws.SetReadDeadline(time.Now().Add(liveness))
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.handleFrame(ws, frame, retry); err != nil {
			return err
		}
	}
}

func (c *Client) dial() (*websocket.Conn, openPayload, error) {
	c.logger.Debug("dialing", logging.Field("url", c.url))
	ws, resp, err := c.opts.Dialer.DialContext(c.ctx, c.url, c.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, openPayload{}, fmt.Errorf("websocket handshake %s: %w", resp.Status, err)
		}
		return nil, openPayload{}, err
	}

	success := false
	defer func() {
		if !success {
			_ = ws.Close()
		}
	}()

	_ = ws.SetReadDeadline(time.Now().Add(defaultHandshakeTimeout))
	_, frame, err := ws.ReadMessage()
	if err != nil {
		return nil, openPayload{}, fmt.Errorf("read engine.io open: %w", err)
	}
	p, err := parsePacket(frame)
	if err != nil || p.engine != engineOpen {
		return nil, openPayload{}, fmt.Errorf("unexpected engine.io open frame %q", logging.Truncate(string(frame)))
	}
	var open openPayload
	if err := json.Unmarshal(p.data, &open); err != nil {
		return nil, openPayload{}, fmt.Errorf("decode engine.io open: %w", err)
	}

	success = true
	c.logger.Debug("engine.io session opened",
		logging.Field("sid", open.SID),
		logging.Field("ping_interval_ms", open.PingInterval),
		logging.Field("ping_timeout_ms", open.PingTimeout),
	)
	return ws, open, nil
}

func (c *Client) handleFrame(ws *websocket.Conn, frame []byte, retry *backoff.ExponentialBackOff) error {
	p, err := parsePacket(frame)
	if err != nil {
		c.logger.Debug("ignoring malformed frame", logging.Field("error", err))
		return nil
	}

	switch p.engine {
	case enginePing:
		return c.write(ws, []byte{enginePong})
	case engineClose:
		return errors.New("engine.io session closed by server")
	case engineMessage:
	default:
		return nil
	}

	switch p.socket {
	case socketConnect:
		if err := c.markConnected(ws); err != nil {
			return err
		}
		retry.Reset()
		c.logger.Info("realtime connected", logging.Field("url", c.url))
		c.fire(EventConnect, json.RawMessage(p.data))
	case socketDisconnect:
		c.logger.Info("realtime namespace disconnected by server")
		return errServerDisconnect
	case socketConnectError:
		var refusal struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(p.data, &refusal)
		c.logger.Warn("realtime connect refused", logging.Field("message", refusal.Message))
		payload := json.RawMessage(p.data)
		if len(payload) == 0 {
			payload = errorPayload("connect refused")
		}
		c.fire(EventConnectError, payload)
		return &ConnectError{Message: refusal.Message}
	case socketEvent:
		name, arg, err := decodeEvent(p.data)
		if err != nil {
			c.logger.Warn("ignoring undecodable event", logging.Field("error", err))
			return nil
		}
		c.fire(name, arg)
	default:
		c.logger.Debug("ignoring unsupported socket.io packet", logging.Field("type", string(p.socket)))
	}
	return nil
}

func (c *Client) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conn = ws
	return true
}

// detach forgets ws and reports whether the namespace had been connected.
func (c *Client) detach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasConnected := c.connected
	if c.conn == ws {
		c.conn = nil
	}
	c.connected = false
	return wasConnected
}

// markConnected flips to connected and flushes buffered emits while holding
// the write lock, so later Emits cannot overtake them.
func (c *Client) markConnected(ws *websocket.Conn) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.connected = true
	c.mu.Unlock()

	for i, frame := range pending {
		if err := c.writeLocked(ws, frame); err != nil {
			c.mu.Lock()
			c.pending = append(pending[i:], c.pending...)
			c.mu.Unlock()
			return fmt.Errorf("flush buffered events: %w", err)
		}
	}
	if len(pending) > 0 {
		c.logger.Debug("flushed buffered events", logging.Field("count", len(pending)))
	}
	return nil
}

func (c *Client) write(ws *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.writeLocked(ws, frame)
}

func (c *Client) writeLocked(ws *websocket.Conn, frame []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) fire(event string, payload json.RawMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handlers := append([]func(json.RawMessage){}, c.handlers[event]...)
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("no listener for event", logging.Field("event", event))
		return
	}
	for _, fn := range handlers {
		fn(payload)
	}
}
