// Package wsclient is the device side of the realtime channel. It keeps
// one WebSocket open to the server, registers the device on every open
// and reconnects with capped exponential backoff.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/transport"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrReconnectExhausted = errors.New("disconnected, manual restart required")
	ErrAlreadyRunning     = errors.New("client already running")
)

type Dialer interface {
	Dial(ctx context.Context, url string) (transport.Conn, error)
}

type DialerFunc func(ctx context.Context, url string) (transport.Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (transport.Conn, error) {
	return f(ctx, url)
}

// WebSocketDialer dials with gorilla/websocket and wraps the result.
func WebSocketDialer(opts ...transport.WSOption) Dialer {
	return DialerFunc(func(ctx context.Context, url string) (transport.Conn, error) {
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return transport.NewWSConn(ws, opts...), nil
	})
}

type Options struct {
	ServerURL      string
	DeviceID       string
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
	Dialer         Dialer
	OnNotification func(realtime.NotificationFrame)
	OnStateChange  func(State)
}

type Client struct {
	opts  Options
	wsURL string

	mu          sync.Mutex
	state       State
	attempt     int
	conn        transport.Conn
	intentional bool
	err         error
	cancel      context.CancelFunc
	done        chan struct{}
}

func New(opts Options) (*Client, error) {
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	wsURL, err := WebSocketURL(opts.ServerURL)
	if err != nil {
		return nil, err
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = WebSocketDialer()
	}
	return &Client{opts: opts, wsURL: wsURL}, nil
}

// WebSocketURL maps an http(s) server URL to its ws(s) /ws endpoint.
func WebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server url has no host")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Connect starts the connection loop. It resets the attempt counter and
// clears a previous failure.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			c.mu.Unlock()
			return ErrAlreadyRunning
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.intentional = false
	c.attempt = 0
	c.err = nil
	done := c.done
	c.mu.Unlock()

	go c.run(ctx, done)
	return nil
}

// Disconnect closes the socket and cancels any pending retry. No
// reconnect follows.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	cancel := c.cancel
	conn := c.conn
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err reports why the client stopped, or nil while it is healthy.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Attempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Done is closed when the connection loop exits.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		c.setState(StateConnecting)

		conn, err := c.opts.Dialer.Dial(ctx, c.wsURL)
		if err != nil {
			log.Warn().Err(err).Str("url", c.wsURL).Msg("websocket dial failed")
		} else if c.opened(conn) {
			err = c.serve(conn)
			c.closed(conn)
			log.Info().Err(err).Msg("websocket connection closed")
		}

		if c.stopping(ctx) {
			c.setState(StateDisconnected)
			return
		}

		delay, ok := c.nextAttempt()
		if !ok {
			log.Error().Int("maxAttempts", c.opts.MaxAttempts).Msg("max reconnection attempts reached")
			c.setState(StateFailed)
			return
		}
		c.setState(StateDisconnected)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) opened(conn transport.Conn) bool {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		_ = conn.Close()
		return false
	}
	c.conn = conn
	c.attempt = 0
	c.mu.Unlock()
	log.Info().Str("url", c.wsURL).Msg("websocket connected")
	return true
}

func (c *Client) closed(conn transport.Conn) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) stopping(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional || ctx.Err() != nil
}

func (c *Client) nextAttempt() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt >= c.opts.MaxAttempts {
		c.err = ErrReconnectExhausted
		return 0, false
	}
	c.attempt++
	delay := Backoff(c.attempt, c.opts.BaseDelay, c.opts.MaxDelay)
	log.Info().
		Int("attempt", c.attempt).
		Int("maxAttempts", c.opts.MaxAttempts).
		Dur("delay", delay).
		Msg("scheduling reconnect")
	return delay, true
}

func (c *Client) serve(conn transport.Conn) error {
	frame, err := realtime.EncodeRegister(c.opts.DeviceID)
	if err != nil {
		return err
	}
	if err := conn.Send(frame); err != nil {
		return fmt.Errorf("send register: %w", err)
	}

	for ev := range conn.Events() {
		switch ev.Kind {
		case transport.EventMessage:
			c.handleFrame(ev.Data)
		case transport.EventClose:
			return nil
		case transport.EventError:
			return ev.Err
		}
	}
	return nil
}

func (c *Client) handleFrame(data []byte) {
	env, err := realtime.ParseEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring malformed frame")
		return
	}

	switch env.Type {
	case realtime.TypeRegistered:
		log.Info().Str("deviceId", env.DeviceID).Msg("device registered")
		c.setState(StateConnected)
	case realtime.TypeNotification:
		var frame realtime.NotificationFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed notification")
			return
		}
		if c.opts.OnNotification != nil {
			c.opts.OnNotification(frame)
		}
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring unknown frame type")
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}
