package transport

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait       = 10 * time.Second
	defaultMaxMessageBytes = 64 * 1024
	eventBufferSize        = 16
)

type WSOption func(*WSConn)

func WithWriteWait(d time.Duration) WSOption {
	return func(c *WSConn) { c.writeWait = d }
}

func WithMaxMessageBytes(n int64) WSOption {
	return func(c *WSConn) { c.maxMessageBytes = n }
}

// WSConn adapts a gorilla websocket to Conn. It owns the only reader
// goroutine for the socket; writes are serialized by writeMu.
type WSConn struct {
	conn            *websocket.Conn
	events          chan Event
	done            chan struct{}
	writeMu         sync.Mutex
	closeOnce       sync.Once
	closed          atomic.Bool
	writeWait       time.Duration
	maxMessageBytes int64
}

var _ Conn = (*WSConn)(nil)

func NewWSConn(conn *websocket.Conn, opts ...WSOption) *WSConn {
	c := &WSConn{
		conn:            conn,
		events:          make(chan Event, eventBufferSize),
		done:            make(chan struct{}),
		writeWait:       defaultWriteWait,
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, opt := range opts {
		opt(c)
	}

	conn.SetReadLimit(c.maxMessageBytes)
	conn.SetPongHandler(func(string) error {
		c.emit(Event{Kind: EventPong})
		return nil
	})

	go c.readLoop()
	return c
}

func (c *WSConn) readLoop() {
	defer close(c.events)

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			wasClosed := c.closed.Swap(true)
			_ = c.conn.Close()
			if wasClosed || websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				c.emit(Event{Kind: EventClose, Err: err})
			} else {
				c.emit(Event{Kind: EventError, Err: err})
			}
			return
		}

		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		c.emit(Event{Kind: EventMessage, Data: data})
	}
}

func (c *WSConn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *WSConn) Events() <-chan Event {
	return c.events
}

func (c *WSConn) Send(data []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSConn) Ping() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *WSConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait),
		)
		err = c.conn.Close()
	})
	return err
}

func (c *WSConn) Closed() bool {
	return c.closed.Load()
}
