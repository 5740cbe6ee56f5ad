// Package transporttest provides an in-memory transport.Conn for tests.
package transporttest

import (
	"sync"

	"github.com/alarm-messenger/relay-server-go/internal/transport"
)

type Conn struct {
	mu        sync.Mutex
	sent      [][]byte
	pings     int
	closed    bool
	closeOnce sync.Once
	events    chan transport.Event
	SendErr   error
	PingErr   error
}

var _ transport.Conn = (*Conn)(nil)

func NewConn() *Conn {
	return &Conn{events: make(chan transport.Event, 64)}
}

func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	c.pings++
	return c.PingErr
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.events)
	})
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) Events() <-chan transport.Event {
	return c.events
}

// Push delivers an inbound event as if it came from the peer.
func (c *Conn) Push(ev transport.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- ev
}

func (c *Conn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Conn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}
