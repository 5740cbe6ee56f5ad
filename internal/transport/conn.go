// Package transport abstracts a single bidirectional, message-oriented
// connection. Inbound traffic is delivered as a stream of Events on one
// channel so the owner can run a single event loop per connection.
package transport

import "errors"

var ErrClosed = errors.New("transport: connection closed")

type EventKind int

const (
	EventMessage EventKind = iota
	EventPong
	EventClose
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventPong:
		return "pong"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Conn is one live connection. Send and Ping are safe for concurrent use.
// Events is closed after the final Close or Error event, or after Close.
type Conn interface {
	Send(data []byte) error
	Ping() error
	Close() error
	Closed() bool
	Events() <-chan Event
}
