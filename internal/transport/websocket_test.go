package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T) (server *WSConn, client *WSConn) {
	t.Helper()

	serverCh := make(chan *WSConn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverCh <- NewWSConn(ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	client = NewWSConn(ws)
	select {
	case server = <-serverCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server side never upgraded")
	}
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

func nextEvent(t *testing.T, c Conn) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestWSConn(t *testing.T) {
	t.Run("delivers text frames as message events", func(t *testing.T) {
		server, client := newPair(t)

		require.NoError(t, client.Send([]byte(`{"type":"register","deviceId":"d1"}`)))

		ev := nextEvent(t, server)
		assert.Equal(t, EventMessage, ev.Kind)
		assert.JSONEq(t, `{"type":"register","deviceId":"d1"}`, string(ev.Data))
	})

	t.Run("ping is answered with a pong event", func(t *testing.T) {
		server, _ := newPair(t)

		require.NoError(t, server.Ping())

		ev := nextEvent(t, server)
		assert.Equal(t, EventPong, ev.Kind)
	})

	t.Run("peer close ends the event stream", func(t *testing.T) {
		server, client := newPair(t)

		require.NoError(t, client.Close())

		ev := nextEvent(t, server)
		assert.Contains(t, []EventKind{EventClose, EventError}, ev.Kind)
		assert.True(t, server.Closed())

		_, ok := <-server.Events()
		assert.False(t, ok)
	})

	t.Run("send after close fails", func(t *testing.T) {
		server, _ := newPair(t)

		server.Close()
		assert.ErrorIs(t, server.Send([]byte("x")), ErrClosed)
		assert.ErrorIs(t, server.Ping(), ErrClosed)
	})
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "pong", EventPong.String())
	assert.Equal(t, "close", EventClose.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}
