package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alarm-messenger/relay-server-go/internal/realtime"
	"github.com/alarm-messenger/relay-server-go/internal/transport"
	"github.com/alarm-messenger/relay-server-go/internal/transport/transporttest"
)

func TestBackoff(t *testing.T) {
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	prev := time.Duration(0)
	for n := 1; n <= 10; n++ {
		got := Backoff(n, DefaultBaseDelay, DefaultMaxDelay)
		assert.Equal(t, want[n-1], got, "attempt %d", n)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}

	assert.Equal(t, time.Second, Backoff(0, DefaultBaseDelay, DefaultMaxDelay))
	assert.Equal(t, 30*time.Second, Backoff(1000, DefaultBaseDelay, DefaultMaxDelay))
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"https://alarm.example.org/", "wss://alarm.example.org/ws"},
		{"https://example.org/relay", "wss://example.org/relay/ws"},
		{"ws://10.0.0.2:3000", "ws://10.0.0.2:3000/ws"},
	}
	for _, tt := range tests {
		got, err := WebSocketURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := WebSocketURL("ftp://example.org")
	assert.Error(t, err)
	_, err = WebSocketURL("http://")
	assert.Error(t, err)
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	fail  bool
	conns chan *transporttest.Conn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *transporttest.Conn, 32)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	d.dials++
	fail := d.fail
	d.mu.Unlock()
	if fail {
		return nil, errors.New("connection refused")
	}
	c := transporttest.NewConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(t *testing.T) *transporttest.Conn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no dial happened")
		return nil
	}
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) contains(s State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.states {
		if x == s {
			return true
		}
	}
	return false
}

func newTestClient(t *testing.T, dialer Dialer, opts Options) *Client {
	t.Helper()
	opts.ServerURL = "http://relay.test"
	opts.DeviceID = "device-1"
	opts.Dialer = dialer
	if opts.BaseDelay == 0 {
		opts.BaseDelay = time.Millisecond
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 5 * time.Millisecond
	}
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func push(c *transporttest.Conn, frame string) {
	c.Push(transport.Event{Kind: transport.EventMessage, Data: []byte(frame)})
}

func TestClient_Connect(t *testing.T) {
	t.Run("registers on open and is connected after the ack", func(t *testing.T) {
		dialer := newFakeDialer()
		states := &stateLog{}
		c := newTestClient(t, dialer, Options{OnStateChange: states.record})
		require.NoError(t, c.Connect(context.Background()))
		defer c.Disconnect()

		conn := dialer.next(t)
		require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, 5*time.Millisecond)
		assert.JSONEq(t, `{"type":"register","deviceId":"device-1"}`, string(conn.Sent()[0]))
		assert.NotEqual(t, StateConnected, c.State())

		push(conn, `{"type":"registered","deviceId":"device-1"}`)

		assert.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)
		assert.True(t, states.contains(StateConnecting))
	})

	t.Run("delivers notifications and skips garbage", func(t *testing.T) {
		dialer := newFakeDialer()
		got := make(chan realtime.NotificationFrame, 1)
		c := newTestClient(t, dialer, Options{
			OnNotification: func(f realtime.NotificationFrame) { got <- f },
		})
		require.NoError(t, c.Connect(context.Background()))
		defer c.Disconnect()

		conn := dialer.next(t)
		push(conn, `not json`)
		push(conn, `{"type":"notification","notification":{"title":"EINSATZ: B3","body":"Hauptstr. 1 - Brand"},"data":{"type":"emergency_alert","emergencyId":"e1","groups":""}}`)

		select {
		case f := <-got:
			assert.Equal(t, "EINSATZ: B3", f.Notification.Title)
			assert.Equal(t, "e1", f.Data.EmergencyID)
		case <-time.After(time.Second):
			t.Fatal("notification not delivered")
		}
	})

	t.Run("second connect while running is rejected", func(t *testing.T) {
		dialer := newFakeDialer()
		c := newTestClient(t, dialer, Options{})
		require.NoError(t, c.Connect(context.Background()))
		defer c.Disconnect()

		assert.ErrorIs(t, c.Connect(context.Background()), ErrAlreadyRunning)
	})
}

func TestClient_Reconnect(t *testing.T) {
	t.Run("involuntary close redials and re-registers", func(t *testing.T) {
		dialer := newFakeDialer()
		c := newTestClient(t, dialer, Options{})
		require.NoError(t, c.Connect(context.Background()))
		defer c.Disconnect()

		first := dialer.next(t)
		push(first, `{"type":"registered","deviceId":"device-1"}`)
		require.Eventually(t, func() bool { return c.State() == StateConnected }, time.Second, 5*time.Millisecond)

		first.Close()

		second := dialer.next(t)
		require.Eventually(t, func() bool { return len(second.Sent()) == 1 }, time.Second, 5*time.Millisecond)
		assert.Contains(t, string(second.Sent()[0]), `"register"`)
		assert.Eventually(t, func() bool { return c.Attempt() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("gives up after the attempt limit", func(t *testing.T) {
		dialer := newFakeDialer()
		dialer.fail = true
		states := &stateLog{}
		c := newTestClient(t, dialer, Options{MaxAttempts: 3, OnStateChange: states.record})
		require.NoError(t, c.Connect(context.Background()))

		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("client did not give up")
		}

		assert.Equal(t, StateFailed, c.State())
		assert.ErrorIs(t, c.Err(), ErrReconnectExhausted)
		assert.Equal(t, 4, dialer.Dials())
		assert.True(t, states.contains(StateFailed))
	})

	t.Run("connect after failure starts over", func(t *testing.T) {
		dialer := newFakeDialer()
		dialer.fail = true
		c := newTestClient(t, dialer, Options{MaxAttempts: 1})
		require.NoError(t, c.Connect(context.Background()))
		<-c.Done()
		require.Equal(t, StateFailed, c.State())

		dialer.mu.Lock()
		dialer.fail = false
		dialer.mu.Unlock()
		require.NoError(t, c.Connect(context.Background()))
		defer c.Disconnect()

		dialer.next(t)
		assert.NoError(t, c.Err())
	})
}

func TestClient_Disconnect(t *testing.T) {
	t.Run("intentional close does not reconnect", func(t *testing.T) {
		dialer := newFakeDialer()
		c := newTestClient(t, dialer, Options{})
		require.NoError(t, c.Connect(context.Background()))

		conn := dialer.next(t)
		c.Disconnect()

		assert.True(t, conn.Closed())
		assert.Equal(t, StateDisconnected, c.State())
		assert.NoError(t, c.Err())

		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, 1, dialer.Dials())
	})

	t.Run("cancels a pending retry", func(t *testing.T) {
		dialer := newFakeDialer()
		dialer.fail = true
		c := newTestClient(t, dialer, Options{BaseDelay: time.Hour, MaxDelay: time.Hour})
		require.NoError(t, c.Connect(context.Background()))

		require.Eventually(t, func() bool { return c.Attempt() == 1 }, time.Second, 5*time.Millisecond)

		done := make(chan struct{})
		go func() {
			c.Disconnect()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("disconnect blocked on pending retry")
		}
		assert.Equal(t, 1, dialer.Dials())
	})
}

var testUpgrader = websocket.Upgrader{}

func TestClient_AgainstServer(t *testing.T) {
	reg := realtime.NewRegistry()
	defer reg.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		reg.ServeConn(r.Context(), transport.NewWSConn(ws))
	}))
	defer srv.Close()

	c, err := New(Options{ServerURL: srv.URL, DeviceID: "device-7", BaseDelay: time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Disconnect()

	require.Eventually(t, func() bool { return c.State() == StateConnected }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, reg.IsConnected("device-7"))
	assert.True(t, strings.HasPrefix(c.wsURL, "ws://"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(9).String())
}
