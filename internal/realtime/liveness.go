package realtime

import (
	"sync/atomic"
	"time"
)

type LivenessState int32

const (
	ConfirmedAlive LivenessState = iota
	AwaitingPong
)

func (s LivenessState) String() string {
	if s == ConfirmedAlive {
		return "confirmed_alive"
	}
	return "awaiting_pong"
}

// Liveness is the two-strike heartbeat state of one session. A session
// survives one missed beat but not two in a row.
type Liveness struct {
	state atomic.Int32
}

func NewLiveness() *Liveness {
	return &Liveness{}
}

func (l *Liveness) State() LivenessState {
	return LivenessState(l.state.Load())
}

// Ack records any reply from the peer.
func (l *Liveness) Ack() {
	l.state.Store(int32(ConfirmedAlive))
}

// Tick advances one heartbeat period. It returns true when no reply
// arrived since the previous tick; otherwise it arms the next probe.
func (l *Liveness) Tick() (expired bool) {
	return !l.state.CompareAndSwap(int32(ConfirmedAlive), int32(AwaitingPong))
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}
