package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/metrics"
	"github.com/alarm-messenger/relay-server-go/internal/transport"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultRegisterTimeout bounds how long a socket may stay open
	// without sending a register frame.
	DefaultRegisterTimeout = 30 * time.Second
)

// Session is one registered device connection.
type Session struct {
	DeviceID     string
	RegisteredAt time.Time

	conn     transport.Conn
	liveness *Liveness
	stop     chan struct{}
	stopOnce sync.Once
}

func newSession(deviceID string, conn transport.Conn) *Session {
	return &Session{
		DeviceID:     deviceID,
		RegisteredAt: time.Now(),
		conn:         conn,
		liveness:     NewLiveness(),
		stop:         make(chan struct{}),
	}
}

func (s *Session) Conn() transport.Conn { return s.conn }

// Ack marks the session alive. Any inbound frame counts.
func (s *Session) Ack() { s.liveness.Ack() }

func (s *Session) LivenessState() LivenessState { return s.liveness.State() }

func (s *Session) Send(data []byte) error { return s.conn.Send(data) }

func (s *Session) stopMonitor() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Session) shutdown() {
	s.stopMonitor()
	_ = s.conn.Close()
}

type RegistryOption func(*Registry)

func WithHeartbeatInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRegisterTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.registerTimeout = d
		}
	}
}

func WithTicker(f TickerFunc) RegistryOption {
	return func(r *Registry) {
		if f != nil {
			r.newTicker = f
		}
	}
}

// Registry maps device ids to their single live session.
type Registry struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	interval        time.Duration
	registerTimeout time.Duration
	newTicker       TickerFunc
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:        make(map[string]*Session),
		interval:        DefaultHeartbeatInterval,
		registerTimeout: DefaultRegisterTimeout,
		newTicker:       NewTimeTicker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds deviceID to conn and starts its heartbeat. A prior
// session for the same id is replaced and its connection closed.
func (r *Registry) Register(deviceID string, conn transport.Conn) *Session {
	s := newSession(deviceID, conn)

	r.mu.Lock()
	prev := r.sessions[deviceID]
	r.sessions[deviceID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(count))

	if prev != nil {
		if prev.conn == conn {
			prev.stopMonitor()
		} else {
			prev.shutdown()
			metrics.SessionEvictions.WithLabelValues(metrics.EvictReplaced).Inc()
			log.Info().Str("deviceId", deviceID).Msg("replaced existing device session")
		}
	}

	ticker := r.newTicker(r.interval)
	go r.monitor(s, ticker)

	log.Info().Str("deviceId", deviceID).Int("sessionCount", count).Msg("device session registered")
	return s
}

func (r *Registry) monitor(s *Session, t Ticker) {
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C():
			if s.liveness.Tick() {
				log.Info().Str("deviceId", s.DeviceID).Msg("heartbeat missed twice, evicting session")
				r.evict(s, metrics.EvictLiveness)
				return
			}
			if err := s.conn.Ping(); err != nil {
				log.Debug().Err(err).Str("deviceId", s.DeviceID).Msg("heartbeat ping failed")
				r.evict(s, metrics.EvictWriteFail)
				return
			}
		}
	}
}

// Lookup returns the live session for deviceID. A session whose
// connection is already closed is evicted and reported as absent.
func (r *Registry) Lookup(deviceID string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.conn.Closed() {
		r.evict(s, metrics.EvictClosed)
		return nil, false
	}
	return s, true
}

func (r *Registry) IsConnected(deviceID string) bool {
	_, ok := r.Lookup(deviceID)
	return ok
}

// Remove drops the session for deviceID and closes its connection.
func (r *Registry) Remove(deviceID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[deviceID]
	if ok {
		delete(r.sessions, deviceID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}
	metrics.SessionsActive.Set(float64(count))
	metrics.SessionEvictions.WithLabelValues(metrics.EvictRemoved).Inc()
	s.shutdown()
	return true
}

// Detach removes s only if it is still the current session for its
// device, then stops it. It reports whether s was current.
func (r *Registry) Detach(s *Session) bool {
	current := r.detach(s)
	s.shutdown()
	return current
}

func (r *Registry) detach(s *Session) bool {
	r.mu.Lock()
	current := r.sessions[s.DeviceID] == s
	if current {
		delete(r.sessions, s.DeviceID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if current {
		metrics.SessionsActive.Set(float64(count))
	}
	return current
}

// release unbinds s without closing the connection, for a connection
// that re-registers under another device id.
func (r *Registry) release(s *Session) {
	r.detach(s)
	s.stopMonitor()
}

func (r *Registry) evict(s *Session, reason string) {
	if r.detach(s) {
		metrics.SessionEvictions.WithLabelValues(reason).Inc()
		log.Debug().Str("deviceId", s.DeviceID).Str("reason", reason).Msg("device session evicted")
	}
	s.shutdown()
}

// ListConnected returns the registered device ids in sorted order.
func (r *Registry) ListConnected() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close shuts down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	metrics.SessionsActive.Set(0)
	for _, s := range sessions {
		s.shutdown()
	}
	log.Info().Int("sessions", len(sessions)).Msg("registry closed")
}
