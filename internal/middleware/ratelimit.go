package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/alarm-messenger/relay-server-go/internal/audit"
	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/httputil"
	"github.com/alarm-messenger/relay-server-go/internal/metrics"
	"github.com/alarm-messenger/relay-server-go/internal/redis"
)

const (
	localMaxEntries      = 10000
	localCleanupInterval = time.Minute
)

// Limiter decides whether one more request for key fits into the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, resetAt time.Time)
}

var rateLimitScript = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

return {1, now + window}
`)

// RedisLimiter is a sliding window shared by every server instance.
// Redis failures let the request through: an alert must not be dropped
// because the limiter backend is down.
type RedisLimiter struct {
	client goredis.Scripter
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client goredis.Scripter, scope string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Time) {
	now := l.now()
	fullKey := redis.RateLimitKey(l.scope, key)

	result, err := rateLimitScript.Run(ctx, l.client, []string{fullKey},
		now.Unix(), int64(l.window.Seconds()), l.limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", fullKey).Msg("redis rate limit check failed, allowing request")
		return true, now.Add(l.window)
	}
	if len(result) != 2 {
		log.Warn().Str("key", fullKey).Msg("unexpected redis rate limit result, allowing request")
		return true, now.Add(l.window)
	}

	return result[0] == 1, time.Unix(result[1], 0)
}

// LocalLimiter keeps one token bucket per key in process memory. It is
// used when no Redis is configured.
type LocalLimiter struct {
	limit       rate.Limit
	burst       int
	window      time.Duration
	now         func() time.Time
	mu          sync.Mutex
	byKey       map[string]*localEntry
	lastCleanup time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows limit requests per window with a full bucket at
// the start.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &LocalLimiter{
		limit:       rate.Every(window / time.Duration(limit)),
		burst:       limit,
		window:      window,
		now:         time.Now,
		byKey:       make(map[string]*localEntry),
		lastCleanup: time.Now(),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, time.Time) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now)

	e, ok := l.byKey[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now

	if e.limiter.AllowN(now, 1) {
		return true, now.Add(l.window)
	}

	missing := 1 - e.limiter.TokensAt(now)
	wait := time.Duration(missing / float64(l.limit) * float64(time.Second))
	return false, now.Add(wait)
}

func (l *LocalLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < localCleanupInterval {
		return
	}
	l.lastCleanup = now

	// An entry idle for a whole window has refilled and can be rebuilt.
	for key, e := range l.byKey {
		if now.Sub(e.lastSeen) > l.window {
			delete(l.byKey, key)
		}
	}

	if len(l.byKey) > localMaxEntries {
		drop := len(l.byKey) / 5
		for key := range l.byKey {
			if drop == 0 {
				break
			}
			delete(l.byKey, key)
			drop--
		}
	}
}

// IPRateLimitMiddleware limits requests per client IP. Run it after
// chi's RealIP so RemoteAddr carries the forwarded address.
type IPRateLimitMiddleware struct {
	limiter Limiter
	scope   string
}

func NewIPRateLimitMiddleware(limiter Limiter, scope string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{limiter: limiter, scope: scope}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, resetAt := m.limiter.Allow(r.Context(), clientIP(r))
		if !allowed {
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))
			metrics.RateLimitRejections.WithLabelValues(m.scope).Inc()
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]interface{}{"scope": m.scope},
			})
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
