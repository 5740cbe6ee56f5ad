package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/audit"
	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
	"github.com/alarm-messenger/relay-server-go/internal/httputil"
	"github.com/alarm-messenger/relay-server-go/internal/util"
)

const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware guards the admin routes. The key is checked against a
// bcrypt hash when one is configured, otherwise against the plain key in
// constant time. With neither configured every request is rejected.
type APIKeyMiddleware struct {
	plainKey string
	keyHash  string
}

func NewAPIKeyMiddleware(plainKey, keyHash string) *APIKeyMiddleware {
	return &APIKeyMiddleware{plainKey: plainKey, keyHash: keyHash}
}

func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			m.reject(w, r, "missing")
			return
		}
		if !m.valid(key) {
			m.reject(w, r, "invalid")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *APIKeyMiddleware) valid(key string) bool {
	if m.keyHash != "" {
		return util.CheckPasswordHash(key, m.keyHash)
	}
	if m.plainKey == "" {
		return false
	}
	return util.ConstantTimeEqual(key, m.plainKey)
}

func (m *APIKeyMiddleware) reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.Warn().Str("path", r.URL.Path).Str("reason", reason).Msg("api key rejected")
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventAuthFailure,
		Details: map[string]interface{}{"reason": reason, "path": r.URL.Path},
	})
	httputil.WriteError(w, apperrors.InvalidAPIKey())
}
