package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/config"
)

var Version = "dev"

type Pinger interface {
	Ping(ctx context.Context) error
}

type InfoHandler struct {
	organizationName string
	serverURL        string
	db               Pinger
}

func NewInfoHandler(organizationName, serverURL string, db Pinger) *InfoHandler {
	return &InfoHandler{
		organizationName: organizationName,
		serverURL:        serverURL,
		db:               db,
	}
}

// GET /api/info
func (h *InfoHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"organizationName": h.organizationName,
		"serverVersion":    Version,
		"serverUrl":        h.serverURL,
	})
}

// GET /health
func (h *InfoHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health check: database unreachable")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UnixMilli(),
	})
}
