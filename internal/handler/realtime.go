package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/alarm-messenger/relay-server-go/internal/config"
	"github.com/alarm-messenger/relay-server-go/internal/transport"
)

// ConnServer owns an upgraded connection until it closes.
type ConnServer interface {
	ServeConn(ctx context.Context, conn transport.Conn)
}

type RealtimeHandler struct {
	sessions ConnServer
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(sessions ConnServer) *RealtimeHandler {
	return &RealtimeHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// GET /ws
func (h *RealtimeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	conn := transport.NewWSConn(ws,
		transport.WithWriteWait(config.WSWriteWait),
		transport.WithMaxMessageBytes(config.WSMaxMessageBytes),
	)
	log.Debug().Str("remoteAddr", r.RemoteAddr).Msg("websocket opened")
	h.sessions.ServeConn(r.Context(), conn)
}
