package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/onnwee/currents/internal/middleware"
)

// LiveHandler upgrades clients onto the live trend stream.
type LiveHandler struct {
	hub      *LiveHub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a live stream handler over the given hub.
func NewLiveHandler(hub *LiveHub, logger *slog.Logger) *LiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients connect cross-origin from the app frontends.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetLive handles GET /v1/trending/live: upgrades to a websocket and
// streams each committed ranked list until the client disconnects. The
// stream is one-way; client messages are discarded.
func (h *LiveHandler) GetLive(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "WebSocket upgrade failed")
		return
	}

	h.hub.Subscribe(conn)
	h.logger.Debug("live subscriber connected", "subscribers", h.hub.ConnectionCount())

	defer func() {
		h.hub.Unsubscribe(conn)
		conn.Close()
		h.logger.Debug("live subscriber disconnected", "subscribers", h.hub.ConnectionCount())
	}()

	// Read loop only to observe the close handshake.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
