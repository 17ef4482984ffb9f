package api

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/onnwee/currents/internal/snapshot"
)

// LiveHub manages websocket subscribers to the live trend stream and fans
// each committed snapshot out to them. Delivery is one-way and
// best-effort: a subscriber that cannot keep up is dropped.
type LiveHub struct {
	mu     sync.RWMutex
	conns  map[*websocket.Conn]bool
	logger *slog.Logger
}

// NewLiveHub creates a live trend stream hub.
func NewLiveHub(logger *slog.Logger) *LiveHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveHub{
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Subscribe registers a websocket connection.
func (h *LiveHub) Subscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

// Unsubscribe removes a websocket connection.
func (h *LiveHub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// ConnectionCount returns the number of active subscribers.
func (h *LiveHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// NotifySnapshot pushes a committed snapshot to all subscribers. It
// satisfies the engine's notifier contract.
func (h *LiveHub) NotifySnapshot(snap *snapshot.Snapshot) {
	// Serialize once for all subscribers.
	data, err := json.Marshal(toListResponse(snap))
	if err != nil {
		h.logger.Error("failed to marshal live snapshot", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("dropping slow live subscriber", "error", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
