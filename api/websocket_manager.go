package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inkwell/logging"
	"inkwell/metrics"
)

const liveWriteWait = 5 * time.Second

// connWithMutex wraps a WebSocket connection with its own mutex for thread-safe writes.
type connWithMutex struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// LiveReloadHub tracks live-reload clients and tells them when a page changed.
type LiveReloadHub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu          sync.RWMutex
	connections map[*websocket.Conn]*connWithMutex
	closed      bool
}

// NewLiveReloadHub creates an empty hub.
func NewLiveReloadHub() *LiveReloadHub {
	return &LiveReloadHub{
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		logger:      logging.WithComponent("live"),
		connections: make(map[*websocket.Conn]*connWithMutex),
	}
}

// ServeHTTP upgrades the request and holds the connection until the client leaves.
func (h *LiveReloadHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str("event", "live.upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	if !h.add(conn) {
		_ = conn.Close()
		return
	}
	defer h.remove(conn)

	// Clients never send anything useful; reading detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *LiveReloadHub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.connections[conn] = &connWithMutex{conn: conn}
	metrics.SetLiveClients(len(h.connections))
	return true
}

func (h *LiveReloadHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.connections[conn]
	delete(h.connections, conn)
	metrics.SetLiveClients(len(h.connections))
	h.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
}

// Count returns the number of connected clients.
func (h *LiveReloadHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Broadcast sends a message to all connected clients.
func (h *LiveReloadHub) Broadcast(message any) {
	h.mu.RLock()
	conns := make([]*connWithMutex, 0, len(h.connections))
	for _, cwm := range h.connections {
		conns = append(conns, cwm)
	}
	h.mu.RUnlock()

	for _, cwm := range conns {
		cwm.mu.Lock()
		_ = cwm.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		err := cwm.conn.WriteJSON(message)
		cwm.mu.Unlock()

		if err != nil {
			h.remove(cwm.conn)
		}
	}
}

// Close disconnects every client and refuses new ones.
func (h *LiveReloadHub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*connWithMutex, 0, len(h.connections))
	for _, cwm := range h.connections {
		conns = append(conns, cwm)
	}
	h.mu.Unlock()

	for _, cwm := range conns {
		cwm.mu.Lock()
		_ = cwm.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		cwm.mu.Unlock()
		h.remove(cwm.conn)
	}
}
