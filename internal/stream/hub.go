// Package stream pushes workbench state changes to connected viewers over
// WebSocket. Each viewer subscribes to one session, or to all sessions when
// no session is named.
package stream

import (
	"log/slog"
	"net/http"
	"sync"

	ws "github.com/gorilla/websocket"

	"github.com/chembench/server/pkg/streaming"
)

// Hub tracks viewer connections and fans out envelopes.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}

	upgrader ws.Upgrader
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// same-origin policy is enforced upstream; viewers are read-only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request to a WebSocket viewer connection. The
// subscribed session comes from the "id" path value when routed under a
// session, otherwise from the optional "session" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("id")
	if session == "" {
		session = r.URL.Query().Get("session")
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, session, h.logger)

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Viewer connected", "session", c.session, "viewers", h.ClientCount())

	go c.writeLoop(h.remove)
	go c.readLoop(h.remove)
}

// Broadcast marshals the payload once and sends it to every viewer
// subscribed to the session.
func (h *Hub) Broadcast(msgType, session string, payload any) {
	data, err := streaming.Marshal(msgType, session, payload)
	if err != nil {
		h.logger.Error("Envelope marshal failed", "type", msgType, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.session == "" || c.session == session {
			c.send(data)
		}
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all viewers.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if present {
		c.close()
		h.logger.Debug("Viewer disconnected", "session", c.session)
	}
}
