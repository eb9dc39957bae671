package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub fans competition snapshots out to websocket viewers
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*wsClient]bool
	last    []byte
}

// NewHub creates a hub accepting connections from the given origins ("*" for any)
func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	allowAll := false
	allowed := map[string]bool{}
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
		logger:  logger,
		clients: map[*wsClient]bool{},
	}
}

// Broadcast sends v to every viewer and drops the ones that fail
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "error", err)
		return
	}

	h.mu.Lock()
	h.last = data
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	var failed []*wsClient
	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.logger.Debug("failed to send to viewer", "error", err)
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.remove(c)
	}
}

// Clients returns the number of connected viewers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// ServeWS upgrades the connection and keeps it registered until the viewer
// goes away. New viewers get the latest snapshot straight away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = true
	last := h.last
	h.mu.Unlock()

	if last != nil {
		if err := client.write(last); err != nil {
			h.remove(client)
			return
		}
	}

	// Viewers only listen; reading detects disconnection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.remove(client)
			return
		}
	}
}
