package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/scrybe/scrybe-server/internal/metrics"
)

// Hub maintains the set of active clients and fans transcript events out to
// them. It implements usecase.Broadcaster: events are marshalled once and
// delivered to every client's ordered send channel, so per-session event
// order is preserved end to end.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(m *metrics.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    m,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.ConnectedClients.Set(float64(n))
			h.logger.Info("Client registered", zap.String("clientId", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.ConnectedClients.Set(float64(n))
			h.logger.Info("Client unregistered", zap.String("clientId", client.id))
		}
	}
}

// Broadcast marshals v and queues it on every connected client. A client
// whose send buffer is full has the event dropped rather than stalling the
// producer goroutine.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast event", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Client send buffer full, dropping event",
				zap.String("clientId", id))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
