package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"charityfeed/internal/middleware"
	"charityfeed/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per signed-in user.
	maxConnsPerUser = 8
	// Max total connections.
	maxTotalConns = 10000
)

var (
	ErrHubFull      = errors.New("server connection limit reached")
	ErrUserConnsMax = errors.New("user connection limit reached")
	ErrHubClosed    = errors.New("hub is shutting down")
)

// Hub fans feed events out to every connected subscriber.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	perUser map[uint]int
	closed  bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		perUser: make(map[uint]int),
	}
}

// Register adds a connection. userID is zero for anonymous visitors, who
// share only the global limit.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if len(h.clients) >= maxTotalConns {
		return nil, ErrHubFull
	}
	if userID != 0 && h.perUser[userID] >= maxConnsPerUser {
		return nil, ErrUserConnsMax
	}

	client := newClient(h, conn, userID)
	h.clients[client] = struct{}{}
	if userID != 0 {
		h.perUser[userID]++
	}
	observability.WebSocketConnectionsTotal.Inc()
	return client, nil
}

// Unregister removes client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if client.UserID != 0 {
		if h.perUser[client.UserID]--; h.perUser[client.UserID] <= 0 {
			delete(h.perUser, client.UserID)
		}
	}
	close(client.Send)
	observability.WebSocketConnectionsTotal.Dec()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll sends message to every subscriber.
func (h *Hub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(message)
	}
}

// StartWiring forwards every feed event from n to the connected subscribers.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartFeedSubscriber(ctx, func(payload string) {
		h.BroadcastAll([]byte(payload))
	})
}

// Shutdown drops every subscriber. Closing a client's send channel makes its
// WritePump send a close frame and hang up.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	middleware.Logger.Info("closing feed subscribers", slog.Int("clients", len(h.clients)))

	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
		observability.WebSocketConnectionsTotal.Dec()
	}
	h.perUser = make(map[uint]int)
	return nil
}
