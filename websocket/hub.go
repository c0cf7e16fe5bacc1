package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
)

// Hub manages WebSocket connections and delivers messages to the clients of a tenant
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// HubStats describes the connected clients
type HubStats struct {
	ConnectedClients int            `json:"connected_clients"`
	Tenants          map[string]int `json:"tenants"`
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles registrations and broadcasts until ctx is done, then closes every client
func (h *Hub) Run(ctx context.Context) {
	logger := utils.GetLogger().WithSource("websocket_hub")

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			close(h.done)
			logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()

			logger.WithTenant(client.TenantID).Info("WebSocket client connected", map[string]interface{}{
				"client_id":     client.ID,
				"user_id":       client.UserID,
				"total_clients": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.closeSend()
			}
			total := len(h.clients)
			h.mu.Unlock()

			if ok {
				logger.WithTenant(client.TenantID).Info("WebSocket client disconnected", map[string]interface{}{
					"client_id":     client.ID,
					"user_id":       client.UserID,
					"total_clients": total,
				})
			}

		case message := <-h.broadcast:
			h.deliver(message, logger)
		}
	}
}

// deliver sends message to every client of its tenant, dropping clients that cannot keep up
func (h *Hub) deliver(message models.WSMessage, logger *utils.LoggerWithContext) {
	h.mu.Lock()
	defer h.mu.Unlock()

	recipients := 0
	for client := range h.clients {
		if client.TenantID != message.TenantID {
			continue
		}
		if client.enqueue(message) {
			recipients++
			continue
		}
		client.closeSend()
		delete(h.clients, client)
		logger.WithTenant(client.TenantID).Warn("Removed unresponsive WebSocket client", map[string]interface{}{
			"client_id": client.ID,
		})
	}

	logger.WithTenant(message.TenantID).Debug("Broadcast WebSocket message", map[string]interface{}{
		"type":       message.Type,
		"recipients": recipients,
	})
}

// BroadcastToTenant queues a message for the clients of one tenant.
// It never blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastToTenant(tenantID, msgType string, data interface{}) {
	message := models.WSMessage{
		Type:      msgType,
		TenantID:  tenantID,
		Data:      data,
		Timestamp: time.Now(),
		ClientID:  "server",
	}

	select {
	case h.broadcast <- message:
	default:
		utils.GetLogger().WithTenant(tenantID).WithSource("websocket_hub").Warn("Broadcast channel is full, message dropped", map[string]interface{}{
			"type": msgType,
		})
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the number of connected clients overall and per tenant
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HubStats{ConnectedClients: len(h.clients), Tenants: make(map[string]int)}
	for client := range h.clients {
		stats.Tenants[client.TenantID]++
	}
	return stats
}

// RegisterClient registers a new client with the hub. It reports false when the hub has stopped.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// UnregisterClient unregisters a client from the hub
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
