package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Client represents a WebSocket connection subscribed to one tenant
type Client struct {
	ID       string
	TenantID string
	UserID   string

	conn *websocket.Conn
	hub  *Hub

	mu     sync.Mutex
	send   chan models.WSMessage
	closed bool

	lastSeen time.Time

	// resync, when set, pushes the current snapshot to this client
	resync func(c *Client)
}

// NewClient creates a new WebSocket client
func NewClient(conn *websocket.Conn, hub *Hub, tenantID, userID string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		TenantID: tenantID,
		UserID:   userID,
		conn:     conn,
		hub:      hub,
		send:     make(chan models.WSMessage, 256),
		lastSeen: time.Now(),
	}
}

// enqueue adds message to the send queue without blocking
func (c *Client) enqueue(message models.WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// Run pumps messages in both directions. It returns only after WritePump
// has stopped, so the connection is never used once Run is done.
func (c *Client) Run() {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.WritePump()
	}()

	c.ReadPump()
	c.closeSend()
	<-writerDone
}

// ReadPump pumps messages from the WebSocket connection to the hub until
// the connection fails or the client disconnects
func (c *Client) ReadPump() {
	logger := utils.GetLogger().WithTenant(c.TenantID).WithSource("websocket_client")

	defer c.hub.UnregisterClient(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error", err, map[string]interface{}{
					"client_id": c.ID,
					"user_id":   c.UserID,
				})
			}
			break
		}

		var message models.WSMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			logger.Warn("Failed to parse WebSocket message", map[string]interface{}{
				"client_id": c.ID,
				"error":     err.Error(),
			})
			continue
		}

		message.ClientID = c.ID
		message.TenantID = c.TenantID
		message.Timestamp = time.Now()
		c.touch()

		if !isValidMessageType(message.Type) {
			logger.Warn("Invalid WebSocket message type", map[string]interface{}{
				"client_id":    c.ID,
				"message_type": message.Type,
			})
			continue
		}

		if !c.handleMessage(message) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection and
// closes it once the send queue is closed
func (c *Client) WritePump() {
	logger := utils.GetLogger().WithTenant(c.TenantID).WithSource("websocket_client")
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the queue was closed by the hub or by Run
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			messageBytes, err := json.Marshal(message)
			if err != nil {
				logger.Error("Failed to marshal WebSocket message", err, map[string]interface{}{
					"client_id":    c.ID,
					"message_type": message.Type,
				})
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, messageBytes); err != nil {
				logger.Error("Failed to write WebSocket message", err, map[string]interface{}{
					"client_id": c.ID,
				})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming message and reports whether to keep reading
func (c *Client) handleMessage(message models.WSMessage) bool {
	logger := utils.GetLogger().WithTenant(c.TenantID).WithSource("websocket_client")

	switch message.Type {
	case models.WSTypeHeartbeat:
		if !c.SendMessage(models.WSTypeHeartbeat, map[string]interface{}{"status": "pong"}) {
			logger.Warn("Failed to send heartbeat response", map[string]interface{}{
				"client_id": c.ID,
			})
		}

	case models.WSTypeSuiteSnapshot:
		if c.resync != nil {
			c.resync(c)
		}

	case models.WSTypeDisconnect:
		logger.Info("WebSocket client requested disconnect", map[string]interface{}{
			"client_id": c.ID,
		})
		return false

	default:
		logger.Debug("Received WebSocket message", map[string]interface{}{
			"client_id":    c.ID,
			"message_type": message.Type,
		})
	}
	return true
}

// isValidMessageType checks if a client may send the message type
func isValidMessageType(msgType string) bool {
	switch msgType {
	case models.WSTypeConnect, models.WSTypeDisconnect, models.WSTypeHeartbeat, models.WSTypeSuiteSnapshot:
		return true
	default:
		return false
	}
}

// SendMessage queues a message for this client only
func (c *Client) SendMessage(msgType string, data interface{}) bool {
	return c.enqueue(models.WSMessage{
		Type:      msgType,
		TenantID:  c.TenantID,
		Data:      data,
		Timestamp: time.Now(),
		ClientID:  c.ID,
	})
}

// IsAlive checks if the client connection is still alive
func (c *Client) IsAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastSeen) < pongWait
}
