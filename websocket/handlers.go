package websocket

import (
	"context"
	"time"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const snapshotTimeout = 5 * time.Second

// SnapshotSource provides the current suite snapshot of a tenant
type SnapshotSource interface {
	Snapshot(ctx context.Context, tenantID string) (store.Snapshot, error)
}

// Handler accepts WebSocket connections and subscribes them to their tenant's snapshots
type Handler struct {
	hub       *Hub
	snapshots SnapshotSource
}

// NewHandler creates a WebSocket handler
func NewHandler(hub *Hub, snapshots SnapshotSource) *Handler {
	return &Handler{hub: hub, snapshots: snapshots}
}

// Upgrade rejects requests that are not WebSocket upgrades
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}

	return middleware.NewCustomError("WEBSOCKET_REQUIRED", "WebSocket upgrade required", fiber.StatusUpgradeRequired, nil)
}

// Serve returns the fiber handler running the connection. The tenant and
// user are taken from the locals set by the auth middleware.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *Handler) serve(conn *websocket.Conn) {
	tenantID, _ := conn.Locals(middleware.LocalTenantID).(string)
	userID, _ := conn.Locals(middleware.LocalUserID).(string)

	client := NewClient(conn, h.hub, tenantID, userID)
	client.resync = h.sendSnapshot

	logger := utils.GetLogger().WithTenant(tenantID).WithSource("websocket")

	client.SendMessage(models.WSTypeConnect, map[string]interface{}{
		"client_id": client.ID,
		"tenant_id": tenantID,
	})

	if !h.hub.RegisterClient(client) {
		logger.Warn("WebSocket hub is stopped, closing connection", map[string]interface{}{
			"client_id": client.ID,
		})
		conn.Close()
		return
	}

	logger.Info("New WebSocket connection established", map[string]interface{}{
		"client_id":   client.ID,
		"user_id":     userID,
		"remote_addr": conn.RemoteAddr().String(),
	})

	h.sendSnapshot(client)
	client.Run()
}

// sendSnapshot pushes the tenant's current snapshot to one client
func (h *Handler) sendSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := h.snapshots.Snapshot(ctx, client.TenantID)
	if err != nil {
		utils.GetLogger().WithTenant(client.TenantID).WithSource("websocket").Error(
			"Failed to load snapshot for WebSocket client", err, map[string]interface{}{
				"client_id": client.ID,
			})
		return
	}

	client.SendMessage(models.WSTypeSuiteSnapshot, models.SnapshotMessage{
		Version: snap.Version,
		Suites:  snap.Suites,
	})
}

// Stats returns connection statistics
func (h *Handler) Stats() HubStats {
	return h.hub.Stats()
}
