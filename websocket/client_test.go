package websocket

import (
	"testing"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/stretchr/testify/assert"
)

func TestClient_HandleMessage(t *testing.T) {
	client := newTestClient(NewHub(), "c1", "tenant-a", 4)

	t.Run("heartbeat answers pong", func(t *testing.T) {
		assert.True(t, client.handleMessage(models.WSMessage{Type: models.WSTypeHeartbeat}))

		msg := receive(t, client)
		assert.Equal(t, models.WSTypeHeartbeat, msg.Type)
		assert.Equal(t, "tenant-a", msg.TenantID)
		assert.Equal(t, map[string]interface{}{"status": "pong"}, msg.Data)
	})

	t.Run("snapshot request resyncs", func(t *testing.T) {
		var resynced *Client
		client.resync = func(c *Client) { resynced = c }

		assert.True(t, client.handleMessage(models.WSMessage{Type: models.WSTypeSuiteSnapshot}))
		assert.Same(t, client, resynced)
	})

	t.Run("snapshot request without resync", func(t *testing.T) {
		client.resync = nil
		assert.True(t, client.handleMessage(models.WSMessage{Type: models.WSTypeSuiteSnapshot}))
	})

	t.Run("connect is ignored", func(t *testing.T) {
		assert.True(t, client.handleMessage(models.WSMessage{Type: models.WSTypeConnect}))
		assertNoMessage(t, client)
	})

	t.Run("disconnect stops reading", func(t *testing.T) {
		assert.False(t, client.handleMessage(models.WSMessage{Type: models.WSTypeDisconnect}))
	})
}

func TestIsValidMessageType(t *testing.T) {
	for _, msgType := range []string{models.WSTypeConnect, models.WSTypeDisconnect, models.WSTypeHeartbeat, models.WSTypeSuiteSnapshot} {
		assert.True(t, isValidMessageType(msgType), msgType)
	}
	assert.False(t, isValidMessageType("sync_status_update"))
	assert.False(t, isValidMessageType(""))
}

func TestClient_SendQueue(t *testing.T) {
	client := newTestClient(NewHub(), "c1", "tenant-a", 1)

	assert.True(t, client.SendMessage(models.WSTypeHeartbeat, nil))
	assert.False(t, client.SendMessage(models.WSTypeHeartbeat, nil), "queue is full")

	client.closeSend()
	client.closeSend() // closing twice is safe
	assert.False(t, client.SendMessage(models.WSTypeHeartbeat, nil))

	msg, open := <-client.send
	assert.True(t, open)
	assert.Equal(t, "c1", msg.ClientID)
	_, open = <-client.send
	assert.False(t, open)
}

func TestClient_IsAlive(t *testing.T) {
	client := newTestClient(NewHub(), "c1", "tenant-a", 1)
	assert.True(t, client.IsAlive())

	client.lastSeen = time.Now().Add(-2 * pongWait)
	assert.False(t, client.IsAlive())

	client.touch()
	assert.True(t, client.IsAlive())
}
