package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/store"
	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSnapshotSource is a mock implementation of SnapshotSource
type MockSnapshotSource struct {
	mock.Mock
}

func (m *MockSnapshotSource) Snapshot(ctx context.Context, tenantID string) (store.Snapshot, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(store.Snapshot), args.Error(1)
}

// MockMembershipLookup is a mock implementation of middleware.MembershipLookup
type MockMembershipLookup struct {
	mock.Mock
}

func (m *MockMembershipLookup) GetMembership(ctx context.Context, tenantID, userID string) (*models.TenantUser, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TenantUser), args.Error(1)
}

func TestHandler_UpgradeRequired(t *testing.T) {
	handler := NewHandler(NewHub(), &MockSnapshotSource{})

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Get("/ws", handler.Upgrade, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestHandler_SendSnapshot(t *testing.T) {
	source := &MockSnapshotSource{}
	source.On("Snapshot", mock.Anything, "tenant-a").Return(store.Snapshot{
		Version: 4,
		Suites:  []models.TestSuite{{ID: 1, Name: "Checkout"}},
	}, nil)
	source.On("Snapshot", mock.Anything, "tenant-b").Return(store.Snapshot{}, errors.New("database is locked"))

	hub := NewHub()
	handler := NewHandler(hub, source)

	a := newTestClient(hub, "a", "tenant-a", 2)
	handler.sendSnapshot(a)

	msg := receive(t, a)
	assert.Equal(t, models.WSTypeSuiteSnapshot, msg.Type)
	payload := msg.Data.(models.SnapshotMessage)
	assert.Equal(t, uint64(4), payload.Version)
	require.Len(t, payload.Suites, 1)
	assert.Equal(t, "Checkout", payload.Suites[0].Name)

	b := newTestClient(hub, "b", "tenant-b", 2)
	handler.sendSnapshot(b)
	assertNoMessage(t, b)

	source.AssertExpectations(t)
	assert.Equal(t, 0, handler.Stats().ConnectedClients)
}

func TestHandler_ServeEndToEnd(t *testing.T) {
	source := &MockSnapshotSource{}
	source.On("Snapshot", mock.Anything, "t1").Return(store.Snapshot{Version: 9}, nil)

	lookup := &MockMembershipLookup{}
	lookup.On("GetMembership", mock.Anything, "t1", "alice").
		Return(&models.TenantUser{TenantID: "t1", UserID: "alice", Role: models.RoleUser}, nil)

	hub, _ := startHub(t)
	handler := NewHandler(hub, source)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws",
		middleware.Authenticate(),
		middleware.RequireTenantMember(lookup, middleware.TenantFromQuery("tenant_id")),
		handler.Upgrade,
		handler.Serve())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	header := http.Header{}
	header.Set(middleware.HeaderUserID, "alice")
	url := fmt.Sprintf("ws://%s/ws?tenant_id=t1", ln.Addr().String())

	conn, _, err := fastws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]interface{} {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	welcome := read()
	assert.Equal(t, models.WSTypeConnect, welcome["type"])
	assert.Equal(t, "t1", welcome["tenant_id"])

	snapshot := read()
	assert.Equal(t, models.WSTypeSuiteSnapshot, snapshot["type"])
	assert.Equal(t, float64(9), snapshot["data"].(map[string]interface{})["version"])

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": models.WSTypeHeartbeat}))
	pong := read()
	assert.Equal(t, models.WSTypeHeartbeat, pong["type"])
	assert.Equal(t, "pong", pong["data"].(map[string]interface{})["status"])

	assert.Eventually(t, func() bool { return handler.Stats().Tenants["t1"] == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": models.WSTypeDisconnect}))

	// the writer drains and sends a close frame before the handler returns
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	var closeErr *fastws.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, fastws.CloseNoStatusReceived, closeErr.Code)

	assert.Eventually(t, func() bool { return handler.Stats().ConnectedClients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_ServeRequiresIdentity(t *testing.T) {
	lookup := &MockMembershipLookup{}

	handler := NewHandler(NewHub(), &MockSnapshotSource{})
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	app.Get("/ws",
		middleware.Authenticate(),
		middleware.RequireTenantMember(lookup, middleware.TenantFromQuery("tenant_id")),
		handler.Upgrade,
		handler.Serve())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws?tenant_id=t1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	lookup.AssertNotCalled(t, "GetMembership", mock.Anything, mock.Anything, mock.Anything)
}
