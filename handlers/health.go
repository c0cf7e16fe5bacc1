package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/KBesada24/test-suite-manager/websocket"
	"github.com/gofiber/fiber/v2"
)

const healthPingTimeout = 2 * time.Second

// DatabaseChecker reports the state of the persistence database
type DatabaseChecker interface {
	Ping(ctx context.Context) error
	Driver() string
	PoolStats() sql.DBStats
}

// HubStatsSource reports the connected websocket clients
type HubStatsSource interface {
	Stats() websocket.HubStats
}

// PersistenceStatsSource reports the suite persistence breaker and the tenants held in memory
type PersistenceStatsSource interface {
	PersistenceStats() utils.CircuitBreakerStats
	LoadedTenants() []string
}

// HealthHandler serves the health and metrics endpoints
type HealthHandler struct {
	version     string
	environment string
	db          DatabaseChecker
	hub         HubStatsSource
	suites      PersistenceStatsSource
	metrics     *middleware.PerformanceMetrics
	startTime   time.Time
}

// NewHealthHandler creates a health handler. hub and metrics may be nil.
func NewHealthHandler(version, environment string, db DatabaseChecker, hub HubStatsSource,
	suites PersistenceStatsSource, metrics *middleware.PerformanceMetrics) *HealthHandler {
	return &HealthHandler{
		version:     version,
		environment: environment,
		db:          db,
		hub:         hub,
		suites:      suites,
		metrics:     metrics,
		startTime:   time.Now(),
	}
}

// HealthCheck handles GET /health. It answers 503 when the database is unreachable.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	status := models.HealthStatus{Backend: true, Database: true, Message: "Test suite manager is running"}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		status.Database = false
		status.Message = "Database is unreachable"
		utils.GetLogger().WithSource("health").Warn("Database ping failed", map[string]interface{}{
			"driver": h.db.Driver(),
			"error":  err.Error(),
		})
	}

	pool := h.db.PoolStats()
	checks := fiber.Map{
		"database": fiber.Map{
			"driver":           h.db.Driver(),
			"reachable":        status.Database,
			"open_connections": pool.OpenConnections,
			"in_use":           pool.InUse,
			"idle":             pool.Idle,
			"wait_count":       pool.WaitCount,
		},
		"persistence":    h.suites.PersistenceStats(),
		"loaded_tenants": len(h.suites.LoadedTenants()),
	}
	if h.hub != nil {
		checks["websocket"] = h.hub.Stats()
	}

	health := fiber.Map{
		"status":      status,
		"version":     h.version,
		"environment": h.environment,
		"timestamp":   time.Now().UTC(),
		"uptime":      time.Since(h.startTime).String(),
		"checks":      checks,
	}

	if !status.Database {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", status.Message,
			map[string]string{"database": "unreachable"})
	}
	return utils.SuccessResponse(c, "Health check passed", health)
}

// Metrics handles GET /metrics
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return utils.ServiceUnavailableResponse(c, "Metrics")
	}
	return utils.SuccessResponse(c, "Performance metrics retrieved successfully", h.metrics.Snapshot())
}

// WebSocketStats handles GET /ws/stats
func (h *HealthHandler) WebSocketStats(c *fiber.Ctx) error {
	if h.hub == nil {
		return utils.ServiceUnavailableResponse(c, "WebSocket")
	}
	return utils.SuccessResponse(c, "WebSocket statistics", h.hub.Stats())
}
