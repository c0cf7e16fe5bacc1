package models

import "time"

// HealthStatus represents the health status of the service and its database
type HealthStatus struct {
	Backend  bool   `json:"backend"`
	Database bool   `json:"database"`
	Message  string `json:"message"`
}

// WebSocket message types
const (
	WSTypeConnect       = "connect"
	WSTypeDisconnect    = "disconnect"
	WSTypeHeartbeat     = "heartbeat"
	WSTypeSuiteSnapshot = "suite_snapshot"
)

// WSMessage represents a WebSocket message structure
type WSMessage struct {
	Type      string      `json:"type" validate:"required,oneof=connect disconnect heartbeat suite_snapshot"`
	TenantID  string      `json:"tenant_id,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	ClientID  string      `json:"client_id" validate:"required"`
}

// SnapshotMessage is the payload of a suite_snapshot message
type SnapshotMessage struct {
	Version uint64      `json:"version"`
	Suites  []TestSuite `json:"suites"`
}
