package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const traceIDLocal = "trace_id"

// StandardResponse represents a standard API response structure
type StandardResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id"`
}

// ErrorInfo represents detailed error information
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(StandardResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		TraceID:   GetTraceID(c),
	})
}

// SuccessResponse creates a 200 response
func SuccessResponse(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusOK, message, data)
}

// CreatedResponse creates a 201 response
func CreatedResponse(c *fiber.Ctx, message string, data interface{}) error {
	return respond(c, fiber.StatusCreated, message, data)
}

// ErrorResponse creates an error response
func ErrorResponse(c *fiber.Ctx, statusCode int, code, message string, details map[string]string) error {
	return c.Status(statusCode).JSON(StandardResponse{
		Success: false,
		Message: "Request failed",
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
		TraceID:   GetTraceID(c),
	})
}

// NotFoundResponse creates a not found error response
func NotFoundResponse(c *fiber.Ctx, resource string) error {
	return ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", resource+" not found", nil)
}

// ServiceUnavailableResponse creates a service unavailable error response
func ServiceUnavailableResponse(c *fiber.Ctx, service string) error {
	message := "Service temporarily unavailable"
	if service != "" {
		message = service + " service temporarily unavailable"
	}
	return ErrorResponse(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}

// SetTraceID sets a trace ID in the context
func SetTraceID(c *fiber.Ctx, traceID string) {
	c.Locals(traceIDLocal, traceID)
}

// GetTraceID returns the request's trace id: the X-Trace-ID header, the id
// stored by the tracing middleware, or a fresh uuid
func GetTraceID(c *fiber.Ctx) string {
	if traceID := c.Get("X-Trace-ID"); traceID != "" {
		return traceID
	}
	if id, ok := c.Locals(traceIDLocal).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
