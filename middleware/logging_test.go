package middleware

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(level string) (*utils.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := utils.NewLogger(level, "json")
	logger.SetOutput(buf)
	return logger, buf
}

func logEntries(t *testing.T, buf *bytes.Buffer) []utils.LogEntry {
	t.Helper()
	var entries []utils.LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var entry utils.LogEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestCorrelationID(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/ids", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"trace_id": utils.GetTraceID(c), "request_id": getRequestID(c)})
	})

	t.Run("generates ids", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ids", nil))
		require.NoError(t, err)

		traceID := resp.Header.Get(HeaderTraceID)
		requestID := resp.Header.Get(HeaderRequestID)
		assert.NotEmpty(t, traceID)
		assert.NotEmpty(t, requestID)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, traceID, body["trace_id"])
		assert.Equal(t, requestID, body["request_id"])
	})

	t.Run("keeps incoming ids", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ids", nil)
		req.Header.Set(HeaderTraceID, "trace-abc")
		req.Header.Set(HeaderRequestID, "req-abc")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "trace-abc", resp.Header.Get(HeaderTraceID))
		assert.Equal(t, "req-abc", resp.Header.Get(HeaderRequestID))
	})
}

func TestRequestLogging(t *testing.T) {
	logger, buf := bufferLogger("info")

	app := newTestApp()
	app.Use(CorrelationID())
	app.Use(RequestLogging(LoggingConfig{Logger: logger, SkipPaths: []string{"/health"}}))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/tenants/:tenantId/suites", func(c *fiber.Ctx) error {
		c.Locals(LocalTenantID, c.Params("tenantId"))
		c.Locals(LocalUserID, "alice")
		return c.SendString("[]")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})
	app.Get("/broken", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	t.Run("skipped path", func(t *testing.T) {
		buf.Reset()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Empty(t, logEntries(t, buf))
	})

	t.Run("success carries tenant and user", func(t *testing.T) {
		buf.Reset()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tenants/t1/suites", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		entries := logEntries(t, buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "INFO", entries[0].Level)
		assert.Equal(t, "t1", entries[0].TenantID)
		assert.Equal(t, "alice", entries[0].Context["user_id"])
		assert.Equal(t, float64(fiber.StatusOK), entries[0].Context["status_code"])
	})

	t.Run("client error logged with rendered status", func(t *testing.T) {
		buf.Reset()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

		entries := logEntries(t, buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "WARN", entries[0].Level)
		assert.Equal(t, float64(fiber.StatusNotFound), entries[0].Context["status_code"])
	})

	t.Run("server error", func(t *testing.T) {
		buf.Reset()
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/broken", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "INTERNAL_SERVER_ERROR", decodeResponse(t, resp).Error.Code)

		entries := logEntries(t, buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "ERROR", entries[0].Level)
		assert.Equal(t, "boom", entries[0].Error)
	})
}

func TestRequestLogging_SkipSuccessLogs(t *testing.T) {
	logger, buf := bufferLogger("debug")

	app := newTestApp()
	app.Use(RequestLogging(LoggingConfig{Logger: logger, SkipSuccessLogs: true, LogRequestBody: true, MaxBodyLogSize: 64}))
	app.Post("/suites", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/suites", bytes.NewBufferString(`{"name":"Login"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "DEBUG", entries[0].Level)
	assert.Equal(t, "Request received", entries[0].Message)
	assert.Equal(t, `{"name":"Login"}`, entries[0].Context["request_body"])
}

func TestGetLoggerFromContext(t *testing.T) {
	logger, buf := bufferLogger("info")

	app := fiber.New()
	app.Use(CorrelationID())
	app.Use(StructuredLogging(logger))
	app.Get("/tenants/:tenantId", func(c *fiber.Ctx) error {
		c.Locals(LocalTenantID, c.Params("tenantId"))
		GetLoggerFromContext(c).Info("handled")
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/t9", nil)
	req.Header.Set(HeaderTraceID, "trace-9")
	req.Header.Set(HeaderRequestID, "req-9")
	_, err := app.Test(req)
	require.NoError(t, err)

	entries := logEntries(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-9", entries[0].TraceID)
	assert.Equal(t, "t9", entries[0].TenantID)
	assert.Equal(t, "http", entries[0].Source)
	assert.Equal(t, "req-9", entries[0].Context["request_id"])
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		assert.NotNil(t, GetLoggerFromContext(c))
		return nil
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
}
