package middleware

import (
	"time"

	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderTraceID   = "X-Trace-ID"
	HeaderRequestID = "X-Request-ID"

	localRequestID = "request_id"
	localLogger    = "logger"
)

// LoggingConfig holds logging middleware configuration
type LoggingConfig struct {
	Logger          *utils.Logger
	SkipPaths       []string
	SkipSuccessLogs bool
	LogRequestBody  bool
	MaxBodyLogSize  int
}

// DefaultLoggingConfig returns default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:          utils.GetLogger(),
		SkipPaths:       []string{"/health"},
		SkipSuccessLogs: false,
		LogRequestBody:  false,
		MaxBodyLogSize:  1024, // 1KB
	}
}

// CorrelationID makes sure every request carries a trace id and a request id
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Get(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(HeaderTraceID, traceID)

		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(HeaderRequestID, requestID)

		utils.SetTraceID(c, traceID)
		c.Locals(localRequestID, requestID)

		return c.Next()
	}
}

// RequestLogging logs every request once it has completed. Errors returned by
// later handlers are rendered through the app's error handler first so the
// logged status is the one the client receives.
func RequestLogging(config ...LoggingConfig) fiber.Handler {
	cfg := DefaultLoggingConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if shouldSkipPath(c.Path(), cfg.SkipPaths) {
			return c.Next()
		}

		startTime := time.Now()
		logRequest(c, cfg)

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
			logResponse(c, cfg, time.Since(startTime), chainErr)
			return nil
		}

		logResponse(c, cfg, time.Since(startTime), nil)
		return nil
	}
}

// StructuredLogging stores a request scoped logger for handlers to use
func StructuredLogging(logger *utils.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		contextLogger := logger.WithTraceID(utils.GetTraceID(c)).WithSource("http").WithContext(map[string]interface{}{
			"request_id": getRequestID(c),
		})
		c.Locals(localLogger, contextLogger)

		return c.Next()
	}
}

// GetLoggerFromContext returns the request scoped logger, tagged with the
// tenant once RequireTenantMember has run
func GetLoggerFromContext(c *fiber.Ctx) *utils.LoggerWithContext {
	logger, ok := c.Locals(localLogger).(*utils.LoggerWithContext)
	if !ok {
		logger = utils.GetLogger().WithTraceID(utils.GetTraceID(c)).WithSource("http").WithContext(map[string]interface{}{
			"request_id": getRequestID(c),
		})
	}

	if tenantID := TenantID(c); tenantID != "" {
		return logger.WithTenant(tenantID)
	}
	return logger
}

func logRequest(c *fiber.Ctx, cfg LoggingConfig) {
	context := map[string]interface{}{
		"method":       c.Method(),
		"path":         c.Path(),
		"ip":           c.IP(),
		"user_agent":   c.Get(fiber.HeaderUserAgent),
		"request_id":   getRequestID(c),
		"content_type": c.Get(fiber.HeaderContentType),
	}

	if len(c.Queries()) > 0 {
		context["query_params"] = c.Queries()
	}

	if cfg.LogRequestBody && len(c.Body()) > 0 && len(c.Body()) <= cfg.MaxBodyLogSize {
		context["request_body"] = string(c.Body())
	}

	cfg.Logger.WithTraceID(utils.GetTraceID(c)).WithSource("http").Debug("Request received", context)
}

func logResponse(c *fiber.Ctx, cfg LoggingConfig, duration time.Duration, err error) {
	statusCode := c.Response().StatusCode()
	if cfg.SkipSuccessLogs && statusCode < fiber.StatusBadRequest {
		return
	}

	context := map[string]interface{}{
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
		"request_id":  getRequestID(c),
	}
	if userID := UserID(c); userID != "" {
		context["user_id"] = userID
	}
	if err != nil {
		context["error"] = err.Error()
	}

	logger := cfg.Logger.WithTraceID(utils.GetTraceID(c)).WithSource("access")
	if tenantID := TenantID(c); tenantID != "" {
		logger = logger.WithTenant(tenantID)
	}

	switch {
	case statusCode >= fiber.StatusInternalServerError:
		logger.Error("Request completed with server error", err, context)
	case statusCode >= fiber.StatusBadRequest:
		logger.Warn("Request completed with client error", context)
	default:
		logger.Info("Request completed successfully", context)
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
	}
	return false
}

func getRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(localRequestID).(string)
	return id
}
