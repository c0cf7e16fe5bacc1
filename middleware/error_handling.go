package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/KBesada24/test-suite-manager/repository"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/KBesada24/test-suite-manager/store"
	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandlingConfig holds error handling configuration
type ErrorHandlingConfig struct {
	Logger *utils.Logger
	// EnableStackTrace includes stack traces of recovered panics in responses
	EnableStackTrace bool
	// EnableDetailedErrors includes the original error text in 5xx responses
	EnableDetailedErrors bool
}

// DefaultErrorHandlingConfig returns default error handling configuration
func DefaultErrorHandlingConfig() ErrorHandlingConfig {
	return ErrorHandlingConfig{
		Logger:               utils.GetLogger(),
		EnableStackTrace:     false,
		EnableDetailedErrors: false,
	}
}

// ErrorHandler returns the application's fiber.ErrorHandler. Every error a
// handler returns is turned into a StandardResponse here.
func ErrorHandler(config ...ErrorHandlingConfig) fiber.ErrorHandler {
	cfg := DefaultErrorHandlingConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx, err error) error {
		return handleError(c, err, cfg)
	}
}

// PanicRecovery recovers panics in later handlers and answers with a 500
func PanicRecovery(config ...ErrorHandlingConfig) fiber.Handler {
	cfg := DefaultErrorHandlingConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				traceID := utils.GetTraceID(c)
				stackTrace := string(debug.Stack())

				cfg.Logger.WithTraceID(traceID).WithSource("panic").Error(
					"Panic recovered in HTTP handler", fmt.Errorf("panic: %v", r), map[string]interface{}{
						"method":      c.Method(),
						"path":        c.Path(),
						"ip":          c.IP(),
						"stack_trace": stackTrace,
					})

				details := map[string]string{"type": "panic"}
				if cfg.EnableStackTrace {
					details["stack_trace"] = stackTrace
					details["panic_value"] = fmt.Sprintf("%v", r)
				}

				err = utils.ErrorResponse(c, fiber.StatusInternalServerError,
					"PANIC_RECOVERED", "An unexpected error occurred", details)
			}
		}()

		return c.Next()
	}
}

// NotFoundHandler answers unknown routes
func NotFoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return utils.NotFoundResponse(c, "Endpoint")
	}
}

// handleError logs err and writes the matching error response
func handleError(c *fiber.Ctx, err error, cfg ErrorHandlingConfig) error {
	status, code, message, details := categorizeError(err)

	logger := cfg.Logger.WithTraceID(utils.GetTraceID(c)).WithSource("error_handler")
	if tenantID := TenantID(c); tenantID != "" {
		logger = logger.WithTenant(tenantID)
	}
	logContext := map[string]interface{}{
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": status,
		"error_code":  code,
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error("Request error", err, logContext)
		if cfg.EnableDetailedErrors {
			if details == nil {
				details = make(map[string]string)
			}
			details["original_error"] = err.Error()
		}
	} else {
		logContext["error"] = err.Error()
		logger.Debug("Request rejected", logContext)
	}

	return utils.ErrorResponse(c, status, code, message, details)
}

// categorizeError maps an error to its status code, error code, message and details
func categorizeError(err error) (status int, code, message string, details map[string]string) {
	var (
		appErr      ApplicationError
		fiberErr    *fiber.Error
		fieldErrors utils.FieldErrors
		notFound    *store.NotFoundError
	)

	switch {
	case errors.As(err, &appErr):
		return appErr.StatusCode(), appErr.ErrorCode(), appErr.Error(), appErr.Details()

	case errors.As(err, &fiberErr):
		return fiberErr.Code, mapFiberErrorCode(fiberErr.Code), fiberErr.Message, nil

	case errors.As(err, &fieldErrors):
		return fiber.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fieldErrors

	case errors.As(err, &notFound):
		return fiber.StatusNotFound, "NOT_FOUND", notFound.Error(), nil

	case errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, store.ErrInvalidPriority),
		errors.Is(err, store.ErrNoSteps):
		return fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil

	case errors.Is(err, services.ErrPersistence) && utils.IsCircuitBreakerError(err):
		return fiber.StatusServiceUnavailable, "CIRCUIT_BREAKER_OPEN",
			"Persistence temporarily unavailable, please retry later", map[string]string{"circuit_breaker": "open"}

	case errors.Is(err, services.ErrPersistence):
		return fiber.StatusServiceUnavailable, "PERSISTENCE_FAILED",
			"The change could not be saved", nil

	case errors.Is(err, services.ErrLastAdmin):
		return fiber.StatusConflict, "LAST_ADMIN", err.Error(), nil

	case errors.Is(err, services.ErrNotTenantMember):
		return fiber.StatusBadRequest, "NOT_TENANT_MEMBER", err.Error(), nil

	case errors.Is(err, services.ErrInvitationExpired):
		return fiber.StatusGone, "INVITATION_EXPIRED", err.Error(), nil

	case errors.Is(err, services.ErrInvitationAccepted):
		return fiber.StatusConflict, "INVITATION_ACCEPTED", err.Error(), nil

	case errors.Is(err, services.ErrInvitationEmailMismatch):
		return fiber.StatusForbidden, "INVITATION_EMAIL_MISMATCH", err.Error(), nil

	case errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", "Requested resource not found", nil

	case errors.Is(err, repository.ErrConflict):
		return fiber.StatusConflict, "CONFLICT", "Resource already exists", nil

	case utils.IsCircuitBreakerError(err):
		return fiber.StatusServiceUnavailable, "CIRCUIT_BREAKER_OPEN",
			"Service temporarily unavailable due to circuit breaker", nil

	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout, "REQUEST_CANCELLED", "Request was cancelled", nil

	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "REQUEST_TIMEOUT", "Request timeout exceeded", nil

	case utils.IsTransientError(err):
		return fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable", nil
	}

	return fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal error occurred", nil
}

// mapFiberErrorCode maps Fiber status codes to error codes
func mapFiberErrorCode(statusCode int) string {
	switch statusCode {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestTimeout:
		return "REQUEST_TIMEOUT"
	case fiber.StatusRequestEntityTooLarge:
		return "REQUEST_TOO_LARGE"
	case fiber.StatusUnsupportedMediaType:
		return "UNSUPPORTED_MEDIA_TYPE"
	case fiber.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case fiber.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// ApplicationError represents a custom application error
type ApplicationError interface {
	error
	StatusCode() int
	ErrorCode() string
	Details() map[string]string
}

// CustomError implements ApplicationError
type CustomError struct {
	Code         string
	Message      string
	Status       int
	ErrorDetails map[string]string
}

func (e CustomError) Error() string {
	return e.Message
}

func (e CustomError) StatusCode() int {
	return e.Status
}

func (e CustomError) ErrorCode() string {
	return e.Code
}

func (e CustomError) Details() map[string]string {
	return e.ErrorDetails
}

// NewCustomError creates a new custom error
func NewCustomError(code, message string, status int, details map[string]string) ApplicationError {
	return CustomError{
		Code:         code,
		Message:      message,
		Status:       status,
		ErrorDetails: details,
	}
}

// NewValidationError creates a validation error
func NewValidationError(message string, details map[string]string) ApplicationError {
	return NewCustomError("VALIDATION_ERROR", message, fiber.StatusBadRequest, details)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) ApplicationError {
	if message == "" {
		message = "Unauthorized access"
	}
	return NewCustomError("UNAUTHORIZED", message, fiber.StatusUnauthorized, nil)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) ApplicationError {
	if message == "" {
		message = "Access forbidden"
	}
	return NewCustomError("FORBIDDEN", message, fiber.StatusForbidden, nil)
}
