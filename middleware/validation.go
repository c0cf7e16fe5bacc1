package middleware

import (
	"fmt"
	"strings"

	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
)

// ValidationConfig holds validation middleware configuration
type ValidationConfig struct {
	MaxBodySize     int64
	AllowedMethods  []string
	RequiredHeaders []string
}

// DefaultValidationConfig returns default validation configuration
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxBodySize: 10 * 1024 * 1024, // 10MB
		AllowedMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodPatch,
			fiber.MethodDelete,
			fiber.MethodOptions,
			fiber.MethodHead,
		},
		RequiredHeaders: []string{},
	}
}

// RequestValidation rejects requests with a disallowed method, missing
// headers, a non JSON content type, an oversized body or malformed JSON
func RequestValidation(config ...ValidationConfig) fiber.Handler {
	cfg := DefaultValidationConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if !isMethodAllowed(c.Method(), cfg.AllowedMethods) {
			return NewCustomError("METHOD_NOT_ALLOWED",
				fmt.Sprintf("Method %s is not allowed", c.Method()), fiber.StatusMethodNotAllowed, nil)
		}

		for _, header := range cfg.RequiredHeaders {
			if c.Get(header) == "" {
				return NewCustomError("MISSING_HEADER",
					fmt.Sprintf("Required header %s is missing", header), fiber.StatusBadRequest, nil)
			}
		}

		if !isBodyMethod(c.Method()) {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !isValidContentType(contentType) {
			return NewCustomError("INVALID_CONTENT_TYPE",
				"Content-Type must be application/json", fiber.StatusUnsupportedMediaType, nil)
		}

		if int64(len(c.Body())) > cfg.MaxBodySize {
			return bodyTooLarge(cfg.MaxBodySize)
		}

		if strings.Contains(contentType, fiber.MIMEApplicationJSON) && len(c.Body()) > 0 && !utils.IsValidJSON(string(c.Body())) {
			return NewCustomError("INVALID_JSON", "Request body contains invalid JSON", fiber.StatusBadRequest, nil)
		}

		return c.Next()
	}
}

// ValidateQuery validates query parameters against validator rules
func ValidateQuery(rules map[string]string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if result := utils.ValidateQuery(c, rules); !result.IsValid {
			return utils.FieldErrors(result.Details())
		}
		return c.Next()
	}
}

// ValidateParams validates route parameters against validator rules
func ValidateParams(rules map[string]string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if result := utils.ValidateParams(c, rules); !result.IsValid {
			return utils.FieldErrors(result.Details())
		}
		return c.Next()
	}
}

// RequestSizeLimit rejects bodies larger than maxSize bytes
func RequestSizeLimit(maxSize int64) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if int64(len(c.Body())) > maxSize {
			return bodyTooLarge(maxSize)
		}
		return c.Next()
	}
}

func bodyTooLarge(maxSize int64) ApplicationError {
	return NewCustomError("BODY_TOO_LARGE",
		fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxSize), fiber.StatusRequestEntityTooLarge, nil)
}

func isMethodAllowed(method string, allowedMethods []string) bool {
	for _, allowed := range allowedMethods {
		if method == allowed {
			return true
		}
	}
	return false
}

func isBodyMethod(method string) bool {
	switch method {
	case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch:
		return true
	default:
		return false
	}
}

// isValidContentType accepts JSON, with or without a charset, and plain text
func isValidContentType(contentType string) bool {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) ||
		strings.HasPrefix(contentType, fiber.MIMETextPlain)
}
