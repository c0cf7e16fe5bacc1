package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	ExposeHeaders    []string
	MaxAge           int
}

// DefaultCORSConfig returns default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodPatch,
			fiber.MethodDelete,
			fiber.MethodOptions,
			fiber.MethodHead,
		},
		AllowHeaders: []string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			HeaderTraceID,
			HeaderRequestID,
			HeaderUserID,
			HeaderUserEmail,
		},
		AllowCredentials: true,
		ExposeHeaders:    []string{HeaderTraceID, HeaderRequestID},
		MaxAge:           86400, // 24 hours
	}
}

// NewCORS creates a CORS middleware from config
func NewCORS(config CORSConfig) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ","),
		AllowMethods:     strings.Join(config.AllowMethods, ","),
		AllowHeaders:     strings.Join(config.AllowHeaders, ","),
		AllowCredentials: config.AllowCredentials,
		ExposeHeaders:    strings.Join(config.ExposeHeaders, ","),
		MaxAge:           config.MaxAge,
	})
}

// CORS creates a CORS middleware with default configuration
func CORS() fiber.Handler {
	return NewCORS(DefaultCORSConfig())
}

// CORSForFrontend allows the configured frontend origin next to the local defaults
func CORSForFrontend(frontendURL string) fiber.Handler {
	config := DefaultCORSConfig()
	frontendURL = strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if frontendURL != "" && !containsOrigin(config.AllowOrigins, frontendURL) {
		config.AllowOrigins = append(config.AllowOrigins, frontendURL)
	}
	return NewCORS(config)
}

func containsOrigin(origins []string, origin string) bool {
	for _, o := range origins {
		if o == origin {
			return true
		}
	}
	return false
}
