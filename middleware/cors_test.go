package middleware

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCORSApp(handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(handler)
	app.Get("/api/tenants", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func TestCORS(t *testing.T) {
	app := newCORSApp(CORS())

	tests := []struct {
		name          string
		origin        string
		expectAllowed bool
	}{
		{name: "localhost frontend", origin: "http://localhost:3000", expectAllowed: true},
		{name: "loopback frontend", origin: "http://127.0.0.1:3000", expectAllowed: true},
		{name: "foreign origin", origin: "http://evil.example.com", expectAllowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/api/tenants", nil)
			req.Header.Set("Origin", tt.origin)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			if tt.expectAllowed {
				assert.Equal(t, tt.origin, resp.Header.Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestCORS_PreflightAllowsIdentityHeaders(t *testing.T) {
	app := newCORSApp(CORS())

	req, _ := http.NewRequest(http.MethodOptions, "/api/tenants", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "X-User-ID")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	allowHeaders := resp.Header.Get("Access-Control-Allow-Headers")
	assert.True(t, strings.Contains(allowHeaders, HeaderUserID))
	assert.True(t, strings.Contains(allowHeaders, HeaderUserEmail))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "86400", resp.Header.Get("Access-Control-Max-Age"))
}

func TestCORSForFrontend(t *testing.T) {
	app := newCORSApp(CORSForFrontend(" https://tests.example.com/ "))

	req, _ := http.NewRequest(http.MethodGet, "/api/tenants", nil)
	req.Header.Set("Origin", "https://tests.example.com")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "https://tests.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestContainsOrigin(t *testing.T) {
	assert.True(t, containsOrigin([]string{"http://a", "http://b"}, "http://b"))
	assert.False(t, containsOrigin(nil, "http://a"))
}
