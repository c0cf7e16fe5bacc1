package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KBesada24/test-suite-manager/middleware"
	"github.com/KBesada24/test-suite-manager/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

// setupBenchmarkApp creates an application with one tenant owned by alice
// and a single suite, and returns the tenant's API prefix
func setupBenchmarkApp(b *testing.B) (*application, string) {
	a := newTestApplication(b)

	tenant, err := a.tenants.CreateTenant(context.Background(), alice.userID, alice.email,
		&models.CreateTenantRequest{Name: "Bench"})
	require.NoError(b, err)
	_, err = a.suites.CreateTestSuite(context.Background(), tenant.ID, &models.CreateTestSuiteRequest{Name: "Checkout"})
	require.NoError(b, err)

	return a, "/api/tenants/" + tenant.ID
}

func benchRequest(b *testing.B, app *fiber.App, method, path string, body []byte) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(middleware.HeaderUserID, alice.userID)
	req.Header.Set(middleware.HeaderUserEmail, alice.email)

	resp, err := app.Test(req, -1)
	if err != nil {
		b.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		b.Fatalf("%s %s: status %d", method, path, resp.StatusCode)
	}
}

// BenchmarkHealthEndpoint benchmarks the health check including the database ping
func BenchmarkHealthEndpoint(b *testing.B) {
	a, _ := setupBenchmarkApp(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchRequest(b, a.fiber, http.MethodGet, "/health", nil)
	}
}

// BenchmarkGetTestSuites benchmarks reading the tree of a loaded tenant
func BenchmarkGetTestSuites(b *testing.B) {
	a, base := setupBenchmarkApp(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			benchRequest(b, a.fiber, http.MethodGet, base+"/suites", nil)
		}
	})
}

// BenchmarkCreateTestCase benchmarks a write, which saves the tree each time
func BenchmarkCreateTestCase(b *testing.B) {
	a, base := setupBenchmarkApp(b)
	body, err := json.Marshal(models.CreateTestCaseRequest{
		Name:     "pay with card",
		Priority: models.PriorityHigh,
		Steps:    []string{"add item", "pay"},
	})
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		benchRequest(b, a.fiber, http.MethodPost, base+"/suites/1/cases", body)
	}
}

// BenchmarkRateLimitingMiddleware benchmarks the limiter with a limit high enough to never reject
func BenchmarkRateLimitingMiddleware(b *testing.B) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(middleware.RateLimiting(middleware.RateLimitConfig{
		RequestsPerMinute: 1 << 30,
		BurstSize:         1 << 20,
	}))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			benchRequest(b, app, http.MethodGet, "/test", nil)
		}
	})
}
