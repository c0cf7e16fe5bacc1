package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/KBesada24/test-suite-manager/utils"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// PerformanceMetrics collects request timings per endpoint
type PerformanceMetrics struct {
	mu        sync.Mutex
	overall   EndpointMetrics
	active    int64
	endpoints map[string]*EndpointMetrics
	since     time.Time
}

// EndpointMetrics holds the timings of one route
type EndpointMetrics struct {
	Path                string    `json:"path,omitempty"`
	Method              string    `json:"method,omitempty"`
	RequestCount        int64     `json:"request_count"`
	ErrorCount          int64     `json:"error_count"`
	TotalResponseTime   int64     `json:"total_response_time_ms"`
	AverageResponseTime float64   `json:"average_response_time_ms"`
	MinResponseTime     int64     `json:"min_response_time_ms"`
	MaxResponseTime     int64     `json:"max_response_time_ms"`
	ErrorRate           float64   `json:"error_rate"`
	LastAccessed        time.Time `json:"last_accessed"`
}

// MetricsSnapshot is a copy of the collected metrics
type MetricsSnapshot struct {
	Overall        EndpointMetrics            `json:"overall"`
	ActiveRequests int64                      `json:"active_requests"`
	Endpoints      map[string]EndpointMetrics `json:"endpoints"`
	Since          time.Time                  `json:"since"`
}

// NewPerformanceMetrics creates an empty metrics collector
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		endpoints: make(map[string]*EndpointMetrics),
		since:     time.Now(),
	}
}

// Middleware records the duration and outcome of every request
func (m *PerformanceMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		m.mu.Lock()
		m.active++
		m.mu.Unlock()

		startTime := time.Now()
		err := c.Next()
		duration := time.Since(startTime)

		failed := err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest
		m.record(c.Method(), c.Route().Path, duration, failed)

		if duration > time.Second {
			utils.GetLogger().WithTraceID(utils.GetTraceID(c)).WithSource("performance").Warn(
				"Slow request detected", map[string]interface{}{
					"method":      c.Method(),
					"path":        c.Path(),
					"duration_ms": duration.Milliseconds(),
				})
		}

		return err
	}
}

func (m *PerformanceMetrics) record(method, path string, duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--

	key := method + ":" + path
	endpoint, ok := m.endpoints[key]
	if !ok {
		endpoint = &EndpointMetrics{Path: path, Method: method}
		m.endpoints[key] = endpoint
	}

	ms := duration.Milliseconds()
	now := time.Now()
	endpoint.add(ms, failed, now)
	m.overall.add(ms, failed, now)
}

func (e *EndpointMetrics) add(ms int64, failed bool, now time.Time) {
	e.RequestCount++
	e.TotalResponseTime += ms
	if failed {
		e.ErrorCount++
	}
	if e.RequestCount == 1 || ms < e.MinResponseTime {
		e.MinResponseTime = ms
	}
	if ms > e.MaxResponseTime {
		e.MaxResponseTime = ms
	}
	e.AverageResponseTime = float64(e.TotalResponseTime) / float64(e.RequestCount)
	e.ErrorRate = float64(e.ErrorCount) / float64(e.RequestCount) * 100
	e.LastAccessed = now
}

// Snapshot returns a copy of the current metrics
func (m *PerformanceMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		Overall:        m.overall,
		ActiveRequests: m.active,
		Endpoints:      make(map[string]EndpointMetrics, len(m.endpoints)),
		Since:          m.since,
	}
	for key, endpoint := range m.endpoints {
		snapshot.Endpoints[key] = *endpoint
	}
	return snapshot
}

// Reset clears every counter
func (m *PerformanceMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.overall = EndpointMetrics{}
	m.endpoints = make(map[string]*EndpointMetrics)
	m.since = time.Now()
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	SkipPaths         []string
	KeyGenerator      func(*fiber.Ctx) string
	// IdleTimeout is how long an unused limiter is kept
	IdleTimeout time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiting limits requests per key, by default the authenticated user
// or else the client IP, with a token bucket per key
func RateLimiting(config RateLimitConfig) fiber.Handler {
	if config.RequestsPerMinute < 1 {
		config.RequestsPerMinute = 300
	}
	if config.BurstSize < 1 {
		config.BurstSize = config.RequestsPerMinute / 10
		if config.BurstSize < 1 {
			config.BurstSize = 1
		}
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 10 * time.Minute
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = func(c *fiber.Ctx) string {
			if userID := c.Get(HeaderUserID); userID != "" {
				return "user:" + userID
			}
			return "ip:" + c.IP()
		}
	}

	every := rate.Every(time.Minute / time.Duration(config.RequestsPerMinute))
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(config.RequestsPerMinute)).Seconds()) + 1)

	var (
		mu        sync.Mutex
		limiters  = make(map[string]*limiterEntry)
		lastPrune = time.Now()
	)

	return func(c *fiber.Ctx) error {
		if shouldSkipPath(c.Path(), config.SkipPaths) {
			return c.Next()
		}

		key := config.KeyGenerator(c)
		now := time.Now()

		mu.Lock()
		if now.Sub(lastPrune) > config.IdleTimeout {
			for k, entry := range limiters {
				if now.Sub(entry.lastSeen) > config.IdleTimeout {
					delete(limiters, k)
				}
			}
			lastPrune = now
		}
		entry, ok := limiters[key]
		if !ok {
			entry = &limiterEntry{limiter: rate.NewLimiter(every, config.BurstSize)}
			limiters[key] = entry
		}
		entry.lastSeen = now
		allowed := entry.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			utils.GetLogger().WithTraceID(utils.GetTraceID(c)).WithSource("rate_limiter").Warn(
				"Rate limit exceeded", map[string]interface{}{
					"key":                 key,
					"path":                c.Path(),
					"method":              c.Method(),
					"requests_per_minute": config.RequestsPerMinute,
				})

			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return NewCustomError("RATE_LIMIT_EXCEEDED", "Too many requests", fiber.StatusTooManyRequests,
				map[string]string{"retry_after": retryAfter})
		}

		return c.Next()
	}
}
