package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server Configuration
	Port        string `yaml:"port"`
	Host        string `yaml:"host"`
	Environment string `yaml:"environment"`

	// CORS Configuration
	FrontendURL string `yaml:"frontend_url"`

	// WebSocket Configuration
	WSEndpoint string `yaml:"ws_endpoint"`

	// Logging Configuration
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Database Configuration
	DatabaseDriver       string `yaml:"database_driver"`
	DatabaseDSN          string `yaml:"database_dsn"`
	DatabaseMaxOpenConns int    `yaml:"database_max_open_conns"`

	// Invitations
	InvitationTTLDays   int    `yaml:"invitation_ttl_days"`
	InvitationSweepCron string `yaml:"invitation_sweep_cron"`

	// Persistence of suite trees
	PersistMaxAttempts       int `yaml:"persist_max_attempts"`
	PersistBreakerFailures   int `yaml:"persist_breaker_failures"`
	PersistBreakerTimeoutSec int `yaml:"persist_breaker_timeout_sec"`

	// Rate limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// Feature Toggles
	EnableWebSocket         bool `yaml:"enable_websocket"`
	EnableRateLimiting      bool `yaml:"enable_rate_limiting"`
	EnableInvitationSweeper bool `yaml:"enable_invitation_sweeper"`
	EnableDetailedErrors    bool `yaml:"enable_detailed_errors"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:        "8080",
		Host:        "localhost",
		Environment: "development",

		FrontendURL: "http://localhost:3000",
		WSEndpoint:  "/ws",

		LogLevel:  "info",
		LogFormat: "json",

		DatabaseDriver:       "sqlite",
		DatabaseDSN:          "file:testsuites.db",
		DatabaseMaxOpenConns: 10,

		InvitationTTLDays:   7,
		InvitationSweepCron: "@hourly",

		PersistMaxAttempts:       3,
		PersistBreakerFailures:   5,
		PersistBreakerTimeoutSec: 30,

		RateLimitPerMinute: 300,

		EnableWebSocket:         true,
		EnableRateLimiting:      true,
		EnableInvitationSweeper: true,
		EnableDetailedErrors:    false,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any) and environment variables, in that order of precedence.
func Load() *Config {
	cfg, err := LoadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: ignoring config file: %v\n", err)
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// LoadFile is Load with an explicit config file path; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides fields whose environment variable is set
func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Host = getEnv("HOST", c.Host)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.FrontendURL = getEnv("FRONTEND_URL", c.FrontendURL)
	c.WSEndpoint = getEnv("WS_ENDPOINT", c.WSEndpoint)

	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", c.LogFormat))

	c.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", c.DatabaseDriver))
	c.DatabaseDSN = getEnv("DATABASE_DSN", c.DatabaseDSN)
	c.DatabaseMaxOpenConns = getEnvAsInt("DATABASE_MAX_OPEN_CONNS", c.DatabaseMaxOpenConns)

	c.InvitationTTLDays = getEnvAsInt("INVITATION_TTL_DAYS", c.InvitationTTLDays)
	c.InvitationSweepCron = getEnv("INVITATION_SWEEP_CRON", c.InvitationSweepCron)

	c.PersistMaxAttempts = getEnvAsInt("PERSIST_MAX_ATTEMPTS", c.PersistMaxAttempts)
	c.PersistBreakerFailures = getEnvAsInt("PERSIST_BREAKER_FAILURES", c.PersistBreakerFailures)
	c.PersistBreakerTimeoutSec = getEnvAsInt("PERSIST_BREAKER_TIMEOUT_SEC", c.PersistBreakerTimeoutSec)

	c.RateLimitPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.EnableWebSocket = getEnvAsBool("ENABLE_WEBSOCKET", c.EnableWebSocket)
	c.EnableRateLimiting = getEnvAsBool("ENABLE_RATE_LIMITING", c.EnableRateLimiting)
	c.EnableInvitationSweeper = getEnvAsBool("ENABLE_INVITATION_SWEEPER", c.EnableInvitationSweeper)
	c.EnableDetailedErrors = getEnvAsBool("ENABLE_DETAILED_ERRORS", c.EnableDetailedErrors)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a fallback default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean with a fallback default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return c.Host + ":" + c.Port
}

// Validate validates the configuration and returns any errors
func (c *Config) Validate() []string {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT is required")
	}
	if c.Host == "" {
		errors = append(errors, "HOST is required")
	}

	if !contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		errors = append(errors, "LOG_LEVEL must be one of: debug, info, warn, error")
	}
	if !contains([]string{"json", "text"}, c.LogFormat) {
		errors = append(errors, "LOG_FORMAT must be one of: json, text")
	}
	if !contains([]string{"development", "staging", "production"}, c.Environment) {
		errors = append(errors, "ENVIRONMENT must be one of: development, staging, production")
	}

	switch c.DatabaseDriver {
	case "sqlite":
	case "mysql":
		if c.DatabaseDSN == "" {
			errors = append(errors, "DATABASE_DSN is required for the mysql driver")
		}
	default:
		errors = append(errors, "DATABASE_DRIVER must be one of: sqlite, mysql")
	}
	if c.DatabaseMaxOpenConns < 1 {
		errors = append(errors, "DATABASE_MAX_OPEN_CONNS must be at least 1")
	}

	if c.InvitationTTLDays < 1 || c.InvitationTTLDays > 90 {
		errors = append(errors, "INVITATION_TTL_DAYS must be between 1 and 90")
	}
	if _, err := cron.ParseStandard(c.InvitationSweepCron); err != nil {
		errors = append(errors, fmt.Sprintf("INVITATION_SWEEP_CRON is invalid: %v", err))
	}

	if c.PersistMaxAttempts < 1 {
		errors = append(errors, "PERSIST_MAX_ATTEMPTS must be at least 1")
	}
	if c.PersistBreakerFailures < 1 {
		errors = append(errors, "PERSIST_BREAKER_FAILURES must be at least 1")
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, "RATE_LIMIT_PER_MINUTE must be at least 1")
	}

	return errors
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
