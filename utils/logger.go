package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/gofiber/fiber/v2"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var levelColors = map[LogLevel]*color.Color{
	DEBUG: color.New(color.FgHiBlack),
	INFO:  color.New(color.FgCyan),
	WARN:  color.New(color.FgYellow),
	ERROR: color.New(color.FgRed, color.Bold),
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	TraceID   string                 `json:"trace_id,omitempty"`
	TenantID  string                 `json:"tenant_id,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Error     string                 `json:"error,omitempty"`
	File      string                 `json:"file,omitempty"`
	Line      int                    `json:"line,omitempty"`
}

// Logger represents a structured logger
type Logger struct {
	level  LogLevel
	format string // "json" or "text"

	mu  sync.Mutex
	out io.Writer
}

// NewLogger creates a new logger writing to stdout
func NewLogger(level, format string) *Logger {
	if format != "json" && format != "text" {
		format = "json"
	}

	return &Logger{
		level:  parseLogLevel(level),
		format: format,
		out:    os.Stdout,
	}
}

// SetOutput redirects log output, e.g. to stderr for CLI commands or a buffer in tests
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// Level returns the minimum level that is written
func (l *Logger) Level() LogLevel {
	return l.level
}

// parseLogLevel parses string log level to LogLevel enum
func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// root returns an empty scoped logger; the plain Logger methods delegate to it
func (l *Logger) root() *LoggerWithContext {
	return &LoggerWithContext{logger: l}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, context ...map[string]interface{}) {
	l.root().emit(DEBUG, message, nil, context)
}

// Info logs an info message
func (l *Logger) Info(message string, context ...map[string]interface{}) {
	l.root().emit(INFO, message, nil, context)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, context ...map[string]interface{}) {
	l.root().emit(WARN, message, nil, context)
}

// Error logs an error message
func (l *Logger) Error(message string, err error, context ...map[string]interface{}) {
	l.root().emit(ERROR, message, err, context)
}

// WithTraceID adds trace ID to log entry
func (l *Logger) WithTraceID(traceID string) *LoggerWithContext {
	return l.root().WithTraceID(traceID)
}

// WithSource adds source information to log entry
func (l *Logger) WithSource(source string) *LoggerWithContext {
	return l.root().WithSource(source)
}

// WithTenant scopes log entries to a tenant
func (l *Logger) WithTenant(tenantID string) *LoggerWithContext {
	return l.root().WithTenant(tenantID)
}

// LoggerWithContext represents a logger with additional context
type LoggerWithContext struct {
	logger   *Logger
	traceID  string
	tenantID string
	source   string
	context  map[string]interface{}
}

func (lwc *LoggerWithContext) clone() *LoggerWithContext {
	c := *lwc
	return &c
}

// WithTraceID adds trace ID to log entry
func (lwc *LoggerWithContext) WithTraceID(traceID string) *LoggerWithContext {
	c := lwc.clone()
	c.traceID = traceID
	return c
}

// WithSource adds source information to log entry
func (lwc *LoggerWithContext) WithSource(source string) *LoggerWithContext {
	c := lwc.clone()
	c.source = source
	return c
}

// WithTenant scopes log entries to a tenant
func (lwc *LoggerWithContext) WithTenant(tenantID string) *LoggerWithContext {
	c := lwc.clone()
	c.tenantID = tenantID
	return c
}

// WithContext adds context to the logger
func (lwc *LoggerWithContext) WithContext(context map[string]interface{}) *LoggerWithContext {
	c := lwc.clone()
	c.context = mergeContext(lwc.context, []map[string]interface{}{context})
	return c
}

// Debug logs a debug message with context
func (lwc *LoggerWithContext) Debug(message string, context ...map[string]interface{}) {
	lwc.emit(DEBUG, message, nil, context)
}

// Info logs an info message with context
func (lwc *LoggerWithContext) Info(message string, context ...map[string]interface{}) {
	lwc.emit(INFO, message, nil, context)
}

// Warn logs a warning message with context
func (lwc *LoggerWithContext) Warn(message string, context ...map[string]interface{}) {
	lwc.emit(WARN, message, nil, context)
}

// Error logs an error message with context
func (lwc *LoggerWithContext) Error(message string, err error, context ...map[string]interface{}) {
	lwc.emit(ERROR, message, err, context)
}

func mergeContext(base map[string]interface{}, extra []map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for _, ctx := range extra {
		for k, v := range ctx {
			merged[k] = v
		}
	}
	return merged
}

// emit must be called directly by the exported logging methods so that the
// caller lookup lands on the code that logged.
func (lwc *LoggerWithContext) emit(level LogLevel, message string, err error, context []map[string]interface{}) {
	if level < lwc.logger.level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
		TraceID:   lwc.traceID,
		TenantID:  lwc.tenantID,
		Source:    lwc.source,
		Context:   mergeContext(lwc.context, context),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File = filepath.Base(file)
		entry.Line = line
	}

	lwc.logger.write(level, entry)
}

func (l *Logger) write(level LogLevel, entry LogEntry) {
	var line string
	if l.format == "json" {
		data, err := json.Marshal(entry)
		if err != nil {
			data, _ = json.Marshal(LogEntry{
				Timestamp: entry.Timestamp,
				Level:     entry.Level,
				Message:   entry.Message,
				Error:     fmt.Sprintf("unserializable log context: %v", err),
			})
		}
		line = string(data)
	} else {
		line = formatText(level, entry)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, line)
}

// formatText renders an entry in human-readable text format
func formatText(level LogLevel, entry LogEntry) string {
	var b strings.Builder
	levelText := entry.Level
	if c, ok := levelColors[level]; ok {
		levelText = c.Sprint(entry.Level)
	}
	fmt.Fprintf(&b, "[%s] %s: %s", entry.Timestamp.Format("2006-01-02 15:04:05"), levelText, entry.Message)

	if entry.TraceID != "" {
		fmt.Fprintf(&b, " [trace_id=%s]", entry.TraceID)
	}
	if entry.TenantID != "" {
		fmt.Fprintf(&b, " [tenant_id=%s]", entry.TenantID)
	}
	if entry.Source != "" {
		fmt.Fprintf(&b, " [source=%s]", entry.Source)
	}
	if entry.File != "" && entry.Line > 0 {
		fmt.Fprintf(&b, " [%s:%d]", entry.File, entry.Line)
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " [error=%s]", entry.Error)
	}
	if len(entry.Context) > 0 {
		contextStr, _ := json.Marshal(entry.Context)
		fmt.Fprintf(&b, " [context=%s]", contextStr)
	}
	return b.String()
}

// Global logger instance
var (
	globalLogger   *Logger
	globalLoggerMu sync.Mutex
)

// InitLogger initializes the global logger
func InitLogger(level, format string) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = NewLogger(level, format)
}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger("info", "json")
	}
	return globalLogger
}

// LogRequest logs HTTP request information
func LogRequest(c *fiber.Ctx, logger *Logger) {
	logger.WithTraceID(GetTraceID(c)).WithSource("http").Debug("Request received", map[string]interface{}{
		"method":     c.Method(),
		"path":       c.Path(),
		"ip":         c.IP(),
		"user_agent": c.Get("User-Agent"),
	})
}

// LogResponse logs HTTP response information at a level derived from the status code
func LogResponse(c *fiber.Ctx, logger *Logger, statusCode int, duration time.Duration) {
	context := map[string]interface{}{
		"method":      c.Method(),
		"path":        c.Path(),
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	scoped := logger.WithTraceID(GetTraceID(c)).WithSource("http")
	switch {
	case statusCode >= 500:
		scoped.Error("Request failed", nil, context)
	case statusCode >= 400:
		scoped.Warn("Request completed", context)
	default:
		scoped.Info("Request completed", context)
	}
}
