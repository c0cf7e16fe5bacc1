package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, the first one included
	MaxAttempts int
	// InitialDelay is the delay before the second attempt
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
	// Jitter adds up to 10% random delay
	Jitter bool
	// RetryableErrors are matched with errors.Is
	RetryableErrors []error
	// RetryCondition overrides every other retry rule when set
	RetryCondition func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      50 * time.Millisecond,
		MaxDelay:          2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// RetryableError wraps the last error of an Execute call
type RetryableError struct {
	Err       error
	Retryable bool
	Attempt   int
}

// Error implements the error interface
func (e *RetryableError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, e.Err)
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return false
}

// RetryExecutor handles retry logic
type RetryExecutor struct {
	config *RetryConfig
	logger *Logger
}

// NewRetryExecutor creates a new retry executor
func NewRetryExecutor(config *RetryConfig, logger *Logger) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = GetLogger()
	}

	return &RetryExecutor{
		config: config,
		logger: logger,
	}
}

// Execute runs operation until it succeeds, fails with a non-retryable error,
// runs out of attempts or ctx is done
func (re *RetryExecutor) Execute(ctx context.Context, operation func(context.Context) error) error {
	log := re.logger.WithSource("retry_executor")
	var lastErr error

	for attempt := 1; attempt <= re.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !re.isRetryable(err) {
			return &RetryableError{Err: err, Retryable: false, Attempt: attempt}
		}
		if attempt == re.config.MaxAttempts {
			break
		}

		delay := ExponentialBackoff(attempt, re.config.InitialDelay, re.config.MaxDelay, re.config.BackoffMultiplier, re.config.Jitter)
		log.Warn("Operation failed, retrying", map[string]interface{}{
			"error":        err.Error(),
			"attempt":      attempt,
			"max_attempts": re.config.MaxAttempts,
			"retry_delay":  delay.String(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	log.Error("All retry attempts failed", lastErr, map[string]interface{}{
		"max_attempts": re.config.MaxAttempts,
	})
	return &RetryableError{Err: lastErr, Retryable: true, Attempt: re.config.MaxAttempts}
}

// isRetryable determines if an error should trigger a retry
func (re *RetryExecutor) isRetryable(err error) bool {
	if re.config.RetryCondition != nil {
		return re.config.RetryCondition(err)
	}

	for _, retryableErr := range re.config.RetryableErrors {
		if errors.Is(err, retryableErr) {
			return true
		}
	}

	return IsTransientError(err)
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"temporary failure",
	"service unavailable",
	"database is locked",
	"database table is locked",
	"deadlock",
	"too many connections",
	"network is unreachable",
	"no route to host",
}

// IsTransientError reports whether err looks like a passing infrastructure
// failure. Circuit breaker rejections and context errors are never transient.
func IsTransientError(err error) bool {
	if err == nil || IsCircuitBreakerError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryWithCircuitBreaker runs operation through the circuit breaker, retrying
// rejected-by-operation failures. An open circuit fails fast without retrying.
func RetryWithCircuitBreaker(
	ctx context.Context,
	retryConfig *RetryConfig,
	circuitBreaker *CircuitBreaker,
	operation func(context.Context) error,
	logger *Logger,
) error {
	retryExecutor := NewRetryExecutor(retryConfig, logger)

	return retryExecutor.Execute(ctx, func(ctx context.Context) error {
		return circuitBreaker.Execute(ctx, operation)
	})
}

// ExponentialBackoff calculates exponential backoff delay
func ExponentialBackoff(attempt int, initialDelay, maxDelay time.Duration, multiplier float64, jitter bool) time.Duration {
	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt-1))

	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	if jitter {
		delay += rand.Float64() * 0.1 * delay
	}

	return time.Duration(delay)
}
