package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	// StateClosed - requests are allowed
	StateClosed CircuitBreakerState = iota
	// StateOpen - requests are rejected until the timeout passes
	StateOpen
	// StateHalfOpen - a limited number of trial requests is allowed
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int
	// Timeout is the time spent open before trial requests are let through
	Timeout time.Duration
	// MaxRequests is the number of trial requests allowed while half-open
	MaxRequests int
	// SuccessThreshold is the number of trial successes that closes the circuit
	SuccessThreshold int
	// Name identifies the breaker in logs and errors
	Name string
	// IsFailure reports whether err counts against the circuit. Errors it
	// rejects are treated as successes. Nil counts every error.
	IsFailure func(error) bool
}

// DefaultCircuitBreakerConfig returns a default configuration
func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		MaxRequests:      3,
		SuccessThreshold: 2,
		Name:             name,
	}
}

// CircuitBreakerStats is a point-in-time view of a breaker
type CircuitBreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"last_failure_time,omitempty"`
	StateChangedAt  time.Time `json:"state_changed_at"`
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	config *CircuitBreakerConfig
	logger *Logger
	now    func() time.Time

	mu               sync.Mutex
	state            CircuitBreakerState
	failures         int
	successes        int
	inFlight         int
	lastFailureTime  time.Time
	stateChangedTime time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig, logger *Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig("default")
	}
	if logger == nil {
		logger = GetLogger()
	}

	return &CircuitBreaker{
		config:           config,
		logger:           logger,
		now:              time.Now,
		state:            StateClosed,
		stateChangedTime: time.Now(),
	}
}

// Execute runs fn unless the circuit is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if state, ok := cb.acquire(); !ok {
		return &CircuitBreakerError{
			Name:    cb.config.Name,
			State:   state,
			Message: fmt.Sprintf("circuit breaker %s is %s", cb.config.Name, state),
		}
	}

	err := fn(ctx)
	cb.release(err)
	return err
}

// acquire decides whether a request may run and reserves a half-open slot
func (cb *CircuitBreaker) acquire() (CircuitBreakerState, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.stateChangedTime) >= cb.config.Timeout {
		cb.setState(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return cb.state, true
	case StateHalfOpen:
		if cb.inFlight >= cb.config.MaxRequests {
			return cb.state, false
		}
		cb.inFlight++
		return cb.state, true
	default:
		return cb.state, false
	}
}

func (cb *CircuitBreaker) release(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}

	if err != nil && (cb.config.IsFailure == nil || cb.config.IsFailure(err)) {
		cb.failures++
		cb.lastFailureTime = cb.now()
		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.MaxFailures {
				cb.setState(StateOpen)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
		}
		return
	}

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	if cb.state == newState {
		return
	}
	oldState := cb.state
	cb.state = newState
	cb.stateChangedTime = cb.now()
	cb.successes = 0
	cb.inFlight = 0
	if newState == StateClosed {
		cb.failures = 0
	}

	cb.logger.WithSource("circuit_breaker").Info("Circuit breaker state changed", map[string]interface{}{
		"circuit_breaker": cb.config.Name,
		"old_state":       oldState.String(),
		"new_state":       newState.String(),
	})
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns a snapshot of the breaker counters
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:            cb.config.Name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		LastFailureTime: cb.lastFailureTime,
		StateChangedAt:  cb.stateChangedTime,
	}
}

// Reset closes the circuit and clears all counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
}

// CircuitBreakerError is returned when the circuit rejects a request
type CircuitBreakerError struct {
	Name    string
	State   CircuitBreakerState
	Message string
}

// Error implements the error interface
func (e *CircuitBreakerError) Error() string {
	return e.Message
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
