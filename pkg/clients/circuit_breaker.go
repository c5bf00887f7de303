package clients

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-returnless/pkg/metrics"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a single probe to test if the API has recovered
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// HTTPCircuitBreaker opens after a run of consecutive failures and rejects
// requests until the reset timeout has passed. Only retryable failures
// (network errors, 5xx) should be recorded as failures.
type HTTPCircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration
	logger           *zap.Logger
	now              func() time.Time

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	probeInFlight       bool
}

// NewHTTPCircuitBreaker creates a circuit breaker
func NewHTTPCircuitBreaker(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger) *HTTPCircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &HTTPCircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           logger.With(zap.String("component", "circuit_breaker")),
		now:              time.Now,
	}
}

// Allow reports whether a request may be attempted
func (cb *HTTPCircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probeInFlight = true
		return true
	default:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	}
}

// RecordSuccess closes the circuit
func (cb *HTTPCircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.probeInFlight = false
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// RecordFailure counts a failure and opens the circuit once the threshold
// is reached. A failed half-open probe reopens immediately.
func (cb *HTTPCircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	cb.probeInFlight = false
	if cb.state == StateHalfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		cb.openedAt = cb.now()
		if cb.state != StateOpen {
			cb.transition(StateOpen)
		}
	}
}

// State returns the current state
func (cb *HTTPCircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *HTTPCircuitBreaker) transition(to CircuitState) {
	cb.logger.Info("circuit breaker state change",
		zap.Stringer("from", cb.state),
		zap.Stringer("to", to),
		zap.Int("consecutive_failures", cb.consecutiveFailures))
	cb.state = to
	if to == StateOpen {
		metrics.CircuitOpen.Set(1)
	} else {
		metrics.CircuitOpen.Set(0)
	}
}
