package guard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pawtap/server/internal/domain"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker stops calls to one remote resource after failThreshold consecutive
// failures. Once resetTimeout has passed a single probe is let through; its outcome
// closes or reopens the circuit.
type CircuitBreaker struct {
	mu            sync.Mutex
	resource      string
	failThreshold int
	resetTimeout  time.Duration
	now           func() time.Time

	state    CircuitState
	failures int
	openedAt time.Time
	probing  bool
}

// NewCircuitBreaker creates a closed breaker for resource.
func NewCircuitBreaker(resource string, failThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		resource:      resource,
		failThreshold: failThreshold,
		resetTimeout:  resetTimeout,
		now:           time.Now,
	}
}

// Allow returns nil when a call may proceed and ErrUnavailable otherwise.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		since := cb.now().Sub(cb.openedAt)
		if since <= cb.resetTimeout {
			return cb.rejected(fmt.Sprintf("circuit open, resets in %s", (cb.resetTimeout - since).Round(time.Millisecond)))
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		return nil
	case CircuitHalfOpen:
		if cb.probing {
			return cb.rejected("circuit half-open, probe in flight")
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) rejected(reason string) error {
	return domain.ErrUnavailable(cb.resource, errors.New(reason))
}

// Success records a successful call and closes the circuit.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.probing = false
}

// Failure records a failed call. A failed probe reopens the circuit immediately.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.probing = false
	if cb.state == CircuitHalfOpen || cb.failures >= cb.failThreshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
	}
}

// State reports the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
