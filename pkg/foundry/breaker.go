package foundry

import (
	"errors"
	"sync"
	"time"

	"interviewer/pkg/config"
)

// BreakerState represents the current state of a circuit breaker.
type BreakerState int

// Circuit breaker states.
const (
	Closed   BreakerState = iota // Normal operation
	Open                         // Failing, reject requests
	HalfOpen                     // Probing whether the service recovered
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case HalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is wrapped by KindCircuitOpen request errors.
var ErrCircuitOpen = errors.New("circuit breaker is OPEN")

// Breaker gates logical requests after repeated retryable failures.
//
//nolint:govet // Logical field grouping preferred over memory alignment
type Breaker struct {
	config          config.CircuitBreaker
	now             func() time.Time
	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time
}

// NewBreaker creates a closed breaker. It returns nil when cfg disables it.
func NewBreaker(cfg config.CircuitBreaker) *Breaker {
	if cfg.FailureThreshold <= 0 {
		return nil
	}
	return &Breaker{config: cfg, now: time.Now, state: Closed}
}

// Allow checks if a request should be allowed based on current state.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.config.Cooldown {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// Record records the outcome of a logical request.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.onSuccess()
	} else {
		b.onFailure()
	}
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	case Open:
	}
}

func (b *Breaker) onFailure() {
	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case Closed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		// Any failure while probing reopens the circuit.
		b.state = Open
		b.successCount = 0
	case Open:
	}
}
