package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until ResetTimeout elapses.
	StateOpen
	// StateHalfOpen admits a bounded number of probe calls.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of calls admitted while half-open.
	// Default: 1
	HalfOpenProbes int

	// OnStateChange is called after each transition, outside the breaker lock.
	OnStateChange func(from, to State)

	// IsFailure decides whether an error counts against the circuit.
	// Default: every non-nil error.
	IsFailure func(err error) bool
}

// CircuitBreaker stops calling a failing generation facility until it has
// had time to recover.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	probes   int
	openedAt time.Time
	trips    int64
}

type transition struct{ from, to State }

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}

	return &CircuitBreaker{config: config, now: time.Now}
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := op(ctx)
	cb.record(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	var changes []transition
	state := cb.refreshLocked(&changes)
	cb.mu.Unlock()

	cb.notify(changes)
	return state
}

// Reset closes the circuit and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	cb.moveLocked(StateClosed, &changes)
	cb.failures = 0
	cb.mu.Unlock()

	cb.notify(changes)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	var changes []transition
	err := func() error {
		switch cb.refreshLocked(&changes) {
		case StateOpen:
			return ErrCircuitOpen
		case StateHalfOpen:
			if cb.probes >= cb.config.HalfOpenProbes {
				return ErrCircuitOpen
			}
			cb.probes++
		}
		return nil
	}()
	cb.mu.Unlock()

	cb.notify(changes)
	return err
}

func (cb *CircuitBreaker) record(err error) {
	failed := cb.config.IsFailure(err)

	cb.mu.Lock()
	var changes []transition
	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.moveLocked(StateOpen, &changes)
		}
	case StateHalfOpen:
		if failed {
			cb.moveLocked(StateOpen, &changes)
		} else {
			cb.failures = 0
			cb.moveLocked(StateClosed, &changes)
		}
	}
	cb.mu.Unlock()

	cb.notify(changes)
}

// refreshLocked moves an open circuit to half-open once ResetTimeout has elapsed.
func (cb *CircuitBreaker) refreshLocked(changes *[]transition) State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.moveLocked(StateHalfOpen, changes)
	}
	return cb.state
}

func (cb *CircuitBreaker) moveLocked(to State, changes *[]transition) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.probes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
		cb.trips++
	}
	*changes = append(*changes, transition{from: from, to: to})
}

func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(c.from, c.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	var changes []transition
	m := CircuitBreakerMetrics{
		State:    cb.refreshLocked(&changes),
		Failures: cb.failures,
		Trips:    cb.trips,
		OpenedAt: cb.openedAt,
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State    State
	Failures int       // consecutive failures while closed
	Trips    int64     // times the circuit has opened
	OpenedAt time.Time // last time the circuit opened
}
