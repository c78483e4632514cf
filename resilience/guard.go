package resilience

import (
	"context"
	"fmt"
	"time"
)

// GuardConfig declares which protections wrap the generation facility.
// A zero field disables the matching protection.
type GuardConfig struct {
	MaxConcurrent    int64         `yaml:"max_concurrent"`
	MaxWait          time.Duration `yaml:"max_wait"`
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	Timeout          time.Duration `yaml:"timeout"`
}

// Validate validates the configuration.
func (c GuardConfig) Validate() error {
	switch {
	case c.MaxConcurrent < 0:
		return fmt.Errorf("%w: max_concurrent must not be negative", ErrInvalidConfig)
	case c.MaxWait < 0:
		return fmt.Errorf("%w: max_wait must not be negative", ErrInvalidConfig)
	case c.FailureThreshold < 0:
		return fmt.Errorf("%w: failure_threshold must not be negative", ErrInvalidConfig)
	case c.ResetTimeout < 0:
		return fmt.Errorf("%w: reset_timeout must not be negative", ErrInvalidConfig)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Enabled reports whether any protection is configured.
func (c GuardConfig) Enabled() bool {
	return c.MaxConcurrent > 0 || c.FailureThreshold > 0 || c.Timeout > 0
}

// Guard composes a bulkhead, a circuit breaker and a timeout.
//
// Failed operations are never retried: a failed generation is reported to
// the caller and the next call for the same key starts from scratch.
//
// Contract:
//   - Concurrency: Execute is safe for concurrent use.
//   - Errors: ErrBulkheadFull, ErrCircuitOpen and ErrTimeout are returned as
//     is or wrapped; any other error is the operation's own.
type Guard struct {
	bulkhead *Bulkhead
	circuit  *CircuitBreaker
	timeout  *Timeout
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// NewGuard creates a Guard from explicit components.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGuardFromConfig validates cfg and builds the matching Guard.
func NewGuardFromConfig(cfg GuardConfig) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []GuardOption
	if cfg.MaxConcurrent > 0 {
		opts = append(opts, WithBulkhead(NewBulkhead(BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxWait,
		})))
	}
	if cfg.FailureThreshold > 0 {
		opts = append(opts, WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
		})))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	return NewGuard(opts...), nil
}

// WithBulkhead adds bulkhead isolation to the guard.
func WithBulkhead(b *Bulkhead) GuardOption {
	return func(g *Guard) { g.bulkhead = b }
}

// WithCircuitBreaker adds a circuit breaker to the guard.
func WithCircuitBreaker(cb *CircuitBreaker) GuardOption {
	return func(g *Guard) { g.circuit = cb }
}

// WithTimeout adds a per-operation deadline to the guard.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.timeout = NewTimeout(TimeoutConfig{Timeout: d}) }
}

// Execute runs op through the configured protections.
//
// Order, outermost first: bulkhead, circuit breaker, timeout. Rejections by
// the bulkhead never count against the circuit.
func (g *Guard) Execute(ctx context.Context, op func(context.Context) error) error {
	run := op

	if g.timeout != nil {
		inner := run
		run = func(ctx context.Context) error { return g.timeout.Execute(ctx, inner) }
	}
	if g.circuit != nil {
		inner := run
		run = func(ctx context.Context) error { return g.circuit.Execute(ctx, inner) }
	}
	if g.bulkhead != nil {
		inner := run
		run = func(ctx context.Context) error { return g.bulkhead.Execute(ctx, inner) }
	}

	return run(ctx)
}

// CircuitState returns the circuit state, or StateClosed when no circuit
// breaker is configured.
func (g *Guard) CircuitState() State {
	if g.circuit == nil {
		return StateClosed
	}
	return g.circuit.State()
}

// Metrics returns a snapshot of every configured component.
func (g *Guard) Metrics() GuardMetrics {
	var m GuardMetrics
	if g.bulkhead != nil {
		bm := g.bulkhead.Metrics()
		m.Bulkhead = &bm
	}
	if g.circuit != nil {
		cm := g.circuit.Metrics()
		m.Circuit = &cm
	}
	return m
}

// GuardMetrics contains guard statistics. Nil fields are not configured.
type GuardMetrics struct {
	Bulkhead *BulkheadMetrics
	Circuit  *CircuitBreakerMetrics
}
