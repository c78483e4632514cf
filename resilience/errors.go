package resilience

import "errors"

// Sentinel errors for guarded operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrInvalidConfig is returned by GuardConfig.Validate.
	ErrInvalidConfig = errors.New("resilience: invalid guard config")
)
