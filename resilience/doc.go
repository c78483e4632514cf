// Package resilience guards calls into an external generation facility.
//
// A Guard composes three protections, each optional:
//
//   - Bulkhead: bounds concurrent generations (golang.org/x/sync/semaphore).
//   - Circuit breaker: stops calling a facility that keeps failing.
//   - Timeout: gives each generation a deadline through its context.
//
// There is deliberately no retry. A failed generation surfaces to the caller
// unchanged and leaves no cache entry behind, so the next request for the
// same key generates from scratch.
//
// # Usage
//
//	guard, err := resilience.NewGuardFromConfig(resilience.GuardConfig{
//	    MaxConcurrent:    8,
//	    FailureThreshold: 5,
//	    ResetTimeout:     time.Minute,
//	    Timeout:          2 * time.Second,
//	})
//	if err != nil {
//	    return err
//	}
//
//	err = guard.Execute(ctx, func(ctx context.Context) error {
//	    artifact, err = facility.Generate(ctx, scope, caps)
//	    return err
//	})
package resilience
