package health

import (
	"context"
	"fmt"
	"runtime"

	"github.com/jonwraymond/proxycache/proxy"
	"github.com/jonwraymond/proxycache/resilience"
)

// StatsSource exposes cache counters. *proxy.Cache satisfies it.
type StatsSource interface {
	Stats() proxy.Stats
}

// FaultChecker reports a cache unhealthy once any generation fault has been
// observed. Faults should not happen in correct operation, so one is enough.
type FaultChecker struct {
	name   string
	source StatsSource
}

// NewFaultChecker creates a fault checker over source.
func NewFaultChecker(name string, source StatsSource) *FaultChecker {
	return &FaultChecker{name: name, source: source}
}

// Name returns the name of this checker.
func (c *FaultChecker) Name() string { return c.name }

// Check performs the health check.
func (c *FaultChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	st := c.source.Stats()
	details := map[string]any{
		"faults":            st.Faults,
		"generations":       st.Generations,
		"generation_errors": st.GenerationErrors,
	}
	if st.Faults > 0 {
		return Unhealthy(fmt.Sprintf("%d generation faults", st.Faults), ErrCheckFailed).WithDetails(details)
	}
	return Healthy("no generation faults").WithDetails(details)
}

// ScopeCheckerConfig configures the scope checker.
type ScopeCheckerConfig struct {
	// MaxScopes is the live scope count above which the cache is degraded.
	// Zero disables the limit.
	MaxScopes int

	// MaxHeapBytes is the heap size above which the cache is degraded.
	// Zero disables the limit.
	MaxHeapBytes uint64
}

// ScopeChecker reports how many scopes the registry holds alongside heap
// figures. A registry that keeps growing while the heap does too usually
// means scopes are being kept reachable elsewhere.
type ScopeChecker struct {
	name   string
	source StatsSource
	config ScopeCheckerConfig
}

// NewScopeChecker creates a scope checker over source.
func NewScopeChecker(name string, source StatsSource, config ScopeCheckerConfig) *ScopeChecker {
	return &ScopeChecker{name: name, source: source, config: config}
}

// Name returns the name of this checker.
func (c *ScopeChecker) Name() string { return c.name }

// Check performs the health check.
func (c *ScopeChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	st := c.source.Stats()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	details := map[string]any{
		"scopes":              st.Scopes,
		"subcaches_created":   st.SubCachesCreated,
		"subcaches_replaced":  st.SubCachesReplaced,
		"scopes_reclaimed":    st.ScopesReclaimed,
		"artifacts_reclaimed": st.ArtifactsReclaimed,
		"heap_alloc":          mem.HeapAlloc,
		"heap_objects":        mem.HeapObjects,
		"num_gc":              mem.NumGC,
		"goroutines":          runtime.NumGoroutine(),
	}

	if c.config.MaxScopes > 0 && st.Scopes > c.config.MaxScopes {
		return Degraded(fmt.Sprintf("%d live scopes exceeds %d", st.Scopes, c.config.MaxScopes)).WithDetails(details)
	}
	if c.config.MaxHeapBytes > 0 && mem.HeapAlloc > c.config.MaxHeapBytes {
		return Degraded(fmt.Sprintf("heap %d bytes exceeds %d", mem.HeapAlloc, c.config.MaxHeapBytes)).WithDetails(details)
	}
	return Healthy(fmt.Sprintf("%d live scopes", st.Scopes)).WithDetails(details)
}

// GuardSource exposes a guard's circuit state. *resilience.Guard satisfies it.
type GuardSource interface {
	CircuitState() resilience.State
}

// CircuitChecker reports an open circuit as unhealthy and a half-open one as
// degraded.
type CircuitChecker struct {
	name  string
	guard GuardSource
}

// NewCircuitChecker creates a circuit checker over guard.
func NewCircuitChecker(name string, guard GuardSource) *CircuitChecker {
	return &CircuitChecker{name: name, guard: guard}
}

// Name returns the name of this checker.
func (c *CircuitChecker) Name() string { return c.name }

// Check performs the health check.
func (c *CircuitChecker) Check(context.Context) Result {
	state := c.guard.CircuitState()
	details := map[string]any{"state": state.String()}

	switch state {
	case resilience.StateOpen:
		return Unhealthy("circuit open", resilience.ErrCircuitOpen).WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("circuit probing").WithDetails(details)
	default:
		return Healthy("circuit closed").WithDetails(details)
	}
}
