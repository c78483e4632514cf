// Package health reports the health of a proxy cache and its dependencies.
//
// A Checker reports one component as Healthy, Degraded or Unhealthy. The
// Aggregator runs a set of checkers under a shared deadline and the HTTP
// handlers expose the outcome as liveness, readiness and detailed JSON
// endpoints.
//
// The cache checkers read proxy.Stats: FaultChecker turns unhealthy on the
// first generation fault, ScopeChecker degrades when the registry or heap
// grows past a limit, and CircuitChecker mirrors the guard's circuit state.
//
// # Usage
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewFaultChecker("faults", c))
//	agg.Register(health.NewScopeChecker("scopes", c, health.ScopeCheckerConfig{MaxScopes: 10000}))
//	agg.Register(health.NewCircuitChecker("circuit", c.Guard()))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
