// Package observe provides observability primitives for proxy generation.
//
// It is a pure instrumentation library: no generation, no caching, no I/O
// beyond exporter setup. The proxy package plugs a Middleware around calls
// into the generation facility and forwards cache lifecycle events to the
// same Metrics and Logger.
package observe
