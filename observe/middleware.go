package observe

import (
	"context"
	"time"
)

// GenerateFunc is the signature of one call into the generation facility.
type GenerateFunc func(ctx context.Context, meta Meta) (any, error)

// Middleware wraps generation with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe GenerateFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded on the span and in
//     metrics and propagated unchanged. They are never logged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps a GenerateFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn GenerateFunc) GenerateFunc {
	return func(ctx context.Context, meta Meta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		result, err := fn(ctx, meta)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordGeneration(ctx, duration, err)

		if err == nil {
			m.logger.WithMeta(meta).Debug(ctx, "artifact generated",
				Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
			)
		}

		return result, err
	}
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger used by the middleware.
func (m *Middleware) Logger() Logger { return m.logger }

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
