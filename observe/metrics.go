package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricLookups          = "proxycache.lookups"
	MetricGenerations      = "proxycache.generations"
	MetricGenerationErrors = "proxycache.generation.errors"
	MetricGenerationMs     = "proxycache.generation.duration_ms"
	MetricReclaims         = "proxycache.reclaims"
)

// ReclaimKind distinguishes what the collector reclaimed.
type ReclaimKind string

const (
	ReclaimArtifact ReclaimKind = "artifact"
	ReclaimScope    ReclaimKind = "scope"
)

// Metrics records cache and generation metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; ctx may be context.Background() for
// events raised by the collector.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup records one sub-cache lookup.
	RecordLookup(ctx context.Context, hit bool)

	// RecordGeneration records one call into the generation facility.
	RecordGeneration(ctx context.Context, duration time.Duration, err error)

	// RecordReclaim records an entry or scope dropped after collection.
	RecordReclaim(ctx context.Context, kind ReclaimKind)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	generations  metric.Int64Counter
	errors       metric.Int64Counter
	durationHist metric.Float64Histogram
	reclaims     metric.Int64Counter
}

var (
	attrHit  = metric.WithAttributes(attribute.String("result", "hit"))
	attrMiss = metric.WithAttributes(attribute.String("result", "miss"))
)

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(MetricLookups,
		metric.WithDescription("Sub-cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	generations, err := meter.Int64Counter(MetricGenerations,
		metric.WithDescription("Calls into the generation facility"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errs, err := meter.Int64Counter(MetricGenerationErrors,
		metric.WithDescription("Failed calls into the generation facility"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(MetricGenerationMs,
		metric.WithDescription("Generation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reclaims, err := meter.Int64Counter(MetricReclaims,
		metric.WithDescription("Entries and scopes dropped after collection"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		generations:  generations,
		errors:       errs,
		durationHist: durationHist,
		reclaims:     reclaims,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, hit bool) {
	if hit {
		m.lookups.Add(ctx, 1, attrHit)
		return
	}
	m.lookups.Add(ctx, 1, attrMiss)
}

func (m *metricsImpl) RecordGeneration(ctx context.Context, duration time.Duration, err error) {
	m.generations.Add(ctx, 1)
	if err != nil {
		m.errors.Add(ctx, 1)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000)
}

func (m *metricsImpl) RecordReclaim(ctx context.Context, kind ReclaimKind) {
	m.reclaims.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

type nopMetrics struct{}

// NopMetrics returns Metrics that record nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordLookup(context.Context, bool)                     {}
func (nopMetrics) RecordGeneration(context.Context, time.Duration, error) {}
func (nopMetrics) RecordReclaim(context.Context, ReclaimKind)             {}
