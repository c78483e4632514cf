package observe

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Attribute and log field keys.
const (
	AttrScope           = "proxycache.scope"
	AttrCapabilities    = "proxycache.capabilities"
	AttrCapabilityCount = "proxycache.capability_count"
	AttrKeyHash         = "proxycache.key_hash"
	AttrError           = "proxycache.error"
)

// SpanGenerate is the name of the span around one artifact generation.
const SpanGenerate = "proxycache.generate"

// maxSpanCapabilities caps the capability names copied onto a span.
const maxSpanCapabilities = 32

// Meta describes one artifact generation for telemetry purposes.
type Meta struct {
	Scope        string   // Label of the scope the artifact is generated under
	Capabilities []string // Ordered capability names
	KeyHash      uint64   // Fingerprint of the capability-set key
}

func (m Meta) attributes() []attribute.KeyValue {
	names := m.Capabilities
	if len(names) > maxSpanCapabilities {
		names = names[:maxSpanCapabilities]
	}
	return []attribute.KeyValue{
		attribute.String(AttrScope, m.Scope),
		attribute.StringSlice(AttrCapabilities, names),
		attribute.Int(AttrCapabilityCount, len(m.Capabilities)),
		attribute.String(AttrKeyHash, strconv.FormatUint(m.KeyHash, 16)),
	}
}

// Tracer wraps OpenTelemetry tracing with generation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one generation.
	StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool(AttrError, false))
	return t.tracer.Start(ctx, SpanGenerate,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool(AttrError, true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
