package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer(t *testing.T) (Tracer, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewTracer(tp.Tracer("test")), sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

// TestTracer_SpanAttributes verifies span name and generation attributes.
func TestTracer_SpanAttributes(t *testing.T) {
	tracer, sr := newRecordingTracer(t)

	meta := Meta{Scope: "loader-a", Capabilities: []string{"Reader", "Writer"}, KeyHash: 0xff}
	_, span := tracer.StartSpan(context.Background(), meta)
	tracer.EndSpan(span, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != SpanGenerate {
		t.Errorf("span name = %q, want %q", s.Name(), SpanGenerate)
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}

	attrs := attrMap(s.Attributes())
	if attrs[AttrScope].AsString() != "loader-a" {
		t.Errorf("%s = %v", AttrScope, attrs[AttrScope])
	}
	if got := attrs[AttrCapabilities].AsStringSlice(); len(got) != 2 || got[0] != "Reader" || got[1] != "Writer" {
		t.Errorf("%s = %v", AttrCapabilities, got)
	}
	if attrs[AttrCapabilityCount].AsInt64() != 2 {
		t.Errorf("%s = %v", AttrCapabilityCount, attrs[AttrCapabilityCount])
	}
	if attrs[AttrKeyHash].AsString() != "ff" {
		t.Errorf("%s = %v", AttrKeyHash, attrs[AttrKeyHash])
	}
	if attrs[AttrError].AsBool() {
		t.Error("error attribute set on successful span")
	}
}

// TestTracer_ErrorRecorded verifies failures mark the span and record an event.
func TestTracer_ErrorRecorded(t *testing.T) {
	tracer, sr := newRecordingTracer(t)

	_, span := tracer.StartSpan(context.Background(), Meta{Scope: "s"})
	tracer.EndSpan(span, errors.New("facility exploded"))

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error || s.Status().Description != "facility exploded" {
		t.Errorf("status = %+v", s.Status())
	}
	if !attrMap(s.Attributes())[AttrError].AsBool() {
		t.Error("error attribute not set")
	}
	if len(s.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

// TestTracer_CapabilityNamesCapped verifies very large capability sets are
// truncated on the span while the count stays exact.
func TestTracer_CapabilityNamesCapped(t *testing.T) {
	tracer, sr := newRecordingTracer(t)

	names := make([]string, maxSpanCapabilities+10)
	for i := range names {
		names[i] = "C"
	}
	_, span := tracer.StartSpan(context.Background(), Meta{Capabilities: names})
	tracer.EndSpan(span, nil)

	attrs := attrMap(sr.Ended()[0].Attributes())
	if got := len(attrs[AttrCapabilities].AsStringSlice()); got != maxSpanCapabilities {
		t.Errorf("span carries %d names, want %d", got, maxSpanCapabilities)
	}
	if got := attrs[AttrCapabilityCount].AsInt64(); got != int64(len(names)) {
		t.Errorf("count = %d, want %d", got, len(names))
	}
}

func spanFromContextValid(ctx context.Context) bool {
	return trace.SpanContextFromContext(ctx).IsValid()
}
