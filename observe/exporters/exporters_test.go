package exporters

import (
	"bytes"
	"context"
	"errors"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// TestExporter_InvalidName verifies unknown exporter names are rejected.
func TestExporter_InvalidName(t *testing.T) {
	if _, err := NewTracingExporter(context.Background(), "invalid"); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("NewTracingExporter(invalid) error = %v, want ErrUnknownExporter", err)
	}
	if _, err := NewMetricsReader(context.Background(), "invalid"); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("NewMetricsReader(invalid) error = %v, want ErrUnknownExporter", err)
	}
}

// TestExporter_StdoutTracing verifies the stdout span exporter honours WithWriter.
func TestExporter_StdoutTracing(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewTracingExporter(context.Background(), Stdout, WithWriter(&buf))
	if err != nil {
		t.Fatalf("failed to create stdout tracing exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
}

// TestExporter_StdoutMetrics verifies the stdout metrics reader.
func TestExporter_StdoutMetrics(t *testing.T) {
	var buf bytes.Buffer
	reader, err := NewMetricsReader(context.Background(), Stdout, WithWriter(&buf))
	if err != nil {
		t.Fatalf("failed to create stdout metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}

// TestExporter_None verifies "none" and "" produce nil exporters.
func TestExporter_None(t *testing.T) {
	for _, name := range []string{None, ""} {
		exp, err := NewTracingExporter(context.Background(), name)
		if err != nil || exp != nil {
			t.Errorf("NewTracingExporter(%q) = %v, %v; want nil, nil", name, exp, err)
		}
		reader, err := NewMetricsReader(context.Background(), name)
		if err != nil || reader != nil {
			t.Errorf("NewMetricsReader(%q) = %v, %v; want nil, nil", name, reader, err)
		}
	}
}

// TestExporter_OtlpMissingEndpoint verifies OTLP without endpoint env fails.
func TestExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), OTLP); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("tracing error = %v, want ErrEndpointNotConfigured", err)
	}
	if _, err := NewMetricsReader(context.Background(), OTLP); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("metrics error = %v, want ErrEndpointNotConfigured", err)
	}
}

// TestExporter_OtlpWithEndpoint verifies OTLP with an endpoint succeeds.
// The gRPC exporter connects lazily, so no collector is needed.
func TestExporter_OtlpWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), OTLP)
	if err != nil {
		t.Fatalf("failed to create OTLP exporter: %v", err)
	}
	_ = exp.Shutdown(context.Background())
}

// TestExporter_JaegerMissingEndpoint verifies Jaeger requires its endpoint.
func TestExporter_JaegerMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")

	if _, err := NewTracingExporter(context.Background(), Jaeger); !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("error = %v, want ErrEndpointNotConfigured", err)
	}
}

// TestExporter_PrometheusRegisterer verifies the reader registers on the
// supplied registry rather than the global one.
func TestExporter_PrometheusRegisterer(t *testing.T) {
	reg := promclient.NewRegistry()
	reader, err := NewMetricsReader(context.Background(), Prometheus, WithRegisterer(reg))
	if err != nil {
		t.Fatalf("failed to create Prometheus reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}
