package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// TestConfigValidate verifies configuration validation against each sentinel.
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "valid",
			cfg: Config{
				ServiceName: "proxycache",
				Version:     "1.0.0",
				Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
				Metrics:     MetricsConfig{Enabled: true, Exporter: "stdout"},
				Logging:     LoggingConfig{Enabled: true, Level: "info"},
			},
		},
		{
			name:    "missing service name",
			cfg:     Config{},
			wantErr: ErrMissingServiceName,
		},
		{
			name: "unknown tracing exporter",
			cfg: Config{
				ServiceName: "proxycache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "zipkin"},
			},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name: "unknown metrics exporter",
			cfg: Config{
				ServiceName: "proxycache",
				Metrics:     MetricsConfig{Enabled: true, Exporter: "statsd"},
			},
			wantErr: ErrInvalidMetricsExporter,
		},
		{
			name: "sample pct above range",
			cfg: Config{
				ServiceName: "proxycache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "sample pct negative",
			cfg: Config{
				ServiceName: "proxycache",
				Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: -0.1},
			},
			wantErr: ErrInvalidSamplePct,
		},
		{
			name: "unknown log level",
			cfg: Config{
				ServiceName: "proxycache",
				Logging:     LoggingConfig{Enabled: true, Level: "trace"},
			},
			wantErr: ErrInvalidLogLevel,
		},
		{
			name: "disabled subsystems are not validated",
			cfg: Config{
				ServiceName: "proxycache",
				Tracing:     TracingConfig{Exporter: "zipkin"},
				Metrics:     MetricsConfig{Exporter: "statsd"},
				Logging:     LoggingConfig{Level: "trace"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

// TestNewObserver_InvalidConfig verifies NewObserver refuses invalid config.
func TestNewObserver_InvalidConfig(t *testing.T) {
	_, err := NewObserver(context.Background(), Config{})
	if !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("NewObserver() error = %v, want ErrMissingServiceName", err)
	}
}

// TestNewObserver_NoneExporters verifies enabled subsystems with "none"
// exporters produce working providers.
func TestNewObserver_NoneExporters(t *testing.T) {
	cfg := Config{
		ServiceName: "proxycache",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "error"},
	}

	ctx := context.Background()
	obs, err := NewObserver(ctx, cfg)
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	_, span := obs.Tracer().Start(ctx, "probe")
	span.End()

	if _, err := NewMetrics(obs.Meter()); err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	if err := obs.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := obs.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}

// TestObserver_ShutdownIdempotent verifies repeated and concurrent Shutdown
// calls stop the providers once and all report the first result.
func TestObserver_ShutdownIdempotent(t *testing.T) {
	cfg := Config{
		ServiceName: "proxycache",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	}
	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = obs.Shutdown(context.Background())
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Shutdown() #%d error = %v", i, err)
		}
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() after shutdown error = %v", err)
	}
}
