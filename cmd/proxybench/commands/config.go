package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/proxycache/cache"
	"github.com/jonwraymond/proxycache/observe"
	"github.com/jonwraymond/proxycache/resilience"
)

// ErrInvalidConfig indicates a config value out of range.
var ErrInvalidConfig = errors.New("proxybench: invalid config")

// Config is the proxybench configuration file.
type Config struct {
	Observe  observe.Config         `yaml:"observe"`
	Guard    resilience.GuardConfig `yaml:"guard"`
	Dedup    string                 `yaml:"dedup"` // none|per-key
	Workload WorkloadConfig         `yaml:"workload"`
	Health   HealthConfig           `yaml:"health"`
}

// WorkloadConfig shapes the synthetic workload.
type WorkloadConfig struct {
	// Scopes is the number of loaders the workload spreads over.
	Scopes int `yaml:"scopes"`
	// Contracts is the number of contracts defined in each loader.
	Contracts int `yaml:"contracts"`
	// ListLen is the length of every capability list requested.
	ListLen int `yaml:"list_len"`
	// Workers is the number of concurrent callers.
	Workers int `yaml:"workers"`
	// Iterations is the number of instances each worker builds.
	Iterations int `yaml:"iterations"`
	// Reclaim drops every loader after the run and waits for the collector.
	Reclaim bool `yaml:"reclaim"`
}

// HealthConfig configures the serve command.
type HealthConfig struct {
	Addr         string        `yaml:"addr"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxScopes    int           `yaml:"max_scopes"`
	MaxHeapBytes uint64        `yaml:"max_heap_bytes"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Observe: observe.Config{
			ServiceName: "proxybench",
			Version:     Version,
			Tracing:     observe.TracingConfig{Exporter: "none"},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "warn"},
		},
		Dedup: "none",
		Workload: WorkloadConfig{
			Scopes:     4,
			Contracts:  8,
			ListLen:    3,
			Workers:    8,
			Iterations: 1000,
		},
		Health: HealthConfig{
			Addr:     "127.0.0.1:9464",
			Interval: 5 * time.Second,
			Timeout:  2 * time.Second,
		},
	}
}

// LoadConfig reads path over the defaults. An empty path returns the
// defaults. ${VAR} references are expanded from the environment first.
// Unknown keys are rejected; values are checked by Validate.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	expanded, err := expandEnv(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Observe.Validate(); err != nil {
		return err
	}
	if err := c.Guard.Validate(); err != nil {
		return err
	}
	if _, err := cache.ParseDedupMode(c.Dedup); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	w := c.Workload
	switch {
	case w.Scopes < 1:
		return fmt.Errorf("%w: workload.scopes must be positive", ErrInvalidConfig)
	case w.Contracts < 1:
		return fmt.Errorf("%w: workload.contracts must be positive", ErrInvalidConfig)
	case w.ListLen < 0 || w.ListLen > w.Contracts:
		return fmt.Errorf("%w: workload.list_len must be between 0 and workload.contracts", ErrInvalidConfig)
	case w.Workers < 1:
		return fmt.Errorf("%w: workload.workers must be positive", ErrInvalidConfig)
	case w.Iterations < 0:
		return fmt.Errorf("%w: workload.iterations must not be negative", ErrInvalidConfig)
	case c.Health.Interval < 0:
		return fmt.Errorf("%w: health.interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Policy returns the cache policy the config selects.
func (c *Config) Policy() cache.Policy {
	mode, _ := cache.ParseDedupMode(c.Dedup)
	return cache.Policy{Dedup: mode}
}
