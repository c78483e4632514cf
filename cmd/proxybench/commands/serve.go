package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/proxycache/health"
	"github.com/jonwraymond/proxycache/observe"
	"github.com/jonwraymond/proxycache/observe/exporters"
)

const shutdownTimeout = 5 * time.Second

func (c *CLI) newServeCmd() *cobra.Command {
	var (
		f    runFlags
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workload periodically behind health and Prometheus endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Health.Addr = addr
			}
			return serve(cmd, cfg)
		},
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address for /health and /metrics")
	return cmd
}

// newServeMux exposes the health endpoints for pc and the default
// Prometheus registry at /metrics.
func newServeMux(pc *ProxyCache, hc HealthConfig) *http.ServeMux {
	agg := health.NewAggregator(health.AggregatorConfig{Timeout: hc.Timeout})
	agg.Register(health.NewFaultChecker("faults", pc))
	agg.Register(health.NewScopeChecker("scopes", pc, health.ScopeCheckerConfig{
		MaxScopes:    hc.MaxScopes,
		MaxHeapBytes: hc.MaxHeapBytes,
	}))
	agg.Register(health.NewCircuitChecker("circuit", pc.Guard()))

	mux := http.NewServeMux()
	health.RegisterHandlers(mux, agg)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func serve(cmd *cobra.Command, cfg Config) (err error) {
	ctx := cmd.Context()

	cfg.Observe.Metrics = observe.MetricsConfig{Enabled: true, Exporter: exporters.Prometheus}
	pc, obs, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if serr := obs.Shutdown(context.WithoutCancel(ctx)); serr != nil && err == nil {
			err = serr
		}
	}()

	ln, err := net.Listen("tcp", cfg.Health.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	srv := &http.Server{
		Handler:           newServeMux(pc, cfg.Health),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		runRounds(gctx, cmd, NewWorkload(cfg.Workload, pc), cfg)
		return nil
	})
	return g.Wait()
}

// runRounds runs the workload every Health.Interval until ctx ends. A zero
// interval runs it once. Round failures are reported and the loop carries
// on, so the health endpoints can show them.
func runRounds(ctx context.Context, cmd *cobra.Command, w *Workload, cfg Config) {
	for {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "round failed: %v\n", err)
		}
		if cfg.Workload.Reclaim {
			w.Release(ctx)
		}
		if cfg.Health.Interval == 0 {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Health.Interval):
		}
	}
}
