package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonwraymond/proxycache/observe"
	"github.com/jonwraymond/proxycache/proxy"
	"github.com/jonwraymond/proxycache/proxy/proxytest"
	"github.com/jonwraymond/proxycache/resilience"
)

type runFlags struct {
	dedup      string
	scopes     int
	contracts  int
	listLen    int
	workers    int
	iterations int
	reclaim    bool
}

func (c *CLI) newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic concurrent workload and print cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return runWorkload(cmd, cfg)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *runFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.dedup, "dedup", "", "Concurrent miss handling: none or per-key")
	flags.IntVar(&f.scopes, "scopes", 0, "Number of scopes")
	flags.IntVar(&f.contracts, "contracts", 0, "Contracts defined per scope")
	flags.IntVar(&f.listLen, "list-len", 0, "Capabilities per request")
	flags.IntVar(&f.workers, "workers", 0, "Concurrent callers")
	flags.IntVar(&f.iterations, "iterations", 0, "Instances built per caller")
	flags.BoolVar(&f.reclaim, "reclaim", false, "Drop all scopes after each round and wait for collection")
}

// loadConfig reads the config file and applies the flags the user set.
func (c *CLI) loadConfig(cmd *cobra.Command, f runFlags) (Config, error) {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("dedup") {
		cfg.Dedup = f.dedup
	}
	if flags.Changed("scopes") {
		cfg.Workload.Scopes = f.scopes
	}
	if flags.Changed("contracts") {
		cfg.Workload.Contracts = f.contracts
	}
	if flags.Changed("list-len") {
		cfg.Workload.ListLen = f.listLen
	}
	if flags.Changed("workers") {
		cfg.Workload.Workers = f.workers
	}
	if flags.Changed("iterations") {
		cfg.Workload.Iterations = f.iterations
	}
	if flags.Changed("reclaim") {
		cfg.Workload.Reclaim = f.reclaim
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// newCache builds the observer, guard and cache cfg describes. The caller
// shuts the observer down.
func newCache(ctx context.Context, cfg Config) (*ProxyCache, observe.Observer, error) {
	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, nil, err
	}

	guard, err := resilience.NewGuardFromConfig(cfg.Guard)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, nil, err
	}

	pc, err := proxy.New[proxytest.Loader, proxytest.ProxyType](proxytest.NewFacility(),
		proxy.WithPolicy(cfg.Policy()),
		proxy.WithGuard(guard),
		proxy.WithObservability(obs),
	)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, nil, err
	}
	return pc, obs, nil
}

func runWorkload(cmd *cobra.Command, cfg Config) (err error) {
	ctx := cmd.Context()

	pc, obs, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if serr := obs.Shutdown(context.WithoutCancel(ctx)); serr != nil && err == nil {
			err = serr
		}
	}()

	w := NewWorkload(cfg.Workload, pc)
	start := time.Now()
	if err := w.Run(ctx); err != nil {
		return err
	}
	if cfg.Workload.Reclaim && !w.Release(ctx) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: some scopes were still live after collection")
	}

	return writeStats(cmd.OutOrStdout(), pc.Stats(), time.Since(start))
}
