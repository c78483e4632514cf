package commands

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/proxycache/proxy"
	"github.com/jonwraymond/proxycache/proxy/proxytest"
)

// ProxyCache is the cache type proxybench drives.
type ProxyCache = proxy.Cache[proxytest.Loader, proxytest.ProxyType]

// Workload drives concurrent Instantiate calls through a cache.
//
// Every scope defines its own contracts, so artifacts never cross scopes.
// A worker cycles through scopes and through the rotations of the contract
// list, which gives each scope Contracts distinct keys.
type Workload struct {
	cfg   WorkloadConfig
	cache *ProxyCache

	loaders []*proxytest.Loader
	lists   [][][]proxy.Capability
}

// NewWorkload creates a workload over c.
func NewWorkload(cfg WorkloadConfig, c *ProxyCache) *Workload {
	return &Workload{cfg: cfg, cache: c}
}

var echo = proxy.HandlerFunc(func(_ context.Context, method string, _ []any) (any, error) {
	return method, nil
})

func (w *Workload) populate() {
	w.loaders = make([]*proxytest.Loader, w.cfg.Scopes)
	w.lists = make([][][]proxy.Capability, w.cfg.Scopes)

	for s := range w.cfg.Scopes {
		loader := proxytest.NewLoader(fmt.Sprintf("scope-%d", s), nil)
		contracts := make([]*proxytest.Contract, w.cfg.Contracts)
		for i := range contracts {
			contracts[i] = loader.MustDefine(proxytest.NewContract(fmt.Sprintf("C%d", i), fmt.Sprintf("m%d", i)))
		}

		lists := make([][]proxy.Capability, len(contracts))
		for off := range contracts {
			list := make([]proxy.Capability, w.cfg.ListLen)
			for j := range list {
				list[j] = contracts[(off+j)%len(contracts)]
			}
			lists[off] = list
		}

		w.loaders[s] = loader
		w.lists[s] = lists
	}
}

// Run performs one round: Workers callers each build Iterations instances
// and call the first method of every instance. Scopes are created on first
// use and after Release.
func (w *Workload) Run(ctx context.Context) error {
	if w.loaders == nil {
		w.populate()
	}
	loaders, lists := w.loaders, w.lists

	g, ctx := errgroup.WithContext(ctx)
	for id := range w.cfg.Workers {
		g.Go(func() error {
			for i := range w.cfg.Iterations {
				if err := ctx.Err(); err != nil {
					return err
				}

				s := (id + i) % len(loaders)
				list := lists[s][i%len(lists[s])]
				inst, err := w.cache.Instantiate(ctx, loaders[s], list, echo)
				if err != nil {
					return fmt.Errorf("worker %d: %w", id, err)
				}
				if len(list) == 0 {
					continue
				}

				p, ok := inst.(*proxytest.Proxy)
				if !ok {
					return fmt.Errorf("worker %d: unexpected instance %T", id, inst)
				}
				method := list[0].(*proxytest.Contract).Methods()[0]
				if _, err := p.Call(ctx, method); err != nil {
					return fmt.Errorf("worker %d: %w", id, err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// Release drops every scope and collects until the cache reports none
// live, ctx ends, or a bounded number of attempts pass. It reports whether
// all scopes were reclaimed.
func (w *Workload) Release(ctx context.Context) bool {
	w.loaders, w.lists = nil, nil

	for range 50 {
		runtime.GC()
		if w.cache.Stats().Scopes == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
	return false
}

func writeStats(out io.Writer, st proxy.Stats, elapsed time.Duration) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := []struct {
		name  string
		value any
	}{
		{"elapsed", elapsed.Round(time.Millisecond)},
		{"scopes", st.Scopes},
		{"subcaches_created", st.SubCachesCreated},
		{"subcaches_replaced", st.SubCachesReplaced},
		{"lookups", st.Lookups},
		{"hits", st.Hits},
		{"misses", st.Misses},
		{"generations", st.Generations},
		{"generation_errors", st.GenerationErrors},
		{"faults", st.Faults},
		{"artifacts_reclaimed", st.ArtifactsReclaimed},
		{"scopes_reclaimed", st.ScopesReclaimed},
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%v\n", r.name, r.value); err != nil {
			return err
		}
	}
	return tw.Flush()
}
