package proxy

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/jonwraymond/proxycache/cache"
	"github.com/jonwraymond/proxycache/observe"
	"github.com/jonwraymond/proxycache/resilience"
)

// Cache memoizes the artifacts a Facility generates, per scope and ordered
// capability list.
//
// Contract:
//   - Concurrency: safe for concurrent use. Two callers missing on the same
//     key at once may both generate unless the policy deduplicates; both
//     receive a valid artifact and the later publish is retained.
//   - Ownership: scopes and artifacts are referenced weakly.
//   - Errors: validation errors match ErrInvalidArgument or ErrNullArgument.
//     Facility errors are returned unchanged and never cached. Faults match
//     ErrGenerationFault. Nothing is logged on error paths.
type Cache[S, T any] struct {
	facility Facility[S, T]
	registry *cache.Registry[S, T]
	guard    *resilience.Guard
	mw       *observe.Middleware
	metrics  observe.Metrics
	logger   observe.Logger
	next     []cache.Observer

	lookups          atomic.Int64
	hits             atomic.Int64
	misses           atomic.Int64
	generations      atomic.Int64
	generationErrors atomic.Int64
	faults           atomic.Int64
	artifactsFreed   atomic.Int64
	scopesFreed      atomic.Int64
}

// Stats is a point-in-time view of a Cache.
type Stats struct {
	Scopes             int   // scopes currently holding a sub-cache
	SubCachesCreated   int64 // includes duplicates from first-use races
	SubCachesReplaced  int64
	Lookups            int64
	Hits               int64
	Misses             int64
	Generations        int64 // facility Generate calls
	GenerationErrors   int64 // failed generations, faults included
	Faults             int64 // ErrGenerationFault from generate or construct
	ArtifactsReclaimed int64
	ScopesReclaimed    int64
}

// New creates a Cache in front of facility. S and T must not be zero-size
// types: scopes and artifacts are told apart by address.
func New[S, T any](facility Facility[S, T], opts ...Option) (*Cache[S, T], error) {
	if facility == nil {
		return nil, fmt.Errorf("%w: facility", ErrNullArgument)
	}
	if reflect.TypeFor[S]().Size() == 0 || reflect.TypeFor[T]().Size() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, cache.ErrZeroSize)
	}

	o := options{policy: cache.DefaultPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	mw := o.middleware
	if mw == nil && o.obs != nil {
		var err error
		if mw, err = observe.MiddlewareFromObserver(o.obs); err != nil {
			return nil, fmt.Errorf("proxy: observability: %w", err)
		}
	}
	if mw == nil {
		mw = observe.NewMiddleware(nil, nil, o.logger)
	}
	logger := o.logger
	if logger == nil {
		logger = mw.Logger()
	}
	guard := o.guard
	if guard == nil {
		guard = resilience.NewGuard()
	}

	c := &Cache[S, T]{
		facility: facility,
		guard:    guard,
		mw:       mw,
		metrics:  mw.Metrics(),
		logger:   logger,
	}
	if o.policy.Observer != nil {
		c.next = append(c.next, o.policy.Observer)
	}
	if o.observer != nil {
		c.next = append(c.next, o.observer)
	}

	policy := o.policy
	policy.Observer = c
	c.registry = cache.NewRegistry[S, T](policy)
	return c, nil
}

// GetOrCreate returns the artifact implementing caps, in order, within
// scope. The same scope and names in the same order yield the identical
// artifact for as long as it stays reachable; a different order is a
// different artifact.
func (c *Cache[S, T]) GetOrCreate(ctx context.Context, scope *S, caps []Capability) (*T, error) {
	if scope == nil {
		return nil, fmt.Errorf("%w: scope", ErrNullArgument)
	}
	label := cache.ScopeLabel(scope)

	names, err := c.validate(scope, label, caps)
	if err != nil {
		return nil, err
	}
	key := cache.DeriveKey(names)

	kc, err := c.registry.SubCache(scope)
	if err != nil {
		return nil, err
	}

	caps = slices.Clone(caps)
	return kc.GetOrInsert(key, func() (*T, error) {
		return c.generate(ctx, scope, caps, observe.Meta{
			Scope:        label,
			Capabilities: names,
			KeyHash:      key.Fingerprint(),
		})
	})
}

// Instantiate returns a new instance of the artifact for caps, bound to h.
// A nil h, including a typed nil such as a nil HandlerFunc, is rejected
// before the facility is consulted. Any construction
// failure is a generation fault.
func (c *Cache[S, T]) Instantiate(ctx context.Context, scope *S, caps []Capability, h Handler) (any, error) {
	if isNil(h) {
		return nil, fmt.Errorf("%w: handler", ErrNullArgument)
	}

	artifact, err := c.GetOrCreate(ctx, scope, caps)
	if err != nil {
		return nil, err
	}

	inst, err := c.construct(artifact, h)
	if err != nil {
		c.faults.Add(1)
		return nil, &FaultError{Op: "construct", Scope: cache.ScopeLabel(scope), Cause: err}
	}
	return inst, nil
}

// Stats returns a snapshot of cache counters.
func (c *Cache[S, T]) Stats() Stats {
	rs := c.registry.Stats()
	return Stats{
		Scopes:             rs.Scopes,
		SubCachesCreated:   rs.Created,
		SubCachesReplaced:  rs.Replaced,
		Lookups:            c.lookups.Load(),
		Hits:               c.hits.Load(),
		Misses:             c.misses.Load(),
		Generations:        c.generations.Load(),
		GenerationErrors:   c.generationErrors.Load(),
		Faults:             c.faults.Load(),
		ArtifactsReclaimed: c.artifactsFreed.Load(),
		ScopesReclaimed:    c.scopesFreed.Load(),
	}
}

// Guard returns the guard generations run through.
func (c *Cache[S, T]) Guard() *resilience.Guard { return c.guard }

func (c *Cache[S, T]) generate(ctx context.Context, scope *S, caps []Capability, meta observe.Meta) (*T, error) {
	c.generations.Add(1)

	out, err := c.mw.Wrap(func(ctx context.Context, meta observe.Meta) (any, error) {
		var (
			artifact *T
			rejected error
		)
		err := c.guard.Execute(ctx, func(ctx context.Context) error {
			var err error
			artifact, err = c.callGenerate(ctx, scope, caps, meta.Scope)
			if callerCaused(err) {
				rejected = err
				return nil
			}
			return err
		})
		if err == nil && rejected != nil {
			err = rejected
		}
		return artifact, err
	})(ctx, meta)
	if err != nil {
		c.generationErrors.Add(1)
		if errors.Is(err, ErrGenerationFault) {
			c.faults.Add(1)
		}
		return nil, err
	}
	return out.(*T), nil
}

// callerCaused reports whether a facility error is the caller's doing: the
// facility rejected the request as an invalid argument, or the caller
// cancelled. Such errors reach the caller unchanged but do not count
// against the guard's circuit.
func callerCaused(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, context.Canceled)
}

func (c *Cache[S, T]) callGenerate(ctx context.Context, scope *S, caps []Capability, label string) (artifact *T, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = nil
			err = &FaultError{Op: "generate", Scope: label, Cause: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	artifact, err = c.facility.Generate(ctx, scope, caps)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, &FaultError{Op: "generate", Scope: label, Cause: errNilArtifact}
	}
	return artifact, nil
}

func (c *Cache[S, T]) construct(artifact *T, h Handler) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	inst, err = c.facility.Construct(artifact, h)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, errNilInstance
	}
	return inst, nil
}

// On accounts for cache events and forwards them. It implements
// cache.Observer.
func (c *Cache[S, T]) On(data cache.EventData) {
	ctx := context.Background()

	switch data.Event {
	case cache.EventHit:
		c.lookups.Add(1)
		c.hits.Add(1)
		c.metrics.RecordLookup(ctx, true)
	case cache.EventMiss:
		c.lookups.Add(1)
		c.misses.Add(1)
		c.metrics.RecordLookup(ctx, false)
	case cache.EventReclaimed:
		c.artifactsFreed.Add(1)
		c.metrics.RecordReclaim(ctx, observe.ReclaimArtifact)
		c.logger.Debug(ctx, "artifact reclaimed",
			observe.Field{Key: observe.AttrScope, Value: data.Scope},
			observe.Field{Key: observe.AttrKeyHash, Value: strconv.FormatUint(data.Key.Fingerprint(), 16)},
		)
	case cache.EventSubCacheCreated:
		c.logger.Debug(ctx, "sub-cache created", observe.Field{Key: observe.AttrScope, Value: data.Scope})
	case cache.EventSubCacheReplaced:
		c.logger.Debug(ctx, "sub-cache replaced", observe.Field{Key: observe.AttrScope, Value: data.Scope})
	case cache.EventScopeReclaimed:
		c.scopesFreed.Add(1)
		c.metrics.RecordReclaim(ctx, observe.ReclaimScope)
		c.logger.Debug(ctx, "scope reclaimed", observe.Field{Key: observe.AttrScope, Value: data.Scope})
	}

	for _, o := range c.next {
		o.On(data)
	}
}

var _ cache.Observer = (*Cache[struct{}, struct{}])(nil)
