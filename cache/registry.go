package cache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"weak"
)

// Registry maps scopes to their KeyCache. A scope is held only through a
// weak pointer; when it is collected its entry, and with it the sub-cache,
// is dropped without any explicit cleanup call.
//
// Contract:
// - Concurrency: safe for concurrent use. The exclusive lock is taken only
// to install a new sub-cache or to drop a collected scope.
// - Ownership: the registry never keeps a scope or a cached value reachable.
// - S must not be zero-size; SubCache then fails with ErrZeroSize.
type Registry[S, V any] struct {
	mu     sync.RWMutex
	caches map[weak.Pointer[S]]*KeyCache[V]
	policy Policy
	// Distinct zero-size scopes may share an address and are never collected.
	zeroSize bool

	created   atomic.Int64
	replaced  atomic.Int64
	reclaimed atomic.Int64

	// afterLookup runs between the shared lookup and the exclusive insert.
	// Tests use it to force two first-time callers into the same window.
	afterLookup func()
}

// RegistryStats is a point-in-time view of a Registry.
type RegistryStats struct {
	// Scopes is the number of scopes currently holding a sub-cache.
	Scopes int
	// Created counts sub-caches constructed, including orphaned duplicates.
	Created int64
	// Replaced counts inserts that overwrote a racing caller's sub-cache.
	Replaced int64
	// Reclaimed counts scopes dropped after collection.
	Reclaimed int64
}

// NewRegistry creates an empty registry. Every sub-cache it creates uses
// policy.
func NewRegistry[S, V any](policy Policy) *Registry[S, V] {
	return &Registry[S, V]{
		caches:   make(map[weak.Pointer[S]]*KeyCache[V]),
		policy:   policy,
		zeroSize: zeroSized[S](),
	}
}

// SubCache returns the KeyCache for scope, creating it on first use.
//
// Creation is not deduplicated. Two first-time callers for the same scope
// can both miss under the shared lock and both build a sub-cache; the later
// insert wins and the other caller works against its orphaned copy for the
// rest of its call. Values generated into the orphan are not reachable from
// the registry afterwards.
func (r *Registry[S, V]) SubCache(scope *S) (*KeyCache[V], error) {
	if scope == nil {
		return nil, ErrNilScope
	}
	if r.zeroSize {
		return nil, ErrZeroSize
	}
	wp := weak.Make(scope)

	r.mu.RLock()
	kc, ok := r.caches[wp]
	r.mu.RUnlock()
	if ok {
		return kc, nil
	}

	if r.afterLookup != nil {
		r.afterLookup()
	}

	label := ScopeLabel(scope)
	kc = newKeyCache[V](r.policy, label)

	r.mu.Lock()
	_, replaced := r.caches[wp]
	r.caches[wp] = kc
	r.mu.Unlock()

	r.created.Add(1)
	if replaced {
		// The entry already carries a cleanup from the first insert.
		r.replaced.Add(1)
		emit(r.policy.Observer, EventData{Event: EventSubCacheReplaced, Scope: label})
		return kc, nil
	}

	runtime.AddCleanup(scope, r.reclaim, scopeRef[S]{wp: wp, label: label})
	emit(r.policy.Observer, EventData{Event: EventSubCacheCreated, Scope: label})
	return kc, nil
}

// Len returns the number of scopes currently holding a sub-cache.
func (r *Registry[S, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.caches)
}

// Stats returns a snapshot of registry counters.
func (r *Registry[S, V]) Stats() RegistryStats {
	return RegistryStats{
		Scopes:    r.Len(),
		Created:   r.created.Load(),
		Replaced:  r.replaced.Load(),
		Reclaimed: r.reclaimed.Load(),
	}
}

type scopeRef[S any] struct {
	wp    weak.Pointer[S]
	label string
}

func (r *Registry[S, V]) reclaim(ref scopeRef[S]) {
	r.mu.Lock()
	_, ok := r.caches[ref.wp]
	delete(r.caches, ref.wp)
	r.mu.Unlock()

	if ok {
		r.reclaimed.Add(1)
		emit(r.policy.Observer, EventData{Event: EventScopeReclaimed, Scope: ref.label})
	}
}
