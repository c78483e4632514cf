package cache

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"
)

// KeyCache maps keys to generated values within one scope. Values are held
// through weak pointers: an entry never keeps its value reachable, and once
// the value is collected the entry is dropped and the next lookup is a miss.
//
// Contract:
// - Concurrency: safe for concurrent use; lookups and inserts take no
// registry lock.
// - Errors: generator errors propagate unchanged and are never stored.
// - V must not be zero-size; GetOrInsert then fails with ErrZeroSize.
type KeyCache[V any] struct {
	// Key -> weak.Pointer[V]
	entries  sync.Map
	group    singleflight.Group
	dedup    DedupMode
	observer Observer
	scope    string
	zeroSize bool
}

// NewKeyCache creates an empty KeyCache that is not attached to any scope.
func NewKeyCache[V any](policy Policy) *KeyCache[V] {
	return newKeyCache[V](policy, "")
}

func newKeyCache[V any](policy Policy, scope string) *KeyCache[V] {
	return &KeyCache[V]{
		dedup:    policy.Dedup,
		observer: policy.Observer,
		scope:    scope,
		zeroSize: zeroSized[V](),
	}
}

// Lookup returns the live value for key without generating.
func (c *KeyCache[V]) Lookup(key Key) (*V, bool) {
	if entry, ok := c.entries.Load(key); ok {
		if v := entry.(weak.Pointer[V]).Value(); v != nil {
			return v, true
		}
	}
	return nil, false
}

// GetOrInsert returns the live value for key, or calls gen, stores its result
// and returns it.
//
// Under DedupNone two callers that miss on the same key at the same time
// both call gen; whichever publishes last owns the entry and the other's
// value is only returned to its own caller.
func (c *KeyCache[V]) GetOrInsert(key Key, gen func() (*V, error)) (*V, error) {
	if c.zeroSize {
		return nil, ErrZeroSize
	}
	if v, ok := c.Lookup(key); ok {
		c.emit(EventHit, key)
		return v, nil
	}
	c.emit(EventMiss, key)

	if c.dedup == DedupPerKey {
		return c.insertOnce(key, gen)
	}
	return c.insert(key, gen)
}

// Len returns the number of entries whose value is still live.
func (c *KeyCache[V]) Len() int {
	n := 0
	c.entries.Range(func(_, entry any) bool {
		if entry.(weak.Pointer[V]).Value() != nil {
			n++
		}
		return true
	})
	return n
}

func (c *KeyCache[V]) insert(key Key, gen func() (*V, error)) (*V, error) {
	v, err := gen()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNilValue
	}

	wp := weak.Make(v)
	runtime.AddCleanup(v, c.reclaim, entryRef[V]{key: key, wp: wp})
	c.entries.Store(key, wp)
	c.emit(EventPublished, key)
	return v, nil
}

func (c *KeyCache[V]) insertOnce(key Key, gen func() (*V, error)) (*V, error) {
	out, err, shared := c.group.Do(string(key), func() (any, error) {
		// Another flight may have published while this one was queued.
		if v, ok := c.Lookup(key); ok {
			return v, nil
		}
		v, err := c.insert(key, gen)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.emit(EventShared, key)
	}
	return out.(*V), nil
}

type entryRef[V any] struct {
	key Key
	wp  weak.Pointer[V]
}

// reclaim runs after a published value was collected. The entry is only
// removed if it still refers to that value.
func (c *KeyCache[V]) reclaim(ref entryRef[V]) {
	if c.entries.CompareAndDelete(ref.key, ref.wp) {
		c.emit(EventReclaimed, ref.key)
	}
}

func (c *KeyCache[V]) emit(event Event, key Key) {
	emit(c.observer, EventData{Event: event, Scope: c.scope, Key: key})
}
