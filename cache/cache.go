package cache

import (
	"errors"
	"fmt"
	"reflect"
)

// Sentinel errors for cache operations.
var (
	ErrNilScope = errors.New("cache: scope is nil")
	ErrNilValue = errors.New("cache: generator returned a nil value")

	// ErrZeroSize is returned for scope or value types of size zero. Every
	// pointer to such a type may share one address, so they cannot be told
	// apart or reclaimed.
	ErrZeroSize = errors.New("cache: zero-size type cannot be held weakly")
)

// Observer receives cache lifecycle events.
//
// Contract:
// - Concurrency: On may be called from any goroutine, including the runtime
// goroutine that runs reclamation cleanups.
// - Errors: On must not panic and should return quickly.
type Observer interface {
	On(EventData)
}

// ObserverFunc adapts an ordinary function to Observer.
type ObserverFunc func(EventData)

// On calls f(data).
func (f ObserverFunc) On(data EventData) {
	f(data)
}

// Event identifies a cache lifecycle event.
type Event int

const (
	// EventHit is emitted when a lookup resolves to a live value.
	EventHit Event = iota
	// EventMiss is emitted when a lookup has to call the generator.
	EventMiss
	// EventPublished is emitted after a generated value is stored.
	EventPublished
	// EventShared is emitted when a caller received another caller's
	// in-flight result (DedupPerKey only).
	EventShared
	// EventReclaimed is emitted after a collected value's entry is removed.
	EventReclaimed
	// EventSubCacheCreated is emitted when a scope gets its first sub-cache.
	EventSubCacheCreated
	// EventSubCacheReplaced is emitted when a racing first-time caller
	// overwrote a sub-cache that another caller had just installed.
	EventSubCacheReplaced
	// EventScopeReclaimed is emitted after a collected scope's sub-cache is
	// dropped from the registry.
	EventScopeReclaimed
)

// String returns the string representation of the event.
func (e Event) String() string {
	switch e {
	case EventHit:
		return "hit"
	case EventMiss:
		return "miss"
	case EventPublished:
		return "published"
	case EventShared:
		return "shared"
	case EventReclaimed:
		return "reclaimed"
	case EventSubCacheCreated:
		return "subcache_created"
	case EventSubCacheReplaced:
		return "subcache_replaced"
	case EventScopeReclaimed:
		return "scope_reclaimed"
	default:
		return "unknown"
	}
}

// EventData carries the details of a cache event. Key is empty for
// registry-level events.
type EventData struct {
	Event Event
	Scope string
	Key   Key
}

// ScopeLabel returns a printable identity for a scope: its Label or String
// method when it has one, its address otherwise. The label is computed while
// the scope is live and never keeps it reachable.
func ScopeLabel(scope any) string {
	switch s := scope.(type) {
	case nil:
		return "<nil>"
	case interface{ Label() string }:
		return s.Label()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%p", scope)
	}
}

func emit(o Observer, data EventData) {
	if o == nil {
		return
	}
	o.On(data)
}

func zeroSized[T any]() bool {
	return reflect.TypeFor[T]().Size() == 0
}
