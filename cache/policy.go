package cache

import "fmt"

// DedupMode selects how a KeyCache handles concurrent misses on one key.
type DedupMode int

const (
	// DedupNone lets concurrent misses each call the generator; the last
	// publish wins. This favours throughput over exactly-once generation.
	DedupNone DedupMode = iota
	// DedupPerKey coalesces concurrent misses on the same key so that one
	// generator call serves all of them.
	DedupPerKey
)

// String returns the string representation of the mode.
func (m DedupMode) String() string {
	switch m {
	case DedupNone:
		return "none"
	case DedupPerKey:
		return "per-key"
	default:
		return "unknown"
	}
}

// ParseDedupMode parses "none" or "per-key". The empty string is "none".
func ParseDedupMode(s string) (DedupMode, error) {
	switch s {
	case "", "none":
		return DedupNone, nil
	case "per-key":
		return DedupPerKey, nil
	default:
		return DedupNone, fmt.Errorf("cache: unknown dedup mode %q", s)
	}
}

// Policy configures caching behavior.
type Policy struct {
	// Dedup controls concurrent miss handling.
	Dedup DedupMode

	// Observer receives lifecycle events. Optional.
	Observer Observer
}

// DefaultPolicy returns the default policy: no per-key dedup, no observer.
func DefaultPolicy() Policy {
	return Policy{Dedup: DedupNone}
}

// StrictPolicy returns a policy with per-key dedup enabled.
func StrictPolicy() Policy {
	return Policy{Dedup: DedupPerKey}
}
