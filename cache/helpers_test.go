package cache

import (
	"runtime"
	"sync"
	"testing"
	"time"
)

// artifact carries a pointer field so it is never placed in a tiny
// allocation block, where cleanups are not guaranteed to run.
type artifact struct {
	name string
	seq  int
}

type scope struct {
	name string
}

func (s *scope) Label() string { return s.name }

// recorder is an Observer that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []EventData
}

func (r *recorder) On(data EventData) {
	r.mu.Lock()
	r.events = append(r.events, data)
	r.mu.Unlock()
}

func (r *recorder) count(e Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.events {
		if d.Event == e {
			n++
		}
	}
	return n
}

// eventually runs the collector until cond holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
}
