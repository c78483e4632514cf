package proxy_test

import (
	"context"
	"testing"

	"github.com/jonwraymond/proxycache/proxy/proxytest"
)

//go:noinline
func generateAndDrop(t *testing.T, fx *fixture) string {
	t.Helper()
	inst, err := fx.cache.Instantiate(context.Background(), fx.loader, caps(fx.a, fx.b), echoHandler())
	if err != nil {
		t.Fatalf("Instantiate() error = %v", err)
	}
	return inst.(*proxytest.Proxy).Type().Name()
}

// TestReclaim_ArtifactRegenerates verifies that once an artifact and its
// instances are unreachable, a later request regenerates without failing.
func TestReclaim_ArtifactRegenerates(t *testing.T) {
	fx := newFixture(t)

	firstName := generateAndDrop(t, fx)
	eventually(t, func() bool { return fx.cache.Stats().ArtifactsReclaimed >= 1 })

	artifact, err := fx.cache.GetOrCreate(context.Background(), fx.loader, caps(fx.a, fx.b))
	if err != nil {
		t.Fatalf("GetOrCreate after reclaim: %v", err)
	}
	if artifact.Name() == firstName {
		t.Error("reclaimed artifact returned again")
	}
	if fx.facility.Generations() != 2 {
		t.Errorf("Generations() = %d, want 2", fx.facility.Generations())
	}
}

//go:noinline
func useThrowawayScope(t *testing.T, fx *fixture) {
	t.Helper()
	l := proxytest.NewLoader("throwaway", nil)
	a := l.MustDefine(proxytest.NewContract("A", "Foo"))
	if _, err := fx.cache.GetOrCreate(context.Background(), l, caps(a)); err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
}

// TestReclaim_ScopeDropped verifies a collected scope leaves the registry
// while other scopes keep their entries.
func TestReclaim_ScopeDropped(t *testing.T) {
	fx := newFixture(t)

	kept, err := fx.cache.GetOrCreate(context.Background(), fx.loader, caps(fx.a))
	if err != nil {
		t.Fatal(err)
	}
	useThrowawayScope(t, fx)
	if fx.cache.Stats().Scopes != 2 {
		t.Fatalf("Scopes = %d, want 2", fx.cache.Stats().Scopes)
	}

	eventually(t, func() bool { return fx.cache.Stats().ScopesReclaimed >= 1 })

	if got := fx.cache.Stats().Scopes; got != 1 {
		t.Errorf("Scopes after reclaim = %d, want 1", got)
	}
	again, err := fx.cache.GetOrCreate(context.Background(), fx.loader, caps(fx.a))
	if err != nil {
		t.Fatal(err)
	}
	if again != kept {
		t.Error("surviving scope lost its entry")
	}
}
