package proxy_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/jonwraymond/proxycache/proxy"
	"github.com/jonwraymond/proxycache/proxy/proxytest"
)

type fixture struct {
	facility *proxytest.Facility
	loader   *proxytest.Loader
	cache    *proxy.Cache[proxytest.Loader, proxytest.ProxyType]
	a, b, c  *proxytest.Contract
}

func newFixture(t *testing.T, opts ...proxy.Option) *fixture {
	t.Helper()

	f := proxytest.NewFacility()
	c, err := proxy.New[proxytest.Loader, proxytest.ProxyType](f, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l := proxytest.NewLoader("app", nil)
	return &fixture{
		facility: f,
		loader:   l,
		cache:    c,
		a:        l.MustDefine(proxytest.NewContract("A", "Foo")),
		b:        l.MustDefine(proxytest.NewContract("B", "Bar")),
		c:        l.MustDefine(proxytest.NewContract("C", "Baz")),
	}
}

func caps(cs ...*proxytest.Contract) []proxy.Capability {
	return proxytest.Capabilities(cs...)
}

func echoHandler() proxy.Handler {
	return proxy.HandlerFunc(func(_ context.Context, method string, _ []any) (any, error) {
		return method, nil
	})
}

// eventually runs collections until cond holds.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met after repeated collections")
		}
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
}
