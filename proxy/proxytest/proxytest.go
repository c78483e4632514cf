// Package proxytest provides an in-memory generation facility for tests and
// benchmarks.
//
// Loaders play the part of scopes. Each loader defines named capabilities
// and delegates lookups to its parent first, so a capability is visible
// from a loader when the loader, or one of its ancestors, resolves its name
// to that exact value. Generated ProxyTypes implement their contracts in
// the order given; instances dispatch every call to their handler.
package proxytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/proxycache/proxy"
)

// Sentinel errors.
var (
	ErrNotContract    = fmt.Errorf("proxytest: capability is not a contract: %w", proxy.ErrInvalidArgument)
	ErrForeign        = fmt.Errorf("proxytest: capability was not defined by this package: %w", proxy.ErrInvalidArgument)
	ErrUnknownMethod  = errors.New("proxytest: method not declared by any contract")
	ErrNilHandler     = errors.New("proxytest: handler is nil")
	ErrNilProxyType   = errors.New("proxytest: proxy type is nil")
	ErrAlreadyDefined = errors.New("proxytest: name already defined")
)

// Contract is a named capability declaring a set of methods.
type Contract struct {
	name     string
	contract bool
	methods  []string
}

// NewContract returns a contract that generated types may implement.
func NewContract(name string, methods ...string) *Contract {
	return &Contract{name: name, contract: true, methods: methods}
}

// NewConcrete returns a capability that is not a contract.
func NewConcrete(name string) *Contract {
	return &Contract{name: name}
}

func (c *Contract) Name() string      { return c.name }
func (c *Contract) IsContract() bool  { return c.contract }
func (c *Contract) Methods() []string { return c.methods }

// Loader is a scope of capability definitions.
type Loader struct {
	name   string
	parent *Loader

	mu   sync.RWMutex
	defs map[string]*Contract
}

// NewLoader creates a loader. parent may be nil.
func NewLoader(name string, parent *Loader) *Loader {
	return &Loader{name: name, parent: parent, defs: make(map[string]*Contract)}
}

// Label identifies the loader in errors and telemetry.
func (l *Loader) Label() string { return l.name }

// Define registers c under its name in l and returns it.
func (l *Loader) Define(c *Contract) (*Contract, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.defs[c.name]; ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrAlreadyDefined, c.name, l.name)
	}
	l.defs[c.name] = c
	return c, nil
}

// MustDefine is Define that panics on error.
func (l *Loader) MustDefine(c *Contract) *Contract {
	c, err := l.Define(c)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup resolves name, asking the parent chain first.
func (l *Loader) Lookup(name string) (*Contract, bool) {
	if l.parent != nil {
		if c, ok := l.parent.Lookup(name); ok {
			return c, true
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.defs[name]
	return c, ok
}

// ProxyType is a generated artifact.
type ProxyType struct {
	name      string
	loader    *Loader
	contracts []*Contract
	methods   map[string]*Contract
}

// Name returns the generated type name, unique per Facility.
func (p *ProxyType) Name() string { return p.name }

// Loader returns the loader the type was generated in.
func (p *ProxyType) Loader() *Loader { return p.loader }

// Contracts returns the implemented contracts in declaration order.
func (p *ProxyType) Contracts() []*Contract { return p.contracts }

// Implements reports whether the type implements the named contract.
func (p *ProxyType) Implements(name string) bool {
	for _, c := range p.contracts {
		if c.name == name {
			return true
		}
	}
	return false
}

func (p *ProxyType) String() string {
	names := make([]string, len(p.contracts))
	for i, c := range p.contracts {
		names[i] = c.name
	}
	return fmt.Sprintf("%s(%s)", p.name, strings.Join(names, ", "))
}

// Proxy is an instance of a ProxyType bound to a handler.
type Proxy struct {
	typ     *ProxyType
	handler proxy.Handler
}

// Type returns the instance's generated type.
func (p *Proxy) Type() *ProxyType { return p.typ }

// Call dispatches method to the handler. The first contract declaring
// method, in declaration order, wins.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (any, error) {
	if _, ok := p.typ.methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownMethod, method, p.typ.name)
	}
	return p.handler.Invoke(ctx, method, args)
}

// Facility implements proxy.Facility for Loaders and ProxyTypes.
//
// The hooks run ahead of the real work and let tests inject failures,
// delays or panics. They must be set before first use.
type Facility struct {
	BeforeGenerate  func(ctx context.Context, scope *Loader, caps []proxy.Capability) error
	BeforeConstruct func(artifact *ProxyType) error

	seq          atomic.Uint64
	generated    atomic.Int64
	constructed  atomic.Int64
	resolveCalls atomic.Int64
}

// NewFacility creates a Facility.
func NewFacility() *Facility {
	return &Facility{}
}

// Resolve implements proxy.Facility.
func (f *Facility) Resolve(scope *Loader, name string) (proxy.Capability, bool) {
	f.resolveCalls.Add(1)
	c, ok := scope.Lookup(name)
	if !ok {
		return nil, false
	}
	return c, true
}

// Generate implements proxy.Facility. Every call produces a distinct type.
func (f *Facility) Generate(ctx context.Context, scope *Loader, caps []proxy.Capability) (*ProxyType, error) {
	f.generated.Add(1)

	if f.BeforeGenerate != nil {
		if err := f.BeforeGenerate(ctx, scope, caps); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pt := &ProxyType{
		name:      fmt.Sprintf("$Proxy%d", f.seq.Add(1)),
		loader:    scope,
		contracts: make([]*Contract, 0, len(caps)),
		methods:   make(map[string]*Contract),
	}
	for _, capability := range caps {
		c, ok := capability.(*Contract)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrForeign, capability)
		}
		if !c.contract {
			return nil, fmt.Errorf("%w: %s", ErrNotContract, c.name)
		}
		pt.contracts = append(pt.contracts, c)
		for _, m := range c.methods {
			if _, ok := pt.methods[m]; !ok {
				pt.methods[m] = c
			}
		}
	}
	return pt, nil
}

// Construct implements proxy.Facility.
func (f *Facility) Construct(artifact *ProxyType, h proxy.Handler) (any, error) {
	if f.BeforeConstruct != nil {
		if err := f.BeforeConstruct(artifact); err != nil {
			return nil, err
		}
	}
	if artifact == nil {
		return nil, ErrNilProxyType
	}
	if h == nil {
		return nil, ErrNilHandler
	}
	f.constructed.Add(1)
	return &Proxy{typ: artifact, handler: h}, nil
}

// Generations returns the number of Generate calls.
func (f *Facility) Generations() int64 { return f.generated.Load() }

// Constructions returns the number of instances built.
func (f *Facility) Constructions() int64 { return f.constructed.Load() }

// Resolutions returns the number of Resolve calls.
func (f *Facility) Resolutions() int64 { return f.resolveCalls.Load() }

// Capabilities converts contracts to a capability list.
func Capabilities(cs ...*Contract) []proxy.Capability {
	out := make([]proxy.Capability, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}

var _ proxy.Facility[Loader, ProxyType] = (*Facility)(nil)
