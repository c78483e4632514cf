package proxy

import "context"

// MaxCapabilities is the largest capability list a single artifact may
// implement.
const MaxCapabilities = 65535

// Capability describes one contract an artifact can implement.
//
// Implementations must be comparable; two capabilities are the same when
// they compare equal with ==. Pointer types satisfy this.
type Capability interface {
	// Name is the capability's identity within its scope.
	Name() string
	// IsContract reports whether the capability may be implemented by a
	// generated artifact.
	IsContract() bool
}

// Handler receives every call made on a constructed instance.
type Handler interface {
	Invoke(ctx context.Context, method string, args []any) (any, error)
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, method string, args []any) (any, error)

// Invoke calls f(ctx, method, args).
func (f HandlerFunc) Invoke(ctx context.Context, method string, args []any) (any, error) {
	return f(ctx, method, args)
}

// Facility generates artifacts and constructs instances of them.
//
// Contract:
//   - Concurrency: all methods may be called concurrently, including
//     concurrent Generate calls for the same scope and capabilities.
//   - Context: Generate should honour cancellation and return an error when
//     ctx ends.
//   - Errors: Generate errors reach the caller unchanged. A Generate error
//     wrapping ErrInvalidArgument marks a request the facility rejected;
//     it does not count against a circuit breaker, while every other error
//     does. A nil artifact with a nil error, or a panic, is a generation
//     fault. Any Construct failure is a generation fault.
type Facility[S, T any] interface {
	// Resolve returns the capability visible from scope under name.
	Resolve(scope *S, name string) (Capability, bool)

	// Generate produces a new artifact implementing caps, in order.
	Generate(ctx context.Context, scope *S, caps []Capability) (*T, error)

	// Construct builds one instance of artifact bound to h.
	Construct(artifact *T, h Handler) (any, error)
}
