// Package proxy memoizes generated proxy artifacts per scope and
// capability set.
//
// A Cache sits in front of an external generation Facility. Callers ask for
// the artifact implementing an ordered list of capabilities within a scope;
// the first call generates it, later calls with the same scope and the same
// names in the same order receive the identical artifact for as long as it
// is reachable elsewhere. Neither scopes nor artifacts are kept alive by the
// cache: once collected, their entries disappear on their own.
//
// Arguments are validated before any generation: the scope must be non-nil,
// every capability must be non-nil, resolvable from the scope, a contract,
// and appear at most once. Failures from the facility propagate unchanged
// and are never cached; faults the caller could not have caused, such as a
// panic inside the facility or a nil artifact, surface as ErrGenerationFault.
//
// # Usage
//
//	c, err := proxy.New[Loader, ProxyType](facility,
//	    proxy.WithPolicy(cache.DefaultPolicy()),
//	)
//	if err != nil {
//	    return err
//	}
//	inst, err := c.Instantiate(ctx, loader, []proxy.Capability{reader, closer}, handler)
package proxy
