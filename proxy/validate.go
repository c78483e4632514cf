package proxy

import (
	"fmt"
	"reflect"
)

// validate checks caps against scope and returns their names in order.
// It stops at the first rejected element.
func (c *Cache[S, T]) validate(scope *S, label string, caps []Capability) ([]string, error) {
	if len(caps) > MaxCapabilities {
		return nil, fmt.Errorf("%w: %d capabilities exceeds the limit of %d", ErrInvalidArgument, len(caps), MaxCapabilities)
	}

	names := make([]string, len(caps))
	seen := make(map[string]struct{}, len(caps))
	for i, capability := range caps {
		if isNil(capability) {
			return nil, &CapabilityError{Index: i, Scope: label, Reason: ReasonNil}
		}
		name := capability.Name()

		resolved, ok := c.facility.Resolve(scope, name)
		if !ok || !sameCapability(resolved, capability) {
			return nil, &CapabilityError{Index: i, Name: name, Scope: label, Reason: ReasonNotVisible}
		}
		if !capability.IsContract() {
			return nil, &CapabilityError{Index: i, Name: name, Scope: label, Reason: ReasonNotContract}
		}
		if _, dup := seen[name]; dup {
			return nil, &CapabilityError{Index: i, Name: name, Scope: label, Reason: ReasonRepeated}
		}
		seen[name] = struct{}{}
		names[i] = name
	}
	return names, nil
}

// isNil also treats an interface holding a nil pointer, func, map, slice
// or chan as nil.
func isNil(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// sameCapability reports identity. A non-comparable implementation is never
// the same as anything, including itself.
func sameCapability(a, b Capability) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
