package proxy

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrInvalidArgument indicates a capability list the cache refuses.
	ErrInvalidArgument = errors.New("proxy: invalid argument")

	// ErrNullArgument indicates a required argument was nil.
	ErrNullArgument = errors.New("proxy: null argument")

	// ErrGenerationFault indicates the facility failed in a way the caller
	// did not cause. It should not happen in correct operation.
	ErrGenerationFault = errors.New("proxy: generation fault")
)

// Reason says why a capability was rejected.
type Reason int

const (
	// ReasonNil is a nil capability.
	ReasonNil Reason = iota
	// ReasonNotVisible is a capability the scope does not resolve to the
	// same value.
	ReasonNotVisible
	// ReasonNotContract is a capability that cannot be implemented.
	ReasonNotContract
	// ReasonRepeated is a capability whose name already appeared earlier in
	// the list.
	ReasonRepeated
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNil:
		return "capability is nil"
	case ReasonNotVisible:
		return "not visible from scope"
	case ReasonNotContract:
		return "not a contract"
	case ReasonRepeated:
		return "repeated capability"
	default:
		return "unknown reason"
	}
}

// CapabilityError reports the first rejected element of a capability list.
//
// A nil element matches both ErrNullArgument and ErrInvalidArgument; every
// other reason matches ErrInvalidArgument only.
type CapabilityError struct {
	Index  int
	Name   string // empty for a nil element
	Scope  string
	Reason Reason
}

func (e *CapabilityError) Error() string {
	if e.Reason == ReasonNil {
		return fmt.Sprintf("proxy: capability %d in scope %s: %s", e.Index, e.Scope, e.Reason)
	}
	return fmt.Sprintf("proxy: capability %d (%s) in scope %s: %s", e.Index, e.Name, e.Scope, e.Reason)
}

func (e *CapabilityError) Unwrap() []error {
	if e.Reason == ReasonNil {
		return []error{ErrNullArgument, ErrInvalidArgument}
	}
	return []error{ErrInvalidArgument}
}

// FaultError wraps the cause of a generation fault.
type FaultError struct {
	Op    string // "generate" or "construct"
	Scope string
	Cause error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("proxy: generation fault during %s in scope %s: %v", e.Op, e.Scope, e.Cause)
}

func (e *FaultError) Unwrap() []error {
	return []error{ErrGenerationFault, e.Cause}
}

// PanicError carries a value recovered from a panicking facility call.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

var (
	errNilArtifact = errors.New("facility returned a nil artifact")
	errNilInstance = errors.New("facility returned a nil instance")
)
