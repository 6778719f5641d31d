// Package errors provides structured error handling for the retain tree core.
//
// Errors fall into two groups. Invariant violations ([InvariantError]) mean
// the type-erasure wiring or the borrow discipline was broken; they are
// reported to the handler and then raised with panic. Everything else
// ([EqualityError], [BuildError], [PanicError]) is reported and the tree
// carries on.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// Sentinel causes wrapped by [InvariantError].
var (
	// ErrStateType is the cause when a node's state is accessed as the wrong type.
	ErrStateType = stderrors.New("state type mismatch")
	// ErrBorrowConflict is the cause when shared and exclusive access overlap.
	ErrBorrowConflict = stderrors.New("conflicting state borrow")
	// ErrStaleNode is the cause when a node ID no longer refers to a live node.
	ErrStaleNode = stderrors.New("stale node reference")
	// ErrReleasedGuard is the cause when a released guard is used.
	ErrReleasedGuard = stderrors.New("use of released guard")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindStateType indicates a checked downcast of node state failed.
	KindStateType
	// KindBorrow indicates conflicting shared/exclusive state access.
	KindBorrow
	// KindStaleNode indicates a node ID outlived its node.
	KindStaleNode
	// KindReleased indicates a guard was used after Release.
	KindReleased
)

func (k ErrorKind) String() string {
	switch k {
	case KindStateType:
		return "state-type"
	case KindBorrow:
		return "borrow"
	case KindStaleNode:
		return "stale-node"
	case KindReleased:
		return "released"
	default:
		return "unknown"
	}
}

// InvariantError is an unrecoverable violation of the tree's access rules.
// It is always delivered by panic after being reported.
type InvariantError struct {
	// Op is the operation that failed (e.g., "core.BuildContext.StateMut").
	Op string
	// Kind categorizes the violation.
	Kind ErrorKind
	// Err is the sentinel cause.
	Err error
	// Tree identifies the tree the node belongs to.
	Tree string
	// Node identifies the node being accessed.
	Node string
	// Detail carries kind-specific context such as expected and actual types.
	Detail string
	// StackTrace contains the call stack at the time of the violation.
	StackTrace string
	// Timestamp is when the violation occurred.
	Timestamp time.Time
}

func (e *InvariantError) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	if e.Node != "" {
		msg += " node=" + e.Node
	}
	msg += fmt.Sprintf(": %v", e.Err)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// EqualityError records a structural comparison between configurations of
// different concrete types. It is reported, never raised; the comparison
// resolves to "not equal".
type EqualityError struct {
	// Left is the type name of the receiving configuration.
	Left string
	// Right is the type name of the configuration it was compared against.
	Right string
	// Timestamp is when the comparison happened.
	Timestamp time.Time
}

func (e *EqualityError) Error() string {
	return fmt.Sprintf("cannot compare widgets of different types %s and %s; this is a bug", e.Left, e.Right)
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "core.Tree.FlushBuild").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// BuildError represents a failure inside a widget's build or lifecycle hook.
type BuildError struct {
	// Widget is the type name of the widget that failed.
	Widget string
	// Node identifies the node being built.
	Node string
	// Phase is the hook that failed: "build", "mount" or "unmount".
	Phase string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the panic value when it is an error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	phase := e.Phase
	if phase == "" {
		phase = "build"
	}
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.%s(): %v", e.Widget, phase, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error in %s.%s(): %v", e.Widget, phase, e.Err)
	}
	return fmt.Sprintf("unknown error in %s.%s()", e.Widget, phase)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the tree core.
type ErrorHandler interface {
	// HandleInvariant is called just before an invariant violation panics.
	HandleInvariant(err *InvariantError)
	// HandleEquality is called when configurations of different types are compared.
	HandleEquality(err *EqualityError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBuildError is called when a widget build or hook fails.
	HandleBuildError(err *BuildError)
}
