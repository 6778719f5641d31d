package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// DefaultHandler receives every reported error. It starts as a
	// LogHandler writing through slog.Default.
	DefaultHandler ErrorHandler = &LogHandler{}

	handlerMu sync.RWMutex
)

// SetHandler replaces the global error handler. Nil restores a fresh
// LogHandler.
func SetHandler(h ErrorHandler) {
	if h == nil {
		h = &LogHandler{}
	}
	handlerMu.Lock()
	DefaultHandler = h
	handlerMu.Unlock()
}

// dispatch runs fn against the current handler, if any.
func dispatch(fn func(ErrorHandler)) {
	handlerMu.RLock()
	h := DefaultHandler
	handlerMu.RUnlock()
	if h != nil {
		fn(h)
	}
}

func stamp(ts *time.Time) {
	if ts.IsZero() {
		*ts = time.Now()
	}
}

// Fatal reports an invariant violation and then panics with it. It never
// returns.
func Fatal(err *InvariantError) {
	stamp(&err.Timestamp)
	if err.StackTrace == "" {
		err.StackTrace = CaptureStack()
	}
	dispatch(func(h ErrorHandler) { h.HandleInvariant(err) })
	panic(err)
}

// ReportEquality sends an equality mismatch to the global handler.
func ReportEquality(err *EqualityError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandleEquality(err) })
}

// ReportPanic sends a recovered panic to the global handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandlePanic(err) })
}

// ReportBuildError sends a build failure to the global handler.
func ReportBuildError(err *BuildError) {
	if err == nil {
		return
	}
	stamp(&err.Timestamp)
	dispatch(func(h ErrorHandler) { h.HandleBuildError(err) })
}

// IsInvariant reports whether a recovered panic value is an invariant
// violation. Such values must be re-panicked, never swallowed.
func IsInvariant(recovered any) bool {
	_, ok := recovered.(*InvariantError)
	return ok
}

// Recover reports a panic in a deferred call:
//
//	defer errors.Recover("demo.step")
//
// Invariant violations keep unwinding.
func Recover(op string) {
	if r := recover(); r != nil {
		handleRecovered(op, r, nil)
	}
}

// RecoverWithCallback is Recover followed by callback(r).
func RecoverWithCallback(op string, callback func(r any)) {
	if r := recover(); r != nil {
		handleRecovered(op, r, callback)
	}
}

func handleRecovered(op string, r any, callback func(any)) {
	if IsInvariant(r) {
		panic(r)
	}
	ReportPanic(&PanicError{
		Op:         op,
		Value:      r,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	})
	if callback != nil {
		callback(r)
	}
}

// CaptureStack formats up to 32 frames of the caller's stack, starting at
// the function that called CaptureStack's caller.
func CaptureStack() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			return sb.String()
		}
	}
}
