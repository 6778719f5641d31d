package errors

import (
	"log/slog"
)

// LogHandler is an ErrorHandler that writes structured records to a slog.Logger.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
}

func (h *LogHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleInvariant logs an InvariantError at error level.
func (h *LogHandler) HandleInvariant(err *InvariantError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "kind", err.Kind.String(), "err", err.Err}
	if err.Tree != "" {
		attrs = append(attrs, "tree", err.Tree)
	}
	if err.Node != "" {
		attrs = append(attrs, "node", err.Node)
	}
	if err.Detail != "" {
		attrs = append(attrs, "detail", err.Detail)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	h.logger().Error("retain invariant violation", attrs...)
}

// HandleEquality logs an EqualityError at error level.
func (h *LogHandler) HandleEquality(err *EqualityError) {
	if err == nil {
		return
	}
	h.logger().Error("retain structural equality mismatch", "left", err.Left, "right", err.Right)
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{"value", err.Value}
	if err.Op != "" {
		attrs = append(attrs, "op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	h.logger().Error("retain panic", attrs...)
}

// HandleBuildError logs a BuildError.
func (h *LogHandler) HandleBuildError(err *BuildError) {
	if err == nil {
		return
	}
	attrs := []any{"widget", err.Widget, "phase", err.Phase, "err", err.Error()}
	if err.Node != "" {
		attrs = append(attrs, "node", err.Node)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	h.logger().Error("retain build error", attrs...)
}
