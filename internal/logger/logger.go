// Package logger wraps log/slog with the call-tracing helpers used by the
// repositories, services and payment adapters.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

const appName = "carbooking"

var current atomic.Pointer[slog.Logger]

// Initialize sets up the global logger on stdout with the specified level and format
func Initialize(level, format string) {
	InitializeTo(os.Stdout, level, format)
}

// InitializeTo is Initialize with an explicit destination.
func InitializeTo(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler).With("app", appName)
	current.Store(l)
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func get() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("app", appName)
	if current.CompareAndSwap(nil, l) {
		return l
	}
	return current.Load()
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }

func Info(msg string, args ...any) { get().Info(msg, args...) }

func Warn(msg string, args ...any) { get().Warn(msg, args...) }

func Error(msg string, args ...any) { get().Error(msg, args...) }

// EnterMethod logs method entry at debug level.
func EnterMethod(methodName string, args ...any) {
	get().Debug("→ Method entered", append([]any{"method", methodName, "event", "enter"}, args...)...)
}

// ExitMethod logs a successful return at debug level.
func ExitMethod(methodName string, args ...any) {
	get().Debug("← Method exited", append([]any{"method", methodName, "event", "exit"}, args...)...)
}

// ExitMethodWithError logs a failed return.
func ExitMethodWithError(methodName string, err error, args ...any) {
	get().Error("← Method exited with error", append([]any{"method", methodName, "event", "exit", "error", err}, args...)...)
}

// DatabaseCall logs a statement about to run against a table.
func DatabaseCall(operation, table string, args ...any) {
	get().Debug("→ Database call", append([]any{"operation", operation, "table", table}, args...)...)
}

// DatabaseResult logs the outcome of the preceding DatabaseCall.
func DatabaseResult(operation string, rowsAffected int64, err error, args ...any) {
	all := append([]any{"operation", operation, "rows_affected", rowsAffected}, args...)
	if err != nil {
		get().Error("← Database call failed", append(all, "error", err)...)
		return
	}
	get().Debug("← Database call succeeded", all...)
}

// ExternalServiceCall logs a request to an outside provider.
func ExternalServiceCall(service, operation string, args ...any) {
	get().Debug("→ External service call", append([]any{"service", service, "operation", operation}, args...)...)
}

// ExternalServiceResult logs the outcome of the preceding ExternalServiceCall.
func ExternalServiceResult(service, operation string, err error, args ...any) {
	all := append([]any{"service", service, "operation", operation}, args...)
	if err != nil {
		get().Error("← External service call failed", append(all, "error", err)...)
		return
	}
	get().Debug("← External service call succeeded", all...)
}

// Transition logs a committed booking state change.
func Transition(bookingID int32, action, from, to any) {
	get().Info("Booking transition", "booking_id", bookingID, "action", action, "from", from, "to", to)
}
