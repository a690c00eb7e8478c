package logger

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Log is the global slog logger instance.
var Log *slog.Logger

// Init initializes the global logger. In development mode output is
// human-readable text; otherwise JSON for log collectors.
func Init(service string, isDevelopment bool) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	var handler slog.Handler
	if isDevelopment {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	Log = slog.New(handler).With("service", service)
}

// WithContext returns the logger enriched with trace context if a recording
// span is present on ctx.
func WithContext(ctx context.Context) *slog.Logger {
	if Log == nil {
		return slog.Default()
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return Log
	}

	spanCtx := span.SpanContext()
	return Log.With(
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

// InfoCtx logs an info message with trace context.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).InfoContext(ctx, msg, args...)
}

// WarnCtx logs a warning message with trace context.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WarnContext(ctx, msg, args...)
}

// ErrorCtx logs an error message with trace context.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	if Log != nil {
		Log.Info(msg, args...)
	}
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	if Log != nil {
		Log.Warn(msg, args...)
	}
}

// Error logs an error message.
func Error(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	if Log != nil {
		Log.Debug(msg, args...)
	}
}

// Fatal logs an error message and exits.
func Fatal(msg string, args ...any) {
	if Log != nil {
		Log.Error(msg, args...)
	}
	os.Exit(1)
}
