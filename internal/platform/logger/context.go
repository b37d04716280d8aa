package logger

import (
	"context"
	"log/slog"
)

// contextKey is an unexported type used as the key for storing the logger in
// a context. Using a private struct type prevents collisions with keys from
// other packages.
type contextKey struct{}

// WithContext returns a new context with the provided logger attached.
// Handlers and middleware use this to carry a request-scoped logger, typically
// one enriched with a trace ID, through the call chain.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext retrieves the logger stored in the context.
// If no logger is attached, it returns slog.Default() so callers can always
// log without a nil check.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}
