// Package ctxlog carries a *slog.Logger through a context.Context, for the
// one layer of this program that benefits from one: the CLI entrypoint and
// the program loader, which want every log line tagged with the batch
// correlation ID the command is currently running.
//
// The IR/DAG/scheduler core never imports this package — those operations
// are synchronous with no natural place to thread a context into, and they
// do no logging of their own at all: failures come back as sentinel errors
// for the caller to handle, and the debug DOT dumps in internal/dotgraph
// report their own write failures directly to stderr rather than through
// a logger.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context, falling back to
// slog.Default() if none was embedded.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
