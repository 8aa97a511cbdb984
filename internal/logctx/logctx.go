// Package logctx carries per-run loggers through context.Context.
//
// The CLI attaches a logger enriched with the input path and a run id;
// the extraction pipeline reads it back with FromContext, so library code
// never touches process-wide logging configuration directly.
//
//	ctx, runID := logctx.WithRunID(logctx.WithLogger(ctx, base))
//	log := logctx.FromContext(ctx)
package logctx

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eunmann/ste-extract/pkg/logging"
)

// loggerKey is the private key type for storing loggers in context.
type loggerKey struct{}

// runIDKey is the private key type for storing the run id.
type runIDKey struct{}

// WithLogger returns a new context with the given logger attached.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context. Without one it
// returns the process logger from package logging.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
			return logger
		}
	}
	return *logging.L()
}

// WithStr returns a new context whose logger has the string field added.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a new context whose logger has the int field added.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithRunID assigns a fresh random run id to the context and to its
// logger's run_id field.
func WithRunID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	ctx = WithStr(ctx, "run_id", id)
	return context.WithValue(ctx, runIDKey{}, id), id
}

// RunID returns the run id stored by WithRunID, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}
