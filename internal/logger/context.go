package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// RunIDField is the log field carrying the pipeline run identifier.
const RunIDField = "run_id"

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// ContextWithRun derives a run-scoped logger from base and stores it in the context.
func ContextWithRun(ctx context.Context, base *zap.Logger, runID string) (context.Context, *zap.Logger) {
	l := base.With(zap.String(RunIDField, runID))
	return ContextWithLogger(ctx, l), l
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	return FromContextOr(ctx, zap.NewNop())
}

// FromContextOr extracts a logger from the context, falling back to def.
func FromContextOr(ctx context.Context, def *zap.Logger) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return def
}
