package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the structured logging key for run identifiers.
	FieldRunID = "run_id"
	// FieldBatch is the structured logging key for zero-based batch indexes.
	FieldBatch = "batch"
)

type contextKey int

const (
	runIDKey contextKey = iota
	batchKey
)

// WithRunID stores the run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the run identifier, if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithBatch stores the current batch index on the context.
func WithBatch(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, batchKey, index)
}

// BatchFromContext extracts the current batch index, if present.
func BatchFromContext(ctx context.Context) (int, bool) {
	index, ok := ctx.Value(batchKey).(int)
	return index, ok
}

// ContextFields extracts standardized slog attributes from the context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if index, ok := BatchFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldBatch, index))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from the context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, attr := range fields {
		args = append(args, attr)
	}
	return logger.With(args...)
}

// Error wraps an error as a standardized slog attribute.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}
