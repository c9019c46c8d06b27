package logging

import (
	"context"
	"log/slog"

	"patchwatch/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEntityID is the standardized structured logging key for tracked entity identifiers.
	FieldEntityID = "entity_id"
	// FieldSweepID is the standardized structured logging key for sweep run identifiers.
	FieldSweepID = "sweep_id"
	// FieldAdapter is the standardized structured logging key for external adapter names.
	FieldAdapter = "adapter"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.EntityIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldEntityID, id))
	}
	if id, ok := services.SweepIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSweepID, id))
	}
	if name, ok := services.AdapterFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAdapter, name))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
