package services

import "context"

type contextKey string

const (
	entityIDKey  contextKey = "entity_id"
	sweepIDKey   contextKey = "sweep_id"
	adapterKey   contextKey = "adapter"
	requestIDKey contextKey = "request_id"
)

// WithEntityID annotates context with the tracked entity identifier.
func WithEntityID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, entityIDKey, id)
}

// EntityIDFromContext extracts the tracked entity identifier if present.
func EntityIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(entityIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithSweepID annotates context with the sweep run identifier.
func WithSweepID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sweepIDKey, id)
}

// SweepIDFromContext returns the sweep run identifier if present.
func SweepIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sweepIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithAdapter annotates context with the external adapter name.
func WithAdapter(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, adapterKey, name)
}

// AdapterFromContext returns the external adapter name if present.
func AdapterFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(adapterKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
