package shared

import (
	"context"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// ContextKey is the key type for values this package stores in a context.
type ContextKey string

// TraceIDKey is the key for the trace ID in the request context.
const TraceIDKey ContextKey = "traceID"

// SetTraceID stores a trace ID in ctx. It reuses the chi request ID when
// one is present so log lines and error bodies share the same value.
func SetTraceID(ctx context.Context) context.Context {
	traceID := middleware.GetReqID(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}
