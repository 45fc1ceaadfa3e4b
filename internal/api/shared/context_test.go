package shared

import (
	"context"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	withTrace := SetTraceID(ctx)
	traceID := GetTraceID(withTrace)
	_, err := uuid.Parse(traceID)
	assert.NoError(t, err, "generated trace IDs are UUIDs")
	assert.Empty(t, GetTraceID(ctx), "original context is unchanged")
}

func TestSetTraceID_ReusesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/abc-000001")
	assert.Equal(t, "host/abc-000001", GetTraceID(SetTraceID(ctx)))
}

func TestGetTraceIDWithInvalidContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx))
}
