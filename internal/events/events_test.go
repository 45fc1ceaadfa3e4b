package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskEvent(t *testing.T) {
	outcome := TaskOutcome{
		TaskID:      uuid.New(),
		Request:     "chicken tacos",
		Complexity:  "easy",
		Status:      "completed",
		Result:      map[string]any{"title": "Tacos"},
		CreatedAt:   time.Now().Add(-time.Minute).UTC(),
		CompletedAt: time.Now().UTC(),
	}

	event, err := NewTaskEvent("recipe.completed", outcome)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "recipe.completed", event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	// Decode into a handler-side view of the payload
	var decoded struct {
		TaskID uuid.UUID `json:"task_id"`
		Status string    `json:"status"`
		Result struct {
			Title string `json:"title"`
		} `json:"result"`
		Error string `json:"error"`
	}
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, outcome.TaskID, decoded.TaskID)
	assert.Equal(t, "completed", decoded.Status)
	assert.Equal(t, "Tacos", decoded.Result.Title)
	assert.Empty(t, decoded.Error, "error should be omitted for completed tasks")
}

func TestNewTaskEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewTaskEvent("recipe.completed", map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

// MockEventHandler implements the EventHandler interface for testing.
// It is safe for concurrent use.
type MockEventHandler struct {
	mu sync.Mutex
	// The last event received by this handler
	LastEvent *TaskEvent
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func (h *MockEventHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.HandledCount
}

func TestHandlerFunc(t *testing.T) {
	var got *TaskEvent
	handler := HandlerFunc(func(ctx context.Context, event *TaskEvent) error {
		got = event
		return errors.New("handler error")
	})

	event, err := NewTaskEvent("recipe.failed", TaskOutcome{Error: "bad request"})
	require.NoError(t, err)

	err = handler.HandleEvent(context.Background(), event)
	assert.EqualError(t, err, "handler error")
	assert.Same(t, event, got)
}
