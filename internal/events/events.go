package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskEvent represents something that happened to a background task.
// The payload is kept as raw JSON so handlers can decode only what they need.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type identifies what happened, e.g. "recipe.completed"
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// TaskOutcome is the payload of terminal task events.
type TaskOutcome struct {
	TaskID      uuid.UUID `json:"task_id"`
	Request     string    `json:"request"`
	Complexity  string    `json:"complexity"`
	Status      string    `json:"status"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates a new TaskEvent with the specified type and payload.
func NewTaskEvent(eventType string, payload interface{}) (*TaskEvent, error) {
	// Serialize the payload to JSON
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers may be invoked concurrently from several task goroutines.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts an ordinary function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}
