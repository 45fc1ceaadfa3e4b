package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// InMemoryEventEmitter dispatches events synchronously, in registration
// order, to handlers held in memory. It is safe for concurrent use.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryEventEmitter creates a new instance of InMemoryEventEmitter.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		handlers: make([]EventHandler, 0),
		logger:   logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a new event handler to receive events.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent publishes the given event to all registered handlers.
// Every handler sees the event even if an earlier one fails or panics;
// the first error encountered is returned.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Debug("no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := e.dispatch(ctx, handler, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (e *InMemoryEventEmitter) dispatch(ctx context.Context, handler EventHandler, event *TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panic: %v", r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}
