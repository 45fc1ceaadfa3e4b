package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/events"
)

// Event types emitted when a task reaches a terminal state
const (
	EventTaskCompleted = "recipe.completed"
	EventTaskFailed    = "recipe.failed"
)

const defaultFinalizeAttempts = 3

// PipelineExecutor runs one task through the pipeline and records the
// outcome. It is used by both the worker loop and Service.RunSync so the two
// entry points cannot drift apart.
type PipelineExecutor struct {
	registry         *Registry
	pipeline         Pipeline
	emitter          events.EventEmitter
	now              func() time.Time
	finalizeAttempts int
	logger           *slog.Logger
}

// NewPipelineExecutor creates an executor. emitter may be nil.
func NewPipelineExecutor(
	registry *Registry,
	pipeline Pipeline,
	emitter events.EventEmitter,
	now func() time.Time,
	logger *slog.Logger,
) *PipelineExecutor {
	if now == nil {
		now = time.Now
	}
	return &PipelineExecutor{
		registry:         registry,
		pipeline:         pipeline,
		emitter:          emitter,
		now:              now,
		finalizeAttempts: defaultFinalizeAttempts,
		logger:           logger.With("component", "pipeline_executor"),
	}
}

// Execute moves the task to processing, runs the pipeline and stores the
// terminal result or error. The returned error is the pipeline failure (a
// *PipelineError) or a registry error; in both cases the task has been
// left terminal whenever the registry allowed it.
func (e *PipelineExecutor) Execute(ctx context.Context, id uuid.UUID) error {
	logger := e.logger.With("task_id", id)

	snapshot, err := e.registry.Update(ctx, id, func(t *Task) error {
		return t.start(Progress{Step: "processing", Message: "Starting recipe generation..."})
	})
	if err != nil {
		logger.Error("failed to update task status to processing", "error", err)
		if errors.Is(err, ErrBusy) {
			// Still queued and already off the queue: fail it rather than lose it.
			e.finalize(ctx, logger, id, nil, err)
		}
		return err
	}

	logger.Info("processing task",
		"complexity", snapshot.Request.Complexity,
		"queued_for", e.now().Sub(snapshot.CreatedAt))

	result, runErr := e.run(ctx, snapshot.Request, e.reporter(ctx, logger, id))
	if runErr != nil {
		logger.Error("task execution failed", "error", runErr)
	} else {
		logger.Info("task completed successfully")
	}

	if err := e.finalize(ctx, logger, id, result, runErr); err != nil {
		return err
	}
	return runErr
}

// run calls the pipeline, converting errors and panics into *PipelineError.
func (e *PipelineExecutor) run(ctx context.Context, req Request, report ProgressFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &PipelineError{Err: fmt.Errorf("pipeline panic: %v", r)}
		}
	}()

	result, err = e.pipeline.Run(ctx, req, report)
	if err != nil {
		return nil, &PipelineError{Err: err}
	}
	return result, nil
}

// reporter returns the ProgressFunc handed to the pipeline.
func (e *PipelineExecutor) reporter(ctx context.Context, logger *slog.Logger, id uuid.UUID) ProgressFunc {
	return func(step, message string) {
		_, err := e.registry.Update(ctx, id, func(t *Task) error {
			return t.setProgress(Progress{Step: step, Message: message})
		})
		if err != nil {
			logger.Debug("progress update dropped", "step", step, "error", err)
			return
		}
		logger.Debug("progress updated", "step", step)
	}
}

// finalize writes the terminal state, retrying while the registry is busy.
func (e *PipelineExecutor) finalize(
	ctx context.Context,
	logger *slog.Logger,
	id uuid.UUID,
	result any,
	runErr error,
) error {
	// The terminal write must land even if the caller's context is gone.
	ctx = context.WithoutCancel(ctx)

	var (
		snapshot Task
		err      error
	)
	for attempt := 1; attempt <= e.finalizeAttempts; attempt++ {
		snapshot, err = e.registry.Update(ctx, id, func(t *Task) error {
			now := e.now()
			if runErr != nil {
				return t.fail(runErr.Error(), Progress{
					Step:    "failed",
					Message: "Generation failed: " + runErr.Error(),
				}, now)
			}
			return t.complete(result, Progress{
				Step:    "completed",
				Message: "Recipe generation complete!",
			}, now)
		})
		if err == nil || !errors.Is(err, ErrBusy) {
			break
		}
		logger.Warn("registry busy while finalizing task", "attempt", attempt)
	}
	if err != nil {
		logger.Error("failed to record terminal task state", "error", err)
		return err
	}

	e.emit(ctx, logger, snapshot)
	return nil
}

// emit publishes the terminal state. Handler failures are logged only.
func (e *PipelineExecutor) emit(ctx context.Context, logger *slog.Logger, t Task) {
	if e.emitter == nil {
		return
	}

	eventType := EventTaskCompleted
	payload := events.TaskOutcome{
		TaskID:      t.ID,
		Request:     t.Request.Text,
		Complexity:  string(t.Request.Complexity),
		Status:      string(t.Status),
		Result:      t.Result,
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
	}
	if t.Status == TaskStatusFailed {
		eventType = EventTaskFailed
	}

	event, err := events.NewTaskEvent(eventType, payload)
	if err != nil {
		logger.Error("failed to build task event", "error", err)
		return
	}
	if err := e.emitter.EmitEvent(ctx, event); err != nil {
		logger.Warn("task event handler failed", "event_type", eventType, "error", err)
	}
}
