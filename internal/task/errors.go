package task

import "errors"

// Common errors returned by the task package
var (
	ErrNotFound          = errors.New("task not found")
	ErrBusy              = errors.New("system busy, try again later")
	ErrQueueFull         = errors.New("task queue is full")
	ErrQueueClosed       = errors.New("task queue is closed")
	ErrDispatch          = errors.New("failed to dispatch task")
	ErrInvalidRequest    = errors.New("recipe request cannot be empty")
	ErrInvalidComplexity = errors.New("invalid complexity")
	ErrDuplicateTask     = errors.New("task already registered")
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrNilPipeline       = errors.New("pipeline cannot be nil")
	ErrNilLogger         = errors.New("logger cannot be nil")
)

// PipelineError wraps an error returned (or a panic raised) by the pipeline
// collaborator. Its message is what gets stored on the failed task.
type PipelineError struct {
	Err error
}

func (e *PipelineError) Error() string {
	return e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
