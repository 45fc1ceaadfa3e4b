package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is possible from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Complexity is the requested difficulty of the generated recipe.
type Complexity string

// Supported complexity levels
const (
	ComplexityEasy   Complexity = "easy"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// ParseComplexity maps a user-supplied label onto a Complexity.
// Matching is case-insensitive and an empty label means medium.
func ParseComplexity(s string) (Complexity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ComplexityMedium, nil
	case string(ComplexityEasy):
		return ComplexityEasy, nil
	case string(ComplexityMedium):
		return ComplexityMedium, nil
	case string(ComplexityHigh):
		return ComplexityHigh, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidComplexity, s)
	}
}

// Label returns the capitalized form used in prompts and results ("Easy").
func (c Complexity) Label() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Progress is the latest checkpoint reported for a task. Each update
// replaces the previous one.
type Progress struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// Request is the immutable input of a task.
type Request struct {
	Text       string     `json:"request"`
	Complexity Complexity `json:"complexity"`
}

// Task is one unit of background work. Values returned by the Registry are
// copies; only the Registry mutates the stored record.
type Task struct {
	ID          uuid.UUID
	Request     Request
	Status      TaskStatus
	Progress    Progress
	Result      any
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time

	// seq orders tasks by submission for queue position calculation
	seq uint64
}

// NewTask creates a queued task for the given request.
func NewTask(req Request, now time.Time) *Task {
	return &Task{
		ID:        uuid.New(),
		Request:   req,
		Status:    TaskStatusQueued,
		Progress:  Progress{Step: "queued", Message: "Request queued for processing"},
		CreatedAt: now,
	}
}

// start moves a queued task to processing.
func (t *Task) start(p Progress) error {
	if t.Status != TaskStatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusProcessing)
	}
	t.Status = TaskStatusProcessing
	t.Progress = p
	return nil
}

// complete records a successful result.
func (t *Task) complete(result any, p Progress, now time.Time) error {
	if t.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusCompleted)
	}
	t.Status = TaskStatusCompleted
	t.Result = result
	t.Error = ""
	t.Progress = p
	t.CompletedAt = now
	return nil
}

// fail records a terminal error. Queued tasks may fail directly when they
// were never dispatched.
func (t *Task) fail(msg string, p Progress, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusFailed)
	}
	t.Status = TaskStatusFailed
	t.Result = nil
	t.Error = msg
	t.Progress = p
	t.CompletedAt = now
	return nil
}

// setProgress overwrites the checkpoint of a processing task.
func (t *Task) setProgress(p Progress) error {
	if t.Status != TaskStatusProcessing {
		return fmt.Errorf("%w: progress on %s task", ErrInvalidTransition, t.Status)
	}
	t.Progress = p
	return nil
}

// ProgressFunc is handed to a Pipeline so it can publish checkpoints while
// it runs. Calls are best effort and never block for longer than the
// registry lock timeout.
type ProgressFunc func(step, message string)

// Pipeline turns a request into a result. It is the only collaborator the
// queue depends on; the returned value is stored and returned verbatim.
type Pipeline interface {
	Run(ctx context.Context, req Request, report ProgressFunc) (any, error)
}

// PipelineFunc adapts an ordinary function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, req Request, report ProgressFunc) (any, error)

// Run calls f.
func (f PipelineFunc) Run(ctx context.Context, req Request, report ProgressFunc) (any, error) {
	return f(ctx, req, report)
}
