package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long any registry operation waits for the lock.
const DefaultLockTimeout = 2 * time.Second

// Registry is the authoritative store of all known tasks, keyed by ID.
// Every operation serializes on a single lock whose acquisition is bounded
// by the lock timeout; a caller that cannot get the lock in time receives
// ErrBusy instead of blocking.
type Registry struct {
	// lock is a weight-1 semaphore so acquisition can honor a deadline
	lock        *semaphore.Weighted
	lockTimeout time.Duration
	tasks       map[uuid.UUID]*Task
	nextSeq     uint64
	logger      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(lockTimeout time.Duration, logger *slog.Logger) *Registry {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Registry{
		lock:        semaphore.NewWeighted(1),
		lockTimeout: lockTimeout,
		tasks:       make(map[uuid.UUID]*Task),
		logger:      logger.With("component", "task_registry"),
	}
}

// acquire takes the registry lock or gives up after the lock timeout.
// The returned function releases the lock.
func (r *Registry) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, r.lockTimeout)
	defer cancel()

	if err := r.lock.Acquire(lockCtx, 1); err != nil {
		r.logger.Warn("registry lock acquisition timed out",
			"timeout", r.lockTimeout,
			"error", err)
		return nil, fmt.Errorf("%w: registry lock not acquired within %s", ErrBusy, r.lockTimeout)
	}
	return func() { r.lock.Release(1) }, nil
}

// Insert registers a new task. The registry keeps its own pointer; callers
// must not mutate t afterwards.
func (r *Registry) Insert(ctx context.Context, t *Task) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, exists := r.tasks[t.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.ID)
	}
	r.nextSeq++
	t.seq = r.nextSeq
	r.tasks[t.ID] = t
	return nil
}

// Get returns a copy of the task with the given ID.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (Task, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return Task{}, err
	}
	defer release()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *t, nil
}

// Lookup returns a copy of the task together with its 1-based position in
// the queue. The position is 0 unless the task is still queued.
func (r *Registry) Lookup(ctx context.Context, id uuid.UUID) (Task, int, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return Task{}, 0, err
	}
	defer release()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if t.Status != TaskStatusQueued {
		return *t, 0, nil
	}

	position := 1
	for _, other := range r.tasks {
		if other.Status == TaskStatusQueued && other.seq < t.seq {
			position++
		}
	}
	return *t, position, nil
}

// Update applies fn to the stored task under the lock and returns a copy of
// the result. If fn returns an error the task is left as fn left it; the
// transition helpers on Task only mutate after validating.
func (r *Registry) Update(ctx context.Context, id uuid.UUID, fn func(t *Task) error) (Task, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return Task{}, err
	}
	defer release()

	t, ok := r.tasks[id]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(t); err != nil {
		return *t, err
	}
	return *t, nil
}

// Remove deletes the task with the given ID. Removing an unknown ID is a no-op.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) error {
	release, err := r.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	delete(r.tasks, id)
	return nil
}

// ListForSweep returns copies of every terminal task.
func (r *Registry) ListForSweep(ctx context.Context) ([]Task, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	terminal := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if t.Status.IsTerminal() {
			terminal = append(terminal, *t)
		}
	}
	return terminal, nil
}

// Counts returns the number of registered tasks per status.
func (r *Registry) Counts(ctx context.Context) (map[TaskStatus]int, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	counts := map[TaskStatus]int{
		TaskStatusQueued:     0,
		TaskStatusProcessing: 0,
		TaskStatusCompleted:  0,
		TaskStatusFailed:     0,
	}
	for _, t := range r.tasks {
		counts[t.Status]++
	}
	return counts, nil
}
