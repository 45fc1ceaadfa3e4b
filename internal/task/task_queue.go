package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueSize is the capacity used when none is configured.
const DefaultQueueSize = 50

// TaskQueue is a bounded FIFO of task IDs. It holds identifiers only; the
// task records themselves live in the Registry.
type TaskQueue struct {
	items     chan uuid.UUID
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewTaskQueue creates a new task queue with the specified capacity
func NewTaskQueue(size int, logger *slog.Logger) *TaskQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &TaskQueue{
		items:  make(chan uuid.UUID, size),
		done:   make(chan struct{}),
		logger: logger.With("component", "task_queue"),
	}
}

// Enqueue adds a task ID to the queue. When the queue is at capacity it
// waits at most wait for room and then returns ErrQueueFull.
func (q *TaskQueue) Enqueue(id uuid.UUID, wait time.Duration) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	// Fast path
	select {
	case q.items <- id:
		q.logEnqueued(id)
		return nil
	default:
	}

	if wait <= 0 {
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.items))
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case q.items <- id:
		q.logEnqueued(id)
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-timer.C:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.items))
	}
}

func (q *TaskQueue) logEnqueued(id uuid.UUID) {
	q.logger.Debug("task enqueued",
		"task_id", id,
		"queue_len", len(q.items),
		"queue_cap", cap(q.items))
}

// Dequeue returns the next task ID, waiting at most timeout. The boolean is
// false when nothing arrived in time, stop was closed or the queue has been
// closed. A nil stop never fires.
func (q *TaskQueue) Dequeue(timeout time.Duration, stop <-chan struct{}) (uuid.UUID, bool) {
	select {
	case <-q.done:
		return uuid.Nil, false
	case <-stop:
		return uuid.Nil, false
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-q.items:
		return id, true
	case <-q.done:
		return uuid.Nil, false
	case <-stop:
		return uuid.Nil, false
	case <-timer.C:
		return uuid.Nil, false
	}
}

// Close stops the queue. Pending IDs are abandoned and further Enqueue
// calls fail with ErrQueueClosed. Close is idempotent.
func (q *TaskQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
		q.logger.Info("task queue closed", "abandoned", len(q.items))
	})
}

// Len returns the number of IDs waiting in the queue.
func (q *TaskQueue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *TaskQueue) Cap() int {
	return cap(q.items)
}

// Drain removes and returns every ID still waiting in the queue without blocking.
func (q *TaskQueue) Drain() []uuid.UUID {
	var ids []uuid.UUID
	for {
		select {
		case id := <-q.items:
			ids = append(ids, id)
		default:
			return ids
		}
	}
}
