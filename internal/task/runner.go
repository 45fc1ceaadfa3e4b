package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// RunnerState is the lifecycle state of the worker loop.
type RunnerState int32

// Worker loop states
const (
	RunnerNotStarted RunnerState = iota
	RunnerRunning
	RunnerStopping
	RunnerStopped
)

func (s RunnerState) String() string {
	switch s {
	case RunnerNotStarted:
		return "not_started"
	case RunnerRunning:
		return "running"
	case RunnerStopping:
		return "stopping"
	case RunnerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// MaxConcurrent is the ceiling on simultaneously executing tasks
	MaxConcurrent int

	// PollInterval bounds each dequeue wait so the loop can notice shutdown
	PollInterval time.Duration

	// BackoffInterval is the pause taken when every slot is busy
	BackoffInterval time.Duration

	// MaxIterationBackoff caps the pause after repeated iteration failures
	MaxIterationBackoff time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		MaxConcurrent:       3,
		PollInterval:        250 * time.Millisecond,
		BackoffInterval:     200 * time.Millisecond,
		MaxIterationBackoff: 5 * time.Second,
	}
}

func (c TaskRunnerConfig) withDefaults() TaskRunnerConfig {
	d := DefaultTaskRunnerConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.BackoffInterval <= 0 {
		c.BackoffInterval = d.BackoffInterval
	}
	if c.MaxIterationBackoff <= 0 {
		c.MaxIterationBackoff = d.MaxIterationBackoff
	}
	return c
}

// Dispatcher starts fn on an independent execution context. A non-nil
// error means fn will never run.
type Dispatcher interface {
	Dispatch(fn func()) error
}

// DispatcherFunc adapts an ordinary function to the Dispatcher interface.
type DispatcherFunc func(fn func()) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(fn func()) error {
	return f(fn)
}

// GoDispatcher runs each function on its own goroutine.
var GoDispatcher = DispatcherFunc(func(fn func()) error {
	go fn()
	return nil
})

// TaskRunner is the background worker loop. It pulls task IDs from the
// queue and hands each one to the executor on its own goroutine, never
// running more than MaxConcurrent at once.
type TaskRunner struct {
	queue      *TaskQueue
	registry   *Registry
	executor   *PipelineExecutor
	sweeper    *Sweeper
	dispatcher Dispatcher
	config     TaskRunnerConfig
	now        func() time.Time
	logger     *slog.Logger

	slots    *semaphore.Weighted
	inFlight atomic.Int64

	state atomic.Int32
	mu    sync.Mutex
	stop  chan struct{}
	done  chan struct{}
}

// NewTaskRunner creates a runner in the not_started state. sweeper may be
// nil; dispatcher defaults to GoDispatcher.
func NewTaskRunner(
	queue *TaskQueue,
	registry *Registry,
	executor *PipelineExecutor,
	sweeper *Sweeper,
	dispatcher Dispatcher,
	config TaskRunnerConfig,
	now func() time.Time,
	logger *slog.Logger,
) *TaskRunner {
	config = config.withDefaults()
	if dispatcher == nil {
		dispatcher = GoDispatcher
	}
	if now == nil {
		now = time.Now
	}
	return &TaskRunner{
		queue:      queue,
		registry:   registry,
		executor:   executor,
		sweeper:    sweeper,
		dispatcher: dispatcher,
		config:     config,
		now:        now,
		logger:     logger.With("component", "task_runner"),
		slots:      semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// State returns the current lifecycle state.
func (r *TaskRunner) State() RunnerState {
	return RunnerState(r.state.Load())
}

// InFlight returns the number of tasks currently dispatched and not yet finished.
func (r *TaskRunner) InFlight() int64 {
	return r.inFlight.Load()
}

// EnsureStarted starts the loop if it has never been started. It is safe
// to call from many goroutines; exactly one loop is ever launched. It
// reports whether this call started the loop.
func (r *TaskRunner) EnsureStarted() bool {
	if r.State() != RunnerNotStarted {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.State() != RunnerNotStarted {
		return false
	}
	r.startLocked()
	return true
}

// startLocked launches a new loop goroutine. r.mu must be held.
func (r *TaskRunner) startLocked() {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.state.Store(int32(RunnerRunning))

	r.logger.Info("starting worker loop",
		"max_concurrent", r.config.MaxConcurrent,
		"poll_interval", r.config.PollInterval)

	go r.loop(r.stop, r.done)
}

// Stop asks the loop to exit and waits for it until ctx is done. In-flight
// executions are not cancelled. The runner ends up stopped even when the
// loop fails to exit in time; the returned error reports that case.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.State() != RunnerRunning {
		r.mu.Unlock()
		return nil
	}
	r.state.Store(int32(RunnerStopping))
	close(r.stop)
	done := r.done
	r.mu.Unlock()

	var err error
	select {
	case <-done:
		r.logger.Info("worker loop stopped", "in_flight", r.InFlight())
	case <-ctx.Done():
		err = fmt.Errorf("worker loop did not exit: %w", ctx.Err())
		r.logger.Warn("worker loop did not exit before deadline, proceeding",
			"in_flight", r.InFlight())
	}

	r.mu.Lock()
	r.state.Store(int32(RunnerStopped))
	r.mu.Unlock()
	return err
}

// Restart stops a running loop (bounded by ctx) and starts a fresh one.
// A loop that never started is simply started.
func (r *TaskRunner) Restart(ctx context.Context) error {
	stopErr := r.Stop(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.State() == RunnerRunning {
		return nil
	}
	r.startLocked()
	r.logger.Info("worker loop restarted")
	return stopErr
}

func (r *TaskRunner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	failures := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := r.iterate(stop); err != nil {
			failures++
			backoff := time.Duration(failures) * r.config.BackoffInterval
			if backoff > r.config.MaxIterationBackoff {
				backoff = r.config.MaxIterationBackoff
			}
			r.logger.Error("worker loop iteration failed",
				"error", err,
				"consecutive_failures", failures,
				"backoff", backoff)
			if !sleep(stop, backoff) {
				return
			}
			continue
		}
		failures = 0
	}
}

// iterate performs one pass: take a slot, pull one task, dispatch it.
// A panic anywhere in the pass is returned as an error; a task that was
// dequeued but not handed off is failed so it is never lost.
func (r *TaskRunner) iterate(stop <-chan struct{}) (err error) {
	var (
		holding bool
		counted bool
		pending = uuid.Nil
	)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("worker loop panic: %v", rec)
			if pending != uuid.Nil {
				r.failUndispatched(pending, fmt.Errorf("%w: %v", ErrDispatch, rec))
			}
		}
		if counted {
			r.inFlight.Add(-1)
		}
		if holding {
			r.slots.Release(1)
		}
	}()

	if !r.slots.TryAcquire(1) {
		sleep(stop, r.config.BackoffInterval)
		return nil
	}
	holding = true

	id, ok := r.queue.Dequeue(r.config.PollInterval, stop)
	if !ok {
		if r.sweeper != nil {
			r.sweeper.MaybeSweep(context.Background(), r.now())
		}
		return nil
	}
	pending = id

	r.inFlight.Add(1)
	counted = true
	if err := r.dispatch(id); err != nil {
		pending = uuid.Nil
		r.failUndispatched(id, err)
		return nil
	}

	// The execution goroutine owns the slot and the counter now.
	holding, counted, pending = false, false, uuid.Nil
	return nil
}

// dispatch hands a dequeued task to the dispatcher. It does not consult the
// runner state: a task pulled just as Stop closed the loop is still run.
func (r *TaskRunner) dispatch(id uuid.UUID) error {
	err := r.dispatcher.Dispatch(func() {
		defer func() {
			r.inFlight.Add(-1)
			r.slots.Release(1)
		}()
		// Errors are recorded on the task by the executor.
		_ = r.executor.Execute(context.Background(), id)
	})
	if err != nil && !errors.Is(err, ErrDispatch) {
		err = fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return err
}

// failUndispatched marks a dequeued task failed when it could not be started.
func (r *TaskRunner) failUndispatched(id uuid.UUID, cause error) {
	logger := r.logger.With("task_id", id)
	logger.Error("failed to dispatch task", "error", cause)

	_, err := r.registry.Update(context.Background(), id, func(t *Task) error {
		return t.fail(cause.Error(), Progress{
			Step:    "failed",
			Message: "Generation failed: " + cause.Error(),
		}, r.now())
	})
	if err != nil {
		logger.Error("failed to mark undispatched task as failed", "error", err)
	}
}

// sleep waits for d or until stop is closed. It reports false if stopped.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}
