package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/events"
)

// Service defaults
const (
	DefaultEnqueueWait     = 100 * time.Millisecond
	DefaultShutdownTimeout = 10 * time.Second
)

// ServiceConfig collects the tunables of the queue subsystem.
type ServiceConfig struct {
	Runner          TaskRunnerConfig
	QueueSize       int
	EnqueueWait     time.Duration
	LockTimeout     time.Duration
	CleanupInterval time.Duration
	RetentionWindow time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServiceConfig returns a ServiceConfig with reasonable defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Runner:          DefaultTaskRunnerConfig(),
		QueueSize:       DefaultQueueSize,
		EnqueueWait:     DefaultEnqueueWait,
		LockTimeout:     DefaultLockTimeout,
		CleanupInterval: DefaultCleanupInterval,
		RetentionWindow: DefaultRetentionWindow,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Option customizes a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	now        func() time.Time
	emitter    events.EventEmitter
	dispatcher Dispatcher
}

// WithClock replaces time.Now for every timestamp the service records.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithEmitter publishes terminal task events to emitter.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(o *serviceOptions) { o.emitter = emitter }
}

// WithDispatcher overrides how the worker loop starts executions.
func WithDispatcher(d Dispatcher) Option {
	return func(o *serviceOptions) { o.dispatcher = d }
}

// StatusReport is the externally visible view of a task.
type StatusReport struct {
	TaskID        uuid.UUID  `json:"task_id"`
	Status        TaskStatus `json:"status"`
	Request       string     `json:"request"`
	Complexity    Complexity `json:"complexity"`
	Progress      Progress   `json:"progress"`
	Result        any        `json:"result,omitempty"`
	Error         string     `json:"error,omitempty"`
	QueuePosition *int       `json:"queue_position,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func newStatusReport(t Task, position int) StatusReport {
	report := StatusReport{
		TaskID:     t.ID,
		Status:     t.Status,
		Request:    t.Request.Text,
		Complexity: t.Request.Complexity,
		Progress:   t.Progress,
		Result:     t.Result,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
	}
	if t.Status == TaskStatusQueued && position > 0 {
		p := position
		report.QueuePosition = &p
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		report.CompletedAt = &completed
	}
	return report
}

// Stats is a point-in-time summary of the queue subsystem.
type Stats struct {
	WorkerState   string             `json:"worker_state"`
	InFlight      int64              `json:"in_flight"`
	MaxConcurrent int                `json:"max_concurrent"`
	QueueDepth    int                `json:"queue_depth"`
	QueueCapacity int                `json:"queue_capacity"`
	Tasks         map[TaskStatus]int `json:"tasks"`
}

// Service is the entry point to the recipe generation queue. It owns the
// registry, queue, worker loop and sweeper; the worker loop starts on the
// first Submit.
type Service struct {
	registry *Registry
	queue    *TaskQueue
	executor *PipelineExecutor
	runner   *TaskRunner
	sweeper  *Sweeper
	config   ServiceConfig
	now      func() time.Time
	closed   atomic.Bool
	logger   *slog.Logger

	// submitting is held shared by Submit from its closed check until the
	// enqueue returns; Shutdown holds it while stopping and draining.
	submitting sync.RWMutex
}

// NewService wires a Service around pipeline.
func NewService(pipeline Pipeline, cfg ServiceConfig, logger *slog.Logger, opts ...Option) (*Service, error) {
	if pipeline == nil {
		return nil, ErrNilPipeline
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = DefaultEnqueueWait
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	registry := NewRegistry(cfg.LockTimeout, logger)
	queue := NewTaskQueue(cfg.QueueSize, logger)
	executor := NewPipelineExecutor(registry, pipeline, o.emitter, o.now, logger)
	sweeper := NewSweeper(registry, cfg.CleanupInterval, cfg.RetentionWindow, o.now(), logger)
	runner := NewTaskRunner(queue, registry, executor, sweeper, o.dispatcher, cfg.Runner, o.now, logger)

	return &Service{
		registry: registry,
		queue:    queue,
		executor: executor,
		runner:   runner,
		sweeper:  sweeper,
		config:   cfg,
		now:      o.now,
		logger:   logger.With("component", "task_service"),
	}, nil
}

func (s *Service) newTask(text, complexity string) (*Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrInvalidRequest
	}
	c, err := ParseComplexity(complexity)
	if err != nil {
		return nil, err
	}
	return NewTask(Request{Text: text, Complexity: c}, s.now()), nil
}

// Submit registers a request and queues it for background processing. It
// returns as soon as the task is queued. When the queue is full the task is
// recorded as failed and its ID is still returned with a nil error.
func (s *Service) Submit(ctx context.Context, text, complexity string) (uuid.UUID, error) {
	s.submitting.RLock()
	defer s.submitting.RUnlock()

	if s.closed.Load() {
		return uuid.Nil, ErrQueueClosed
	}
	t, err := s.newTask(text, complexity)
	if err != nil {
		return uuid.Nil, err
	}

	if s.runner.EnsureStarted() {
		s.logger.Debug("worker loop started lazily")
	}

	if err := s.registry.Insert(ctx, t); err != nil {
		return uuid.Nil, fmt.Errorf("failed to register task: %w", err)
	}
	logger := s.logger.With("task_id", t.ID)

	if err := s.queue.Enqueue(t.ID, s.config.EnqueueWait); err != nil {
		logger.Warn("task rejected by queue", "error", err, "queue_len", s.queue.Len())
		if failErr := s.failQueued(ctx, t.ID, err.Error()); failErr != nil {
			// Never leave a queued record that nothing will dequeue.
			_ = s.registry.Remove(context.WithoutCancel(ctx), t.ID)
			return uuid.Nil, failErr
		}
		return t.ID, nil
	}

	logger.Info("task submitted",
		"complexity", t.Request.Complexity,
		"queue_len", s.queue.Len())
	return t.ID, nil
}

// failQueued fails a task that never reached the worker loop.
func (s *Service) failQueued(ctx context.Context, id uuid.UUID, reason string) error {
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; attempt < defaultFinalizeAttempts; attempt++ {
		_, err = s.registry.Update(ctx, id, func(t *Task) error {
			return t.fail(reason, Progress{
				Step:    "failed",
				Message: "Generation failed: " + reason,
			}, s.now())
		})
		if err == nil || !errors.Is(err, ErrBusy) {
			return err
		}
	}
	return err
}

// GetStatus returns the current view of a task. An opportunistic sweep runs
// first when one is due.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (StatusReport, error) {
	s.sweeper.MaybeSweep(ctx, s.now())

	t, position, err := s.registry.Lookup(ctx, id)
	if err != nil {
		return StatusReport{}, err
	}
	return newStatusReport(t, position), nil
}

// RunSync runs one request inline, bypassing the queue, through the same
// executor the worker loop uses. The report is populated whenever the task
// reached a terminal state, even if err is a *PipelineError.
func (s *Service) RunSync(ctx context.Context, text, complexity string) (StatusReport, error) {
	if s.closed.Load() {
		return StatusReport{}, ErrQueueClosed
	}
	t, err := s.newTask(text, complexity)
	if err != nil {
		return StatusReport{}, err
	}
	if err := s.registry.Insert(ctx, t); err != nil {
		return StatusReport{}, fmt.Errorf("failed to register task: %w", err)
	}

	runErr := s.executor.Execute(ctx, t.ID)

	snapshot, err := s.registry.Get(context.WithoutCancel(ctx), t.ID)
	if err != nil {
		return StatusReport{}, err
	}
	if snapshot.Status == TaskStatusQueued {
		// Execute never started it, typically because ctx was already done.
		if err := s.failQueued(ctx, t.ID, runErr.Error()); err != nil {
			return StatusReport{}, err
		}
		if snapshot, err = s.registry.Get(context.WithoutCancel(ctx), t.ID); err != nil {
			return StatusReport{}, err
		}
	}
	return newStatusReport(snapshot, 0), runErr
}

// Stats summarizes the worker loop, queue and registry.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	counts, err := s.registry.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		WorkerState:   s.runner.State().String(),
		InFlight:      s.runner.InFlight(),
		MaxConcurrent: s.runner.config.MaxConcurrent,
		QueueDepth:    s.queue.Len(),
		QueueCapacity: s.queue.Cap(),
		Tasks:         counts,
	}, nil
}

// RestartWorker restarts the worker loop. It is a manual recovery hook.
func (s *Service) RestartWorker(ctx context.Context) error {
	if s.closed.Load() {
		return ErrQueueClosed
	}
	return s.runner.Restart(ctx)
}

// Shutdown stops accepting work, stops the worker loop (waiting at most the
// shutdown timeout) and fails every task still waiting in the queue.
// Executions already in flight are left to finish on their own.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	s.queue.Close()

	// Submissions that passed the closed check before it flipped finish
	// before the loop is stopped and the queue drained.
	s.submitting.Lock()
	stopErr := s.runner.Stop(ctx)
	abandoned := s.queue.Drain()
	s.submitting.Unlock()
	reason := ErrQueueClosed.Error() + ": service shutting down"
	for _, id := range abandoned {
		if err := s.failQueued(ctx, id, reason); err != nil {
			s.logger.Error("failed to fail abandoned task", "task_id", id, "error", err)
		}
	}

	s.logger.Info("task service shut down",
		"abandoned", len(abandoned),
		"in_flight", s.runner.InFlight())
	return stopErr
}
