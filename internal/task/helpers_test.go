package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// gatedPipeline blocks every run until release is closed and records the
// highest number of simultaneous runs it observed.
type gatedPipeline struct {
	release chan struct{}
	started chan struct{}
	current atomic.Int64
	peak    atomic.Int64
	runs    atomic.Int64
	once    sync.Once
}

func newGatedPipeline() *gatedPipeline {
	return &gatedPipeline{
		release: make(chan struct{}),
		started: make(chan struct{}, 100),
	}
}

func (p *gatedPipeline) Run(ctx context.Context, req Request, report ProgressFunc) (any, error) {
	n := p.current.Add(1)
	defer p.current.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.runs.Add(1)
	report("generating", "Generating base recipe...")
	p.started <- struct{}{}
	<-p.release
	return map[string]string{"title": req.Text}, nil
}

func (p *gatedPipeline) Release() {
	p.once.Do(func() { close(p.release) })
}

func fastRunnerConfig(maxConcurrent int) TaskRunnerConfig {
	return TaskRunnerConfig{
		MaxConcurrent:       maxConcurrent,
		PollInterval:        10 * time.Millisecond,
		BackoffInterval:     5 * time.Millisecond,
		MaxIterationBackoff: 50 * time.Millisecond,
	}
}

func testServiceConfig(maxConcurrent, queueSize int) ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Runner = fastRunnerConfig(maxConcurrent)
	cfg.QueueSize = queueSize
	cfg.EnqueueWait = 10 * time.Millisecond
	cfg.LockTimeout = 200 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func newTestService(t *testing.T, pipeline Pipeline, cfg ServiceConfig, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(pipeline, cfg, setupTestLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Shutdown(context.Background())
	})
	return svc
}

// waitForStatus polls until the task reaches want or the deadline passes.
func waitForStatus(t *testing.T, svc *Service, id uuid.UUID, want TaskStatus) StatusReport {
	t.Helper()
	var report StatusReport
	require.Eventually(t, func() bool {
		r, err := svc.GetStatus(context.Background(), id)
		if err != nil {
			return false
		}
		report = r
		return r.Status == want
	}, 5*time.Second, 5*time.Millisecond, "task %s never reached %s", id, want)
	return report
}
