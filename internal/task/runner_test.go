package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFixture struct {
	runner   *TaskRunner
	registry *Registry
	queue    *TaskQueue
}

func setupRunner(t *testing.T, pipeline Pipeline, dispatcher Dispatcher, maxConcurrent int) *runnerFixture {
	t.Helper()
	logger := setupTestLogger()
	registry := NewRegistry(0, logger)
	queue := NewTaskQueue(10, logger)
	executor := NewPipelineExecutor(registry, pipeline, nil, nil, logger)
	runner := NewTaskRunner(queue, registry, executor, nil, dispatcher, fastRunnerConfig(maxConcurrent), nil, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = runner.Stop(ctx)
		queue.Close()
	})
	return &runnerFixture{runner: runner, registry: registry, queue: queue}
}

func (f *runnerFixture) submit(t *testing.T, text string) uuid.UUID {
	t.Helper()
	task := newTestTask(text)
	require.NoError(t, f.registry.Insert(context.Background(), task))
	require.NoError(t, f.queue.Enqueue(task.ID, 0))
	return task.ID
}

func (f *runnerFixture) waitTerminal(t *testing.T, id uuid.UUID) Task {
	t.Helper()
	var got Task
	require.Eventually(t, func() bool {
		var err error
		got, err = f.registry.Get(context.Background(), id)
		return err == nil && got.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return got
}

var okPipeline = PipelineFunc(func(ctx context.Context, req Request, report ProgressFunc) (any, error) {
	return req.Text, nil
})

func TestRunnerState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "not_started", RunnerNotStarted.String())
	assert.Equal(t, "running", RunnerRunning.String())
	assert.Equal(t, "stopping", RunnerStopping.String())
	assert.Equal(t, "stopped", RunnerStopped.String())
}

func TestTaskRunner_EnsureStartedOnce(t *testing.T) {
	t.Parallel()

	f := setupRunner(t, okPipeline, nil, 2)
	assert.Equal(t, RunnerNotStarted, f.runner.State())

	var (
		started atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.runner.EnsureStarted() {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, RunnerRunning, f.runner.State())

	id := f.submit(t, "tacos")
	got := f.waitTerminal(t, id)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	assert.Equal(t, "tacos", got.Result)
}

func TestTaskRunner_FIFODispatch(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		order []string
	)
	pipeline := PipelineFunc(func(ctx context.Context, req Request, report ProgressFunc) (any, error) {
		mu.Lock()
		order = append(order, req.Text)
		mu.Unlock()
		return nil, nil
	})
	f := setupRunner(t, pipeline, nil, 1)

	ids := []uuid.UUID{f.submit(t, "first"), f.submit(t, "second"), f.submit(t, "third")}
	f.runner.EnsureStarted()
	for _, id := range ids {
		f.waitTerminal(t, id)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestTaskRunner_DispatchFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	dispatcher := DispatcherFunc(func(fn func()) error {
		if calls.Add(1) == 1 {
			return errors.New("no execution context available")
		}
		go fn()
		return nil
	})
	f := setupRunner(t, okPipeline, dispatcher, 1)

	rejected := f.submit(t, "rejected")
	accepted := f.submit(t, "accepted")
	f.runner.EnsureStarted()

	got := f.waitTerminal(t, rejected)
	assert.Equal(t, TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, ErrDispatch.Error())
	assert.Contains(t, got.Error, "no execution context available")

	// The slot was released, so the next task still runs.
	got = f.waitTerminal(t, accepted)
	assert.Equal(t, TaskStatusCompleted, got.Status)

	assert.Eventually(t, func() bool { return f.runner.InFlight() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, RunnerRunning, f.runner.State())
}

func TestTaskRunner_SurvivesIterationPanic(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	dispatcher := DispatcherFunc(func(fn func()) error {
		if calls.Add(1) == 1 {
			panic("dispatcher bug")
		}
		go fn()
		return nil
	})
	f := setupRunner(t, okPipeline, dispatcher, 1)

	lost := f.submit(t, "unlucky")
	next := f.submit(t, "lucky")
	f.runner.EnsureStarted()

	got := f.waitTerminal(t, lost)
	assert.Equal(t, TaskStatusFailed, got.Status)
	assert.Contains(t, got.Error, "dispatcher bug")

	got = f.waitTerminal(t, next)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	assert.Eventually(t, func() bool { return f.runner.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}

func TestTaskRunner_StopAndRestart(t *testing.T) {
	t.Parallel()

	f := setupRunner(t, okPipeline, nil, 2)
	ctx := context.Background()

	// Stopping a runner that never started is a no-op.
	require.NoError(t, f.runner.Stop(ctx))
	assert.Equal(t, RunnerNotStarted, f.runner.State())

	f.runner.EnsureStarted()
	require.NoError(t, f.runner.Stop(ctx))
	assert.Equal(t, RunnerStopped, f.runner.State())

	// A stopped runner is not restarted lazily.
	assert.False(t, f.runner.EnsureStarted())

	id := f.submit(t, "after restart")
	time.Sleep(30 * time.Millisecond)
	got, err := f.registry.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusQueued, got.Status)

	require.NoError(t, f.runner.Restart(ctx))
	assert.Equal(t, RunnerRunning, f.runner.State())

	got = f.waitTerminal(t, id)
	assert.Equal(t, TaskStatusCompleted, got.Status)
}

func TestTaskRunner_StopDoesNotCancelInFlight(t *testing.T) {
	t.Parallel()

	pipeline := newGatedPipeline()
	f := setupRunner(t, pipeline, nil, 1)
	t.Cleanup(pipeline.Release)

	id := f.submit(t, "slow")
	f.runner.EnsureStarted()
	<-pipeline.started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.runner.Stop(ctx))
	assert.Equal(t, int64(1), f.runner.InFlight())

	pipeline.Release()
	got := f.waitTerminal(t, id)
	assert.Equal(t, TaskStatusCompleted, got.Status)
	assert.Eventually(t, func() bool { return f.runner.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}
