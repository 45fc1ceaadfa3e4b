package task

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInterval  = 600 * time.Second
	testRetention = 1800 * time.Second
)

func insertTerminal(t *testing.T, r *Registry, completedAt time.Time) *Task {
	t.Helper()
	ctx := context.Background()
	task := NewTask(Request{Text: "done"}, completedAt.Add(-time.Minute))
	require.NoError(t, r.Insert(ctx, task))
	_, err := r.Update(ctx, task.ID, func(t *Task) error {
		if err := t.start(Progress{}); err != nil {
			return err
		}
		return t.complete("recipe", Progress{}, completedAt)
	})
	require.NoError(t, err)
	return task
}

func TestSweeper_NotDue(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	r := NewRegistry(0, setupTestLogger())
	s := NewSweeper(r, testInterval, testRetention, clock.Now(), setupTestLogger())

	old := insertTerminal(t, r, clock.Now().Add(-2*testRetention))

	evicted, swept := s.MaybeSweep(context.Background(), clock.Now().Add(testInterval-time.Second))
	assert.False(t, swept)
	assert.Zero(t, evicted)

	_, err := r.Get(context.Background(), old.ID)
	assert.NoError(t, err)
}

func TestSweeper_Retention(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	ctx := context.Background()
	r := NewRegistry(0, setupTestLogger())
	s := NewSweeper(r, testInterval, testRetention, clock.Now(), setupTestLogger())

	completedAt := clock.Now()
	done := insertTerminal(t, r, completedAt)

	processing := NewTask(Request{Text: "slow"}, completedAt.Add(-time.Hour))
	require.NoError(t, r.Insert(ctx, processing))
	_, err := r.Update(ctx, processing.ID, func(t *Task) error { return t.start(Progress{}) })
	require.NoError(t, err)

	queued := NewTask(Request{Text: "waiting"}, completedAt.Add(-time.Hour))
	require.NoError(t, r.Insert(ctx, queued))

	// Just inside the retention window: due, but nothing is old enough.
	evicted, swept := s.MaybeSweep(ctx, completedAt.Add(testRetention-time.Second))
	assert.True(t, swept)
	assert.Zero(t, evicted)
	_, err = r.Get(ctx, done.ID)
	require.NoError(t, err)

	// Past retention plus a full interval the completed task is gone.
	evicted, swept = s.MaybeSweep(ctx, completedAt.Add(testRetention+testInterval+time.Second))
	assert.True(t, swept)
	assert.Equal(t, 1, evicted)
	_, err = r.Get(ctx, done.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Non-terminal tasks are never evicted, whatever their age.
	_, err = r.Get(ctx, processing.ID)
	assert.NoError(t, err)
	_, err = r.Get(ctx, queued.ID)
	assert.NoError(t, err)
}

func TestSweeper_RespectsInterval(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	r := NewRegistry(0, setupTestLogger())
	s := NewSweeper(r, testInterval, testRetention, clock.Now(), setupTestLogger())

	_, swept := s.MaybeSweep(context.Background(), clock.Now().Add(testInterval))
	require.True(t, swept)

	_, swept = s.MaybeSweep(context.Background(), clock.Now().Add(testInterval+time.Minute))
	assert.False(t, swept)

	_, swept = s.MaybeSweep(context.Background(), clock.Now().Add(2*testInterval))
	assert.True(t, swept)
}

func TestSweeper_BusyRegistrySkipsCycle(t *testing.T) {
	t.Parallel()

	clock := newTestClock()
	ctx := context.Background()
	r := NewRegistry(10*time.Millisecond, setupTestLogger())
	s := NewSweeper(r, testInterval, testRetention, clock.Now(), setupTestLogger())
	old := insertTerminal(t, r, clock.Now().Add(-2*testRetention))

	require.NoError(t, r.lock.Acquire(ctx, 1))
	evicted, swept := s.MaybeSweep(ctx, clock.Now().Add(testInterval))
	r.lock.Release(1)

	assert.False(t, swept)
	assert.Zero(t, evicted)

	// The skipped cycle is retried on the next call.
	evicted, swept = s.MaybeSweep(ctx, clock.Now().Add(testInterval+time.Second))
	assert.True(t, swept)
	assert.Equal(t, 1, evicted)
	_, err := r.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
