package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComplexity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Complexity
		wantErr bool
	}{
		{input: "", want: ComplexityMedium},
		{input: "easy", want: ComplexityEasy},
		{input: "Medium", want: ComplexityMedium},
		{input: " HIGH ", want: ComplexityHigh},
		{input: "extreme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseComplexity(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidComplexity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComplexity_Label(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Easy", ComplexityEasy.Label())
	assert.Equal(t, "High", ComplexityHigh.Label())
	assert.Equal(t, "", Complexity("").Label())
}

func TestTaskTransitions(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("happy path", func(t *testing.T) {
		task := NewTask(Request{Text: "tacos", Complexity: ComplexityEasy}, now)
		assert.Equal(t, TaskStatusQueued, task.Status)
		assert.Equal(t, now, task.CreatedAt)
		assert.True(t, task.CompletedAt.IsZero())

		require.NoError(t, task.start(Progress{Step: "processing"}))
		require.NoError(t, task.setProgress(Progress{Step: "generating"}))
		require.NoError(t, task.complete("recipe", Progress{Step: "completed"}, now.Add(time.Minute)))

		assert.Equal(t, TaskStatusCompleted, task.Status)
		assert.Equal(t, "recipe", task.Result)
		assert.Equal(t, now.Add(time.Minute), task.CompletedAt)
	})

	t.Run("queued task may fail directly", func(t *testing.T) {
		task := NewTask(Request{Text: "x"}, now)
		require.NoError(t, task.fail("queue full", Progress{Step: "failed"}, now))
		assert.Equal(t, TaskStatusFailed, task.Status)
		assert.Equal(t, "queue full", task.Error)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		task := NewTask(Request{Text: "x"}, now)
		require.NoError(t, task.start(Progress{}))
		require.NoError(t, task.fail("boom", Progress{}, now))

		assert.ErrorIs(t, task.start(Progress{}), ErrInvalidTransition)
		assert.ErrorIs(t, task.complete(nil, Progress{}, now), ErrInvalidTransition)
		assert.ErrorIs(t, task.fail("again", Progress{}, now), ErrInvalidTransition)
		assert.ErrorIs(t, task.setProgress(Progress{}), ErrInvalidTransition)
		assert.Equal(t, "boom", task.Error)
	})

	t.Run("cannot complete a queued task", func(t *testing.T) {
		task := NewTask(Request{Text: "x"}, now)
		assert.ErrorIs(t, task.complete(nil, Progress{}, now), ErrInvalidTransition)
		assert.ErrorIs(t, task.setProgress(Progress{}), ErrInvalidTransition)
	})
}
