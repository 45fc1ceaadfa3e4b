package mocks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/generation"
	"github.com/phrazzld/recipe-queue/internal/mocks"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGenerator(t *testing.T) {
	t.Parallel()

	t.Run("Scripted replies", func(t *testing.T) {
		t.Parallel()

		mockGen := mocks.NewMockGeneratorWithReplies(
			mocks.Reply{Match: "recipe", Text: "first"},
			mocks.Reply{Match: "nutrition", Err: generation.ErrTransientFailure},
		)
		mockGen.Text = "fallback"

		ctx := context.Background()
		text, err := mockGen.Generate(ctx, "make a recipe")
		assert.NoError(t, err)
		assert.Equal(t, "first", text)

		_, err = mockGen.Generate(ctx, "nutrition please")
		assert.ErrorIs(t, err, generation.ErrTransientFailure)

		text, err = mockGen.Generate(ctx, "something else")
		assert.NoError(t, err)
		assert.Equal(t, "fallback", text)

		assert.Equal(t, 3, mockGen.CallCount())
		assert.Len(t, mockGen.PromptsContaining("nutrition"), 1)
	})

	t.Run("Error case", func(t *testing.T) {
		t.Parallel()

		mockGen := mocks.MockGeneratorThatFails()
		text, err := mockGen.Generate(context.Background(), "anything")

		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
		assert.Empty(t, text)
		assert.Equal(t, 1, mockGen.CallCount())
	})

	t.Run("Content blocked", func(t *testing.T) {
		t.Parallel()

		_, err := mocks.MockGeneratorWithContentBlocked().Generate(context.Background(), "anything")
		assert.ErrorIs(t, err, generation.ErrContentBlocked)
	})

	t.Run("Custom function", func(t *testing.T) {
		t.Parallel()

		customErr := errors.New("custom error")
		mockGen := &mocks.MockGenerator{
			GenerateFn: func(ctx context.Context, prompt string) (string, error) {
				return "", customErr
			},
		}
		_, err := mockGen.Generate(context.Background(), "prompt")
		assert.Equal(t, customErr, err)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		mockGen := &mocks.MockGenerator{Text: "unused"}
		_, err := mockGen.Generate(ctx, "prompt")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Reset", func(t *testing.T) {
		t.Parallel()

		mockGen := &mocks.MockGenerator{}
		_, _ = mockGen.Generate(context.Background(), "prompt")
		mockGen.Reset()
		assert.Equal(t, 0, mockGen.CallCount())
		assert.Empty(t, mockGen.PromptsContaining("prompt"))
	})
}

func newRecord(mealType string, score float64, tags ...string) *store.RecipeRecord {
	return &store.RecipeRecord{
		ID:           uuid.New(),
		TaskID:       uuid.New(),
		Title:        "Recipe " + mealType,
		MealType:     mealType,
		Difficulty:   "easy",
		QualityScore: score,
		Tags:         tags,
		Recipe:       []byte(`{"title":"x"}`),
		CreatedAt:    time.Now(),
	}
}

func TestMockRecipeStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := mocks.NewMockRecipeStore()

	dinner := newRecord("dinner", 8, "spicy")
	lunch := newRecord("lunch", 5)
	require.NoError(t, s.Save(ctx, dinner))
	require.NoError(t, s.Save(ctx, lunch))

	dup := newRecord("dinner", 7)
	dup.TaskID = dinner.TaskID
	assert.ErrorIs(t, s.Save(ctx, dup), store.ErrRecipeExists)

	got, err := s.Get(ctx, dinner.ID)
	require.NoError(t, err)
	assert.Equal(t, dinner.Title, got.Title)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrRecipeNotFound)

	list, err := s.List(ctx, store.RecipeFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, lunch.ID, list[0].ID, "newest first")

	list, err = s.List(ctx, store.RecipeFilter{MinQuality: 6})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, dinner.ID, list[0].ID)

	list, err = s.List(ctx, store.RecipeFilter{Tag: "SPICY"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	views, err := s.IncrementViews(ctx, dinner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, views)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRecipes)
	assert.Equal(t, 1, stats.TotalViews)
	assert.InDelta(t, 6.5, stats.AverageQuality, 0.001)
	assert.Equal(t, 1, stats.ByMealType["dinner"])
}
