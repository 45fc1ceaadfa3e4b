package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/events"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/phrazzld/recipe-queue/internal/task"
)

// completedPayload is events.TaskOutcome with a typed result.
type completedPayload struct {
	TaskID      uuid.UUID        `json:"task_id"`
	Request     string           `json:"request"`
	Complexity  string           `json:"complexity"`
	Result      GenerationResult `json:"result"`
	CompletedAt time.Time        `json:"completed_at"`
}

// ArchiveHandler saves every completed recipe to a store.RecipeStore.
type ArchiveHandler struct {
	store  store.RecipeStore
	logger *slog.Logger
}

var _ events.EventHandler = (*ArchiveHandler)(nil)

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(s store.RecipeStore, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		store:  s,
		logger: logger.With("component", "recipe_archive"),
	}
}

// HandleEvent archives recipe.completed events and ignores everything else.
// Archiving the same task twice is not an error.
func (h *ArchiveHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Type != task.EventTaskCompleted {
		return nil
	}

	var payload completedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode completed task payload: %w", err)
	}

	record, err := NewRecipeRecord(payload.TaskID, payload.Request, payload.Complexity, &payload.Result, payload.CompletedAt)
	if err != nil {
		return err
	}

	switch err := h.store.Save(ctx, record); {
	case err == nil:
		h.logger.InfoContext(ctx, "recipe archived",
			"task_id", payload.TaskID,
			"recipe_id", record.ID,
			"title", record.Title)
		return nil
	case errors.Is(err, store.ErrRecipeExists):
		h.logger.DebugContext(ctx, "recipe already archived", "task_id", payload.TaskID)
		return nil
	case errors.Is(err, store.ErrArchiveDisabled):
		return nil
	default:
		return fmt.Errorf("failed to archive recipe for task %s: %w", payload.TaskID, err)
	}
}

// NewRecipeRecord builds the archive row for a generation result.
func NewRecipeRecord(
	taskID uuid.UUID,
	request, complexity string,
	result *GenerationResult,
	createdAt time.Time,
) (*store.RecipeRecord, error) {
	recipeDoc, err := json.Marshal(result.Recipe)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recipe: %w", err)
	}
	nutritionDoc, err := json.Marshal(result.Nutrition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode nutrition: %w", err)
	}
	qualityDoc, err := json.Marshal(result.Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quality: %w", err)
	}

	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tags := make([]string, 0, len(result.Recipe.Tags)+len(result.Nutrition.DietaryTags))
	seen := make(map[string]bool)
	for _, t := range append(append([]string{}, result.Recipe.Tags...), result.Nutrition.DietaryTags...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}

	record := &store.RecipeRecord{
		ID:           uuid.New(),
		TaskID:       taskID,
		Request:      request,
		Complexity:   complexity,
		Title:        result.Recipe.Title,
		Description:  result.Recipe.Description,
		CuisineType:  result.Recipe.CuisineType,
		MealType:     strings.ToLower(result.Recipe.MealType),
		Difficulty:   strings.ToLower(result.Recipe.Difficulty),
		QualityScore: result.Quality.Score,
		Tags:         tags,
		Recipe:       recipeDoc,
		Nutrition:    nutritionDoc,
		Quality:      qualityDoc,
		CreatedAt:    createdAt,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}
