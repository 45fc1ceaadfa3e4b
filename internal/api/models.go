package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/phrazzld/recipe-queue/internal/task"
)

// GenerateRecipeRequest is the payload of POST /api/recipes/generate.
type GenerateRecipeRequest struct {
	RecipeRequest string `json:"recipe_request" validate:"required,max=500"`
	Complexity    string `json:"complexity"     validate:"omitempty,max=16"`
}

// SubmitResponse acknowledges a queued generation.
type SubmitResponse struct {
	TaskID    uuid.UUID       `json:"task_id"`
	Status    task.TaskStatus `json:"status"`
	StatusURL string          `json:"status_url"`
}

// RecipeListResponse wraps an archive listing.
type RecipeListResponse struct {
	Recipes []*store.RecipeRecord `json:"recipes"`
	Count   int                   `json:"count"`
}

// StatsResponse combines queue and archive statistics. Archive is nil when
// no database is configured.
type StatsResponse struct {
	Queue          task.Stats          `json:"queue"`
	Archive        *store.ArchiveStats `json:"archive,omitempty"`
	ArchiveEnabled bool                `json:"archive_enabled"`
}

// HealthResponse is returned by the health check.
type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
