package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/api/shared"
	"github.com/phrazzld/recipe-queue/internal/platform/logger"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/phrazzld/recipe-queue/internal/task"
)

// ServiceName is reported by the health check.
const ServiceName = "recipe-queue"

// TaskService is the subset of task.Service the handlers use.
type TaskService interface {
	Submit(ctx context.Context, text, complexity string) (uuid.UUID, error)
	GetStatus(ctx context.Context, id uuid.UUID) (task.StatusReport, error)
	Stats(ctx context.Context) (task.Stats, error)
}

// RecipeHandler serves the generation queue and the recipe archive.
type RecipeHandler struct {
	tasks   TaskService
	recipes store.RecipeStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecipeHandler creates a RecipeHandler. A nil recipes store disables the
// archive endpoints.
func NewRecipeHandler(tasks TaskService, recipes store.RecipeStore, logger *slog.Logger) *RecipeHandler {
	if recipes == nil {
		recipes = store.NoopRecipeStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipeHandler{
		tasks:   tasks,
		recipes: recipes,
		logger:  logger.With("component", "recipe_handler"),
		now:     time.Now,
	}
}

// RegisterRoutes mounts the handler's endpoints on r.
func RegisterRoutes(r chi.Router, h *RecipeHandler) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/recipes/generate", h.GenerateRecipe)
		r.Get("/tasks/{id}", h.GetTaskStatus)
		r.Get("/recipes", h.ListRecipes)
		r.Get("/recipes/{id}", h.GetRecipe)
		r.Get("/stats", h.GetStats)
		r.Get("/health", h.Health)
	})
}

// GenerateRecipe queues a generation request and answers 202 with the task
// ID and where to poll for it.
func (h *RecipeHandler) GenerateRecipe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req GenerateRecipeRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}

	id, err := h.tasks.Submit(r.Context(), req.RecipeRequest, req.Complexity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to submit recipe request")
		return
	}

	status := task.TaskStatusQueued
	if report, err := h.tasks.GetStatus(r.Context(), id); err == nil {
		status = report.Status
	} else {
		log.Warn("status lookup after submit failed", "task_id", id, "error", err)
	}

	statusURL := "/api/tasks/" + id.String()
	w.Header().Set("Location", statusURL)
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{
		TaskID:    id,
		Status:    status,
		StatusURL: statusURL,
	})
}

// GetTaskStatus returns the status report of one task.
func (h *RecipeHandler) GetTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task ID", err)
		return
	}

	report, err := h.tasks.GetStatus(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get task status")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}

// ListRecipes lists archived recipes, newest first.
func (h *RecipeHandler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecipeFilter(r)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	recipes, err := h.recipes.List(r.Context(), filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list recipes")
		return
	}
	if recipes == nil {
		recipes = []*store.RecipeRecord{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, RecipeListResponse{Recipes: recipes, Count: len(recipes)})
}

// GetRecipe returns one archived recipe and counts the view.
func (h *RecipeHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid recipe ID", err)
		return
	}

	recipe, err := h.recipes.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get recipe")
		return
	}

	// A failed view count does not fail the read.
	if views, err := h.recipes.IncrementViews(r.Context(), id); err != nil {
		log.Warn("failed to increment recipe views", "recipe_id", id, "error", err)
	} else {
		recipe.Views = views
	}
	shared.RespondWithJSON(w, r, http.StatusOK, recipe)
}

// GetStats reports queue statistics and, when the archive is enabled,
// archive statistics.
func (h *RecipeHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	queue, err := h.tasks.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get statistics")
		return
	}

	resp := StatsResponse{Queue: queue}
	archive, err := h.recipes.Stats(r.Context())
	switch {
	case err == nil:
		resp.Archive = archive
		resp.ArchiveEnabled = true
	case errors.Is(err, store.ErrArchiveDisabled):
	default:
		HandleAPIError(w, r, err, "Failed to get statistics")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Health is a liveness check.
func (h *RecipeHandler) Health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: h.now().UTC(),
	})
}
