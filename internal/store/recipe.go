package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Archive listing limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// RecipeRecord is one archived generation result. The recipe, nutrition
// and quality documents are stored as opaque JSON; the scalar columns are
// copies used for filtering and listing.
type RecipeRecord struct {
	ID           uuid.UUID       `json:"id"`
	TaskID       uuid.UUID       `json:"task_id"`
	Request      string          `json:"request"`
	Complexity   string          `json:"complexity"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	CuisineType  string          `json:"cuisine_type"`
	MealType     string          `json:"meal_type"`
	Difficulty   string          `json:"difficulty"`
	QualityScore float64         `json:"quality_score"`
	Tags         []string        `json:"tags"`
	Recipe       json.RawMessage `json:"recipe"`
	Nutrition    json.RawMessage `json:"nutrition,omitempty"`
	Quality      json.RawMessage `json:"quality,omitempty"`
	Views        int             `json:"views"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Validate checks the fields the database requires.
func (r *RecipeRecord) Validate() error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidEntity)
	}
	if r.TaskID == uuid.Nil {
		return fmt.Errorf("%w: task id is required", ErrInvalidEntity)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntity)
	}
	if len(r.Recipe) == 0 || !json.Valid(r.Recipe) {
		return fmt.Errorf("%w: recipe must be a JSON document", ErrInvalidEntity)
	}
	if r.QualityScore < 0 || r.QualityScore > 10 {
		return fmt.Errorf("%w: quality score %.2f outside 0-10", ErrInvalidEntity, r.QualityScore)
	}
	return nil
}

// RecipeFilter narrows an archive listing. Zero values mean "any".
type RecipeFilter struct {
	Limit      int
	MealType   string
	Difficulty string
	Tag        string
	MinQuality float64
}

// Normalized clamps the limit into [1, MaxListLimit] and lower-cases the
// string filters.
func (f RecipeFilter) Normalized() RecipeFilter {
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	f.MealType = strings.ToLower(strings.TrimSpace(f.MealType))
	f.Difficulty = strings.ToLower(strings.TrimSpace(f.Difficulty))
	f.Tag = strings.ToLower(strings.TrimSpace(f.Tag))
	if f.MinQuality < 0 {
		f.MinQuality = 0
	}
	return f
}

// ArchiveStats summarizes the archive.
type ArchiveStats struct {
	TotalRecipes   int            `json:"total_recipes"`
	TotalViews     int            `json:"total_views"`
	AverageQuality float64        `json:"average_quality"`
	ByMealType     map[string]int `json:"by_meal_type"`
	ByDifficulty   map[string]int `json:"by_difficulty"`
}

// RecipeStore defines the interface for recipe archive persistence.
type RecipeStore interface {
	// Save archives a recipe. Returns ErrRecipeExists if the task was
	// already archived and ErrInvalidEntity if validation fails.
	Save(ctx context.Context, r *RecipeRecord) error

	// Get retrieves a recipe by its ID.
	// Returns ErrRecipeNotFound if the recipe does not exist.
	Get(ctx context.Context, id uuid.UUID) (*RecipeRecord, error)

	// List returns the newest recipes matching filter.
	List(ctx context.Context, filter RecipeFilter) ([]*RecipeRecord, error)

	// IncrementViews bumps the view counter and returns the new value.
	// Returns ErrRecipeNotFound if the recipe does not exist.
	IncrementViews(ctx context.Context, id uuid.UUID) (int, error)

	// Stats aggregates the whole archive.
	Stats(ctx context.Context) (*ArchiveStats, error)
}

// NoopRecipeStore stands in when the archive is disabled.
type NoopRecipeStore struct{}

var _ RecipeStore = NoopRecipeStore{}

func (NoopRecipeStore) Save(context.Context, *RecipeRecord) error { return ErrArchiveDisabled }

func (NoopRecipeStore) Get(context.Context, uuid.UUID) (*RecipeRecord, error) {
	return nil, ErrArchiveDisabled
}

func (NoopRecipeStore) List(context.Context, RecipeFilter) ([]*RecipeRecord, error) {
	return nil, ErrArchiveDisabled
}

func (NoopRecipeStore) IncrementViews(context.Context, uuid.UUID) (int, error) {
	return 0, ErrArchiveDisabled
}

func (NoopRecipeStore) Stats(context.Context) (*ArchiveStats, error) { return nil, ErrArchiveDisabled }
