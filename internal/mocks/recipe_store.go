package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/store"
)

// MockRecipeStore implements store.RecipeStore. Methods without a function
// field set fall back to an in-memory archive.
type MockRecipeStore struct {
	SaveFn           func(ctx context.Context, r *store.RecipeRecord) error
	GetFn            func(ctx context.Context, id uuid.UUID) (*store.RecipeRecord, error)
	ListFn           func(ctx context.Context, filter store.RecipeFilter) ([]*store.RecipeRecord, error)
	IncrementViewsFn func(ctx context.Context, id uuid.UUID) (int, error)
	StatsFn          func(ctx context.Context) (*store.ArchiveStats, error)

	mu      sync.Mutex
	records []*store.RecipeRecord
}

var _ store.RecipeStore = (*MockRecipeStore)(nil)

// NewMockRecipeStore creates an empty in-memory store.
func NewMockRecipeStore() *MockRecipeStore {
	return &MockRecipeStore{}
}

// Records returns copies of everything saved so far, oldest first.
func (m *MockRecipeStore) Records() []store.RecipeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.RecipeRecord, len(m.records))
	for i, r := range m.records {
		out[i] = *r
	}
	return out
}

// Save implements store.RecipeStore.
func (m *MockRecipeStore) Save(ctx context.Context, r *store.RecipeRecord) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, r)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.TaskID == r.TaskID || existing.ID == r.ID {
			return store.ErrRecipeExists
		}
	}
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

// Get implements store.RecipeStore.
func (m *MockRecipeStore) Get(ctx context.Context, id uuid.UUID) (*store.RecipeRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, store.ErrRecipeNotFound
}

// List implements store.RecipeStore, newest first.
func (m *MockRecipeStore) List(ctx context.Context, filter store.RecipeFilter) ([]*store.RecipeRecord, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, filter)
	}
	f := filter.Normalized()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*store.RecipeRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < f.Limit; i-- {
		r := m.records[i]
		if f.MealType != "" && r.MealType != f.MealType {
			continue
		}
		if f.Difficulty != "" && r.Difficulty != f.Difficulty {
			continue
		}
		if f.Tag != "" && !slices.Contains(r.Tags, f.Tag) {
			continue
		}
		if r.QualityScore < f.MinQuality {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// IncrementViews implements store.RecipeStore.
func (m *MockRecipeStore) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	if m.IncrementViewsFn != nil {
		return m.IncrementViewsFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			r.Views++
			return r.Views, nil
		}
	}
	return 0, store.ErrRecipeNotFound
}

// Stats implements store.RecipeStore.
func (m *MockRecipeStore) Stats(ctx context.Context) (*store.ArchiveStats, error) {
	if m.StatsFn != nil {
		return m.StatsFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.ArchiveStats{
		ByMealType:   map[string]int{},
		ByDifficulty: map[string]int{},
	}
	var quality float64
	for _, r := range m.records {
		stats.TotalRecipes++
		stats.TotalViews += r.Views
		quality += r.QualityScore
		stats.ByMealType[r.MealType]++
		stats.ByDifficulty[r.Difficulty]++
	}
	if stats.TotalRecipes > 0 {
		stats.AverageQuality = quality / float64(stats.TotalRecipes)
	}
	return stats, nil
}
