package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/platform/logger"
	"github.com/phrazzld/recipe-queue/internal/store"
)

// recipeColumns lists the columns scanned by scanRecipe, tags last.
const recipeColumns = `
	r.id, r.task_id, r.request, r.complexity, r.title, r.description,
	r.cuisine_type, r.meal_type, r.difficulty, r.quality_score,
	r.recipe, r.nutrition, r.quality, r.views, r.created_at,
	COALESCE(
		(SELECT json_agg(t.tag ORDER BY t.position) FROM recipe_tags t WHERE t.recipe_id = r.id),
		'[]'
	)`

// PostgresRecipeStore implements the store.RecipeStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRecipeStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.RecipeStore = (*PostgresRecipeStore)(nil)

// NewPostgresRecipeStore creates a recipe store over db.
// If logger is nil, a default logger will be used.
func NewPostgresRecipeStore(db *sql.DB, logger *slog.Logger) *PostgresRecipeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRecipeStore{
		db:     db,
		logger: logger.With(slog.String("component", "recipe_store")),
	}
}

// Save implements store.RecipeStore.Save. The recipe row and its tags are
// written in one transaction.
func (s *PostgresRecipeStore) Save(ctx context.Context, r *store.RecipeRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := r.Validate(); err != nil {
		log.Warn("recipe validation failed during save",
			slog.String("error", err.Error()),
			slog.String("task_id", r.TaskID.String()))
		return err
	}

	err := store.RunInTransaction(logger.WithLogger(ctx, log), s.db, func(ctx context.Context, tx *sql.Tx) error {
		return insertRecipe(ctx, tx, r)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("recipe already archived", slog.String("task_id", r.TaskID.String()))
			return fmt.Errorf("%w: task %s", store.ErrRecipeExists, r.TaskID)
		}
		log.Error("failed to save recipe",
			slog.String("error", err.Error()),
			slog.String("recipe_id", r.ID.String()),
			slog.String("task_id", r.TaskID.String()))
		return store.NewStoreError("recipe", "save", "failed to save recipe", MapError(err))
	}

	log.Info("recipe archived",
		slog.String("recipe_id", r.ID.String()),
		slog.String("task_id", r.TaskID.String()),
		slog.Int("tag_count", len(r.Tags)))
	return nil
}

// insertRecipe writes the recipe row followed by one row per tag.
func insertRecipe(ctx context.Context, q store.DBTX, r *store.RecipeRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO recipes (
			id, task_id, request, complexity, title, description,
			cuisine_type, meal_type, difficulty, quality_score,
			recipe, nutrition, quality, views, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.TaskID, r.Request, r.Complexity, r.Title, r.Description,
		r.CuisineType, r.MealType, r.Difficulty, r.QualityScore,
		[]byte(r.Recipe), nullableJSON(r.Nutrition), nullableJSON(r.Quality), r.Views, r.CreatedAt,
	)
	if err != nil {
		return err
	}

	for i, tag := range r.Tags {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO recipe_tags (recipe_id, position, tag) VALUES ($1, $2, $3)`,
			r.ID, i, tag,
		); err != nil {
			return err
		}
	}
	return nil
}

// Get implements store.RecipeStore.Get.
func (s *PostgresRecipeStore) Get(ctx context.Context, id uuid.UUID) (*store.RecipeRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+recipeColumns+` FROM recipes r WHERE r.id = $1`, id)
	rec, err := scanRecipe(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("recipe not found", slog.String("recipe_id", id.String()))
			return nil, store.ErrRecipeNotFound
		}
		log.Error("failed to get recipe",
			slog.String("error", err.Error()),
			slog.String("recipe_id", id.String()))
		return nil, store.NewStoreError("recipe", "get", "failed to get recipe", MapError(err))
	}
	return rec, nil
}

// List implements store.RecipeStore.List, newest first.
func (s *PostgresRecipeStore) List(ctx context.Context, filter store.RecipeFilter) ([]*store.RecipeRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	query, args := listQuery(filter.Normalized())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list recipes", slog.String("error", err.Error()))
		return nil, store.NewStoreError("recipe", "list", "failed to list recipes", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	recipes := []*store.RecipeRecord{}
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			log.Error("failed to scan recipe row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("recipe", "list", "failed to scan recipe", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating recipe rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("recipe", "list", "failed to read recipes", MapError(err))
	}

	log.Debug("listed recipes", slog.Int("count", len(recipes)))
	return recipes, nil
}

// listQuery builds the filtered listing query and its arguments.
func listQuery(f store.RecipeFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.MealType != "" {
		add("r.meal_type = $%d", f.MealType)
	}
	if f.Difficulty != "" {
		add("r.difficulty = $%d", f.Difficulty)
	}
	if f.Tag != "" {
		add("EXISTS (SELECT 1 FROM recipe_tags t WHERE t.recipe_id = r.id AND t.tag = $%d)", f.Tag)
	}
	if f.MinQuality > 0 {
		add("r.quality_score >= $%d", f.MinQuality)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(recipeColumns)
	b.WriteString(" FROM recipes r")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	args = append(args, f.Limit)
	fmt.Fprintf(&b, " ORDER BY r.created_at DESC, r.id LIMIT $%d", len(args))
	return b.String(), args
}

// IncrementViews implements store.RecipeStore.IncrementViews.
func (s *PostgresRecipeStore) IncrementViews(ctx context.Context, id uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var views int
	err := s.db.QueryRowContext(ctx,
		`UPDATE recipes SET views = views + 1 WHERE id = $1 RETURNING views`, id,
	).Scan(&views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrRecipeNotFound
		}
		log.Error("failed to increment recipe views",
			slog.String("error", err.Error()),
			slog.String("recipe_id", id.String()))
		return 0, store.NewStoreError("recipe", "increment_views", "failed to update views", MapError(err))
	}
	return views, nil
}

// Stats implements store.RecipeStore.Stats.
func (s *PostgresRecipeStore) Stats(ctx context.Context) (*store.ArchiveStats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	stats := &store.ArchiveStats{
		ByMealType:   map[string]int{},
		ByDifficulty: map[string]int{},
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(views), 0), COALESCE(AVG(quality_score), 0)
		FROM recipes`,
	).Scan(&stats.TotalRecipes, &stats.TotalViews, &stats.AverageQuality)
	if err != nil {
		log.Error("failed to aggregate recipes", slog.String("error", err.Error()))
		return nil, store.NewStoreError("recipe", "stats", "failed to aggregate recipes", MapError(err))
	}

	if err := s.countBy(ctx, "meal_type", stats.ByMealType); err != nil {
		log.Error("failed to count recipes by meal type", slog.String("error", err.Error()))
		return nil, store.NewStoreError("recipe", "stats", "failed to count by meal type", MapError(err))
	}
	if err := s.countBy(ctx, "difficulty", stats.ByDifficulty); err != nil {
		log.Error("failed to count recipes by difficulty", slog.String("error", err.Error()))
		return nil, store.NewStoreError("recipe", "stats", "failed to count by difficulty", MapError(err))
	}
	return stats, nil
}

// countBy groups recipes by column, which must be a trusted identifier.
func (s *PostgresRecipeStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, COUNT(*) FROM recipes GROUP BY %s`, column, column))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (*store.RecipeRecord, error) {
	var (
		rec       store.RecipeRecord
		recipe    []byte
		nutrition []byte
		quality   []byte
		tags      []byte
	)
	err := row.Scan(
		&rec.ID, &rec.TaskID, &rec.Request, &rec.Complexity, &rec.Title, &rec.Description,
		&rec.CuisineType, &rec.MealType, &rec.Difficulty, &rec.QualityScore,
		&recipe, &nutrition, &quality, &rec.Views, &rec.CreatedAt,
		&tags,
	)
	if err != nil {
		return nil, err
	}

	rec.Recipe = recipe
	rec.Nutrition = nutrition
	rec.Quality = quality
	rec.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &rec.Tags); err != nil {
			return nil, fmt.Errorf("failed to decode tags: %w", err)
		}
	}
	return &rec, nil
}

// nullableJSON stores empty documents as NULL.
func nullableJSON(doc json.RawMessage) any {
	if len(doc) == 0 {
		return nil
	}
	return []byte(doc)
}
