package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresRecipeStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRecipeStore(db, slog.New(slog.NewTextHandler(io.Discard, nil))), mock
}

func testRecord() *store.RecipeRecord {
	return &store.RecipeRecord{
		ID:           uuid.New(),
		TaskID:       uuid.New(),
		Request:      "spicy chicken tacos",
		Complexity:   "easy",
		Title:        "Spicy Chicken Tacos",
		Description:  "Weeknight tacos",
		CuisineType:  "mexican",
		MealType:     "dinner",
		Difficulty:   "easy",
		QualityScore: 8.1,
		Tags:         []string{"mexican", "spicy"},
		Recipe:       []byte(`{"title":"Spicy Chicken Tacos"}`),
		Quality:      []byte(`{"score":8.1}`),
		CreatedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

var recipeRowColumns = []string{
	"id", "task_id", "request", "complexity", "title", "description",
	"cuisine_type", "meal_type", "difficulty", "quality_score",
	"recipe", "nutrition", "quality", "views", "created_at", "tags",
}

func recipeRow(rows *sqlmock.Rows, r *store.RecipeRecord, tags string) *sqlmock.Rows {
	return rows.AddRow(
		r.ID.String(), r.TaskID.String(), r.Request, r.Complexity, r.Title, r.Description,
		r.CuisineType, r.MealType, r.Difficulty, r.QualityScore,
		[]byte(r.Recipe), nil, []byte(r.Quality), r.Views, r.CreatedAt, []byte(tags),
	)
}

func TestPostgresRecipeStore_Save(t *testing.T) {
	t.Run("writes recipe and tags in a transaction", func(t *testing.T) {
		s, mock := newMockStore(t)
		rec := testRecord()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO recipes").
			WithArgs(
				rec.ID, rec.TaskID, rec.Request, rec.Complexity, rec.Title, rec.Description,
				rec.CuisineType, rec.MealType, rec.Difficulty, rec.QualityScore,
				[]byte(rec.Recipe), nil, []byte(rec.Quality), 0, rec.CreatedAt,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO recipe_tags").
			WithArgs(rec.ID, 0, "mexican").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO recipe_tags").
			WithArgs(rec.ID, 1, "spicy").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, s.Save(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate task maps to ErrRecipeExists", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO recipes").
			WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "recipes_task_id_key"})
		mock.ExpectRollback()

		err := s.Save(context.Background(), testRecord())
		assert.ErrorIs(t, err, store.ErrRecipeExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tag failure rolls back", func(t *testing.T) {
		s, mock := newMockStore(t)
		dbErr := errors.New("connection lost")

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO recipes").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO recipe_tags").WillReturnError(dbErr)
		mock.ExpectRollback()

		err := s.Save(context.Background(), testRecord())
		assert.ErrorIs(t, err, dbErr)
		var storeErr *store.StoreError
		assert.ErrorAs(t, err, &storeErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid record never reaches the database", func(t *testing.T) {
		s, mock := newMockStore(t)
		rec := testRecord()
		rec.Title = " "

		assert.ErrorIs(t, s.Save(context.Background(), rec), store.ErrInvalidEntity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRecipeStore_Get(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		s, mock := newMockStore(t)
		rec := testRecord()

		mock.ExpectQuery(`FROM recipes r WHERE r\.id = \$1`).
			WithArgs(rec.ID).
			WillReturnRows(recipeRow(sqlmock.NewRows(recipeRowColumns), rec, `["mexican", "spicy"]`))

		got, err := s.Get(context.Background(), rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.TaskID, got.TaskID)
		assert.Equal(t, rec.Title, got.Title)
		assert.Equal(t, []string{"mexican", "spicy"}, got.Tags)
		assert.JSONEq(t, string(rec.Recipe), string(got.Recipe))
		assert.Nil(t, got.Nutrition)
		assert.InDelta(t, 8.1, got.QualityScore, 0.001)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		s, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectQuery(`FROM recipes r WHERE r\.id = \$1`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := s.Get(context.Background(), id)
		assert.ErrorIs(t, err, store.ErrRecipeNotFound)
	})
}

func TestListQuery(t *testing.T) {
	query, args := listQuery(store.RecipeFilter{Limit: 5}.Normalized())
	assert.NotContains(t, query, "WHERE")
	assert.Contains(t, query, "ORDER BY r.created_at DESC, r.id LIMIT $1")
	assert.Equal(t, []any{5}, args)

	query, args = listQuery(store.RecipeFilter{
		MealType:   "Dinner",
		Difficulty: "easy",
		Tag:        "Spicy",
		MinQuality: 7,
	}.Normalized())
	assert.Contains(t, query, "r.meal_type = $1 AND r.difficulty = $2 AND EXISTS")
	assert.Contains(t, query, "t.tag = $3")
	assert.Contains(t, query, "r.quality_score >= $4")
	assert.Contains(t, query, "LIMIT $5")
	assert.Equal(t, []any{"dinner", "easy", "spicy", 7.0, store.DefaultListLimit}, args)
}

func TestPostgresRecipeStore_List(t *testing.T) {
	s, mock := newMockStore(t)
	first, second := testRecord(), testRecord()
	second.Title = "Fish Tacos"

	rows := sqlmock.NewRows(recipeRowColumns)
	recipeRow(rows, first, `["mexican"]`)
	recipeRow(rows, second, `[]`)
	mock.ExpectQuery(`FROM recipes r WHERE r\.meal_type = \$1`).
		WithArgs("dinner", 20).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), store.RecipeFilter{MealType: "DINNER"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"mexican"}, got[0].Tags)
	assert.Equal(t, "Fish Tacos", got[1].Title)
	assert.Empty(t, got[1].Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecipeStore_IncrementViews(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE recipes SET views = views \+ 1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(3))
	views, err := s.IncrementViews(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, views)

	mock.ExpectQuery(`UPDATE recipes SET views = views \+ 1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err = s.IncrementViews(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrRecipeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecipeStore_Stats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM\(views\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count", "views", "avg"}).AddRow(3, 10, 7.5))
	mock.ExpectQuery(`SELECT meal_type, COUNT\(\*\) FROM recipes GROUP BY meal_type`).
		WillReturnRows(sqlmock.NewRows([]string{"meal_type", "count"}).AddRow("dinner", 2).AddRow("lunch", 1))
	mock.ExpectQuery(`SELECT difficulty, COUNT\(\*\) FROM recipes GROUP BY difficulty`).
		WillReturnRows(sqlmock.NewRows([]string{"difficulty", "count"}).AddRow("easy", 3))

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRecipes)
	assert.Equal(t, 10, stats.TotalViews)
	assert.InDelta(t, 7.5, stats.AverageQuality, 0.001)
	assert.Equal(t, map[string]int{"dinner": 2, "lunch": 1}, stats.ByMealType)
	assert.Equal(t, map[string]int{"easy": 3}, stats.ByDifficulty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, store.ErrNotFound},
		{"unique", &pgconn.PgError{Code: uniqueViolationCode}, store.ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: foreignKeyViolationCode}, store.ErrInvalidEntity},
		{"check", &pgconn.PgError{Code: checkViolationCode}, store.ErrInvalidEntity},
		{"not null", &pgconn.PgError{Code: notNullViolationCode}, store.ErrInvalidEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, MapError(tc.err), tc.want)
		})
	}

	assert.NoError(t, MapError(nil))
	other := errors.New("boom")
	assert.Equal(t, other, MapError(other))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: uniqueViolationCode}))
	assert.False(t, IsUniqueViolation(other))
}
