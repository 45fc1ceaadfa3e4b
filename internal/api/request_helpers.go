package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/recipe-queue/internal/store"
)

var errInvalidParam = errors.New("invalid parameter")

// getPathUUID extracts and parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", errInvalidParam, paramName)
	}
	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", errInvalidParam, paramName)
	}
	return id, nil
}

// parseRecipeFilter reads the archive listing query parameters. Numeric
// parameters that do not parse are rejected rather than ignored.
func parseRecipeFilter(r *http.Request) (store.RecipeFilter, error) {
	q := r.URL.Query()
	filter := store.RecipeFilter{
		MealType:   q.Get("meal_type"),
		Difficulty: q.Get("difficulty"),
		Tag:        q.Get("tag"),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return store.RecipeFilter{}, fmt.Errorf("%w: limit must be an integer", errInvalidParam)
		}
		filter.Limit = limit
	}
	if v := q.Get("min_quality"); v != "" {
		minQuality, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return store.RecipeFilter{}, fmt.Errorf("%w: min_quality must be a number", errInvalidParam)
		}
		filter.MinQuality = minQuality
	}
	return filter.Normalized(), nil
}
