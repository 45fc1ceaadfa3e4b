package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/recipe-queue/internal/api/shared"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/phrazzld/recipe-queue/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes so that
// internal error types never leak to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, task.ErrInvalidRequest),
		errors.Is(err, task.ErrInvalidComplexity),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrBusy),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed),
		errors.Is(err, store.ErrArchiveDisabled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a user-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, task.ErrInvalidRequest):
		return "Recipe request cannot be empty"
	case errors.Is(err, task.ErrInvalidComplexity):
		return "Complexity must be one of easy, medium or high"
	case errors.Is(err, task.ErrNotFound):
		return "Task not found"
	case errors.Is(err, store.ErrRecipeNotFound):
		return "Recipe not found"
	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"
	case errors.Is(err, task.ErrBusy):
		return "System busy, try again later"
	case errors.Is(err, task.ErrQueueFull):
		return "Task queue is full, try again later"
	case errors.Is(err, task.ErrQueueClosed):
		return "Service is shutting down"
	case errors.Is(err, store.ErrArchiveDisabled):
		return "Recipe archive is not available"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// underlying error. A non-empty fallback replaces the generic 500 message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		msg = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// Example: "Key: 'GenerateRecipeRequest.RecipeRequest' Error:Field validation for 'RecipeRequest' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
