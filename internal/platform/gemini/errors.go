package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phrazzld/recipe-queue/internal/generation"
	"google.golang.org/genai"
)

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when Generate is called without a prompt.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrNilLogger is returned by NewGenerator when no logger is supplied.
	ErrNilLogger = errors.New("logger cannot be nil")
)

// classifyAPIError maps a client error onto the generation sentinels and
// reports whether another attempt could succeed.
func classifyAPIError(err error) (bool, error) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return true, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests, apiErr.Code >= http.StatusInternalServerError:
		return true, fmt.Errorf("%w: %d %s", generation.ErrTransientFailure, apiErr.Code, apiErr.Message)
	case apiErr.Code == http.StatusBadRequest,
		apiErr.Code == http.StatusUnauthorized,
		apiErr.Code == http.StatusForbidden,
		apiErr.Code == http.StatusNotFound:
		return false, fmt.Errorf("%w: %d %s", generation.ErrGenerationFailed, apiErr.Code, apiErr.Message)
	default:
		return true, fmt.Errorf("%w: %d %s", generation.ErrTransientFailure, apiErr.Code, apiErr.Message)
	}
}
