package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/recipe-queue/internal/platform/logger"
	"github.com/phrazzld/recipe-queue/internal/redact"
)

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response carrying the request's
// trace ID.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithErrorAndLog(w, r, status, message, nil)
}

// RespondWithErrorAndLog writes a sanitized error response and logs the
// detailed error after redaction. 5xx responses log at ERROR, 429 and 503
// at WARN, everything else at DEBUG.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, userMessage string, err error) {
	traceID := GetTraceID(r.Context())

	attrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	level := slog.LevelDebug
	switch {
	case status == http.StatusServiceUnavailable, status == http.StatusTooManyRequests:
		level = slog.LevelWarn
	case status >= http.StatusInternalServerError:
		level = slog.LevelError
	}
	logger.FromContext(r.Context()).LogAttrs(r.Context(), level, "API error response", attrs...)

	RespondWithJSON(w, r, status, ErrorResponse{Error: userMessage, TraceID: traceID})
}
