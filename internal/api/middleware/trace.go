// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/recipe-queue/internal/api/shared"
	"github.com/phrazzld/recipe-queue/internal/platform/logger"
)

// NewTraceMiddleware assigns each request a trace ID, stores a logger
// tagged with it in the request context and logs the request outcome.
// It should run after chi's RequestID middleware so the two IDs match.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			traceID := shared.GetTraceID(ctx)

			log := base.With(slog.String("trace_id", traceID))
			ctx = logger.WithLogger(ctx, log)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(ctx, level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}
