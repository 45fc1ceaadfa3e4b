package main

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/recipe-queue/internal/api"
	apiMiddleware "github.com/phrazzld/recipe-queue/internal/api/middleware"
	"github.com/rs/cors"
)

// setupRouter builds the HTTP handler: chi middleware, the trace and
// request logging middleware, the API routes and CORS around everything.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)

	api.RegisterRoutes(r, api.NewRecipeHandler(app.service, app.recipes, app.logger))

	origins := app.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: !slices.Contains(origins, "*"),
	})
	return c.Handler(r)
}
