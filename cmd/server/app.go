package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/recipe-queue/internal/config"
	"github.com/phrazzld/recipe-queue/internal/events"
	"github.com/phrazzld/recipe-queue/internal/generation"
	"github.com/phrazzld/recipe-queue/internal/platform/gemini"
	"github.com/phrazzld/recipe-queue/internal/platform/logger"
	"github.com/phrazzld/recipe-queue/internal/platform/postgres"
	"github.com/phrazzld/recipe-queue/internal/recipe"
	"github.com/phrazzld/recipe-queue/internal/store"
	"github.com/phrazzld/recipe-queue/internal/task"
)

// application holds the long-lived dependencies shared by the commands.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	db      *sql.DB
	recipes store.RecipeStore
	service *task.Service
}

// bootstrap loads configuration, sets up logging, connects the archive
// when one is configured and builds the generation service.
func bootstrap(ctx context.Context, configPath string) (*application, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"archive_enabled", cfg.Database.URL != "",
		"max_concurrent", cfg.Queue.MaxConcurrent)

	var db *sql.DB
	var recipes store.RecipeStore = store.NoopRecipeStore{}
	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, log, postgres.MigrateUp); err != nil {
			_ = db.Close()
			return nil, err
		}
		recipes = postgres.NewPostgresRecipeStore(db, log)
	}

	generator, err := gemini.NewGenerator(ctx, log.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}

	app, err := newApplication(cfg, log, generator, recipes)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	app.db = db
	return app, nil
}

// newApplication wires the pipeline, the archive handler and the task
// service around an already constructed generator and store.
func newApplication(
	cfg *config.Config,
	log *slog.Logger,
	generator generation.Generator,
	recipes store.RecipeStore,
) (*application, error) {
	pipeline, err := recipe.NewPipeline(generator, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe pipeline: %w", err)
	}

	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(recipe.NewArchiveHandler(recipes, log))

	service, err := task.NewService(pipeline, serviceConfig(cfg.Queue), log, task.WithEmitter(emitter))
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	return &application{
		config:  cfg,
		logger:  log,
		recipes: recipes,
		service: service,
	}, nil
}

func serviceConfig(q config.QueueConfig) task.ServiceConfig {
	cfg := task.DefaultServiceConfig()
	cfg.Runner.MaxConcurrent = q.MaxConcurrent
	cfg.Runner.PollInterval = q.PollInterval()
	cfg.Runner.BackoffInterval = q.Backoff()
	cfg.QueueSize = q.QueueSize
	cfg.EnqueueWait = q.EnqueueWait()
	cfg.LockTimeout = q.LockTimeout()
	cfg.CleanupInterval = q.CleanupInterval()
	cfg.RetentionWindow = q.Retention()
	cfg.ShutdownTimeout = q.ShutdownTimeout()
	return cfg
}

// close stops the task service and releases the database.
func (app *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Queue.ShutdownTimeout())
	defer cancel()
	if err := app.service.Shutdown(ctx); err != nil {
		app.logger.Warn("task service shutdown incomplete", "error", err)
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}
