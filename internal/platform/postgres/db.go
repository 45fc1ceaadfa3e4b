package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/recipe-queue/internal/config"
)

const pingTimeout = 5 * time.Second

// Open connects to the archive database, configures the pool and verifies
// the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is empty: check your configuration")
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if logger != nil {
		logger.Info("database connection established",
			"max_open_conns", cfg.MaxOpenConns,
			"max_idle_conns", cfg.MaxIdleConns)
	}
	return db, nil
}
