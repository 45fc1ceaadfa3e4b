package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

// MigrationTableName is the table goose uses to track applied migrations.
const MigrationTableName = "schema_migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration commands accepted by Migrate.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateReset   = "reset"
	MigrateStatus  = "status"
	MigrateVersion = "version"
)

// goose keeps its configuration in package state.
var gooseMu sync.Mutex

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level without exiting; goose returns the error to
// the caller anyway.
func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger, command string) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "migrations", "command", command)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	const dir = "migrations"
	var err error
	switch command {
	case MigrateUp:
		err = goose.UpContext(ctx, db, dir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, dir)
	case MigrateReset:
		err = goose.ResetContext(ctx, db, dir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, dir)
	case MigrateVersion:
		err = goose.VersionContext(ctx, db, dir)
	default:
		return fmt.Errorf("unknown migration command: %s (expected up, down, reset, status, or version)", command)
	}
	if err != nil {
		log.Error("migration command failed", "error", err)
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	log.Info("migration command executed successfully")
	return nil
}
