// Package testdb opens the database used by integration tests. Tests that
// call Open are skipped unless a database URL is set in the environment.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// URLEnvVars are checked in order for the test database URL.
var URLEnvVars = []string{"DATABASE_URL", "RECIPES_DATABASE_URL"}

// URL returns the first non-empty database URL from URLEnvVars.
func URL() string {
	for _, name := range URLEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ShouldSkip reports whether no test database is configured.
func ShouldSkip() bool {
	return URL() == ""
}

// Open connects to the test database and closes it when the test ends.
// The test is skipped when no database URL is configured and fails when
// the database cannot be reached.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	url := URL()
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}
	return db
}
