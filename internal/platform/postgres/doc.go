// Package postgres provides the PostgreSQL implementation of the recipe
// archive defined in the internal/store package, together with the goose
// migrations that create its schema. Connections are opened through the
// pgx database/sql driver.
package postgres
