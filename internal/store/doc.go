// Package store defines interfaces for data persistence operations.
// These interfaces abstract the recipe archive from the underlying
// database, allowing the HTTP layer and the archive event handler to stay
// independent of Postgres specifics.
package store
