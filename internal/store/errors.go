package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a second archive row for the same task).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrArchiveDisabled is returned by every method of the no-op store used
	// when no database is configured.
	ErrArchiveDisabled = errors.New("recipe archive is not configured")

	// ErrRecipeNotFound indicates that the requested recipe does not exist in the archive.
	ErrRecipeNotFound = fmt.Errorf("%w: recipe", ErrNotFound)

	// ErrRecipeExists indicates that the task's recipe has already been archived.
	ErrRecipeExists = fmt.Errorf("%w: recipe", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "recipe")
	Operation string // The operation that failed (e.g., "save", "list")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
