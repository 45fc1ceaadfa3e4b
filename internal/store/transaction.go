package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/recipe-queue/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction executes fn within a transaction, committing when fn
// returns nil and rolling back otherwise. A panic inside fn rolls back and
// is re-raised. Begin and commit failures wrap ErrTransactionFailed; an
// error from fn is returned as is.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) (err error) {
	log := logger.FromContext(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", "error", err)
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic", "error", rbErr, "panic", p)
			} else {
				log.Error("rolled back transaction after panic", "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				"rollback_error", rbErr,
				"original_error", err)
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		log.Debug("rolled back transaction due to error", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", "error", err)
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, err)
	}
	return nil
}
