package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transactor runs work inside a database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q sqlx.ExtContext) error) error
}

// PostgresTransactor opens read-committed transactions on a pool.
type PostgresTransactor struct {
	db *sqlx.DB
}

func NewTransactor(db *sqlx.DB) *PostgresTransactor {
	return &PostgresTransactor{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (t *PostgresTransactor) InTx(ctx context.Context, fn func(ctx context.Context, q sqlx.ExtContext) error) error {
	return WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(ctx, tx)
	})
}

// WithTx is the plain helper behind PostgresTransactor.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
