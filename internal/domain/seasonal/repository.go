package seasonal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/echoapp/echo-rewards/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const eventColumns = `id, name, start_month, start_day, end_month, end_day, rules, created_at, updated_at`

// catalogLockKey is the advisory lock serializing catalog writes.
const catalogLockKey int64 = 0x45434831

// CheckFunc validates a pending write against the events stored at the time
// of the write.
type CheckFunc func(stored []Event) error

type Repository interface {
	List(ctx context.Context) ([]Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// Create and Update run check and the write under one catalog-wide lock,
	// so two admins cannot both pass the overlap check.
	Create(ctx context.Context, e *Event, check CheckFunc) error
	Update(ctx context.Context, e *Event, check CheckFunc) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// List returns every event in catalog order.
func (r *repository) List(ctx context.Context) ([]Event, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	events := make([]Event, 0)
	if err := r.db.SelectContext(ctx2, &events,
		`SELECT `+eventColumns+` FROM seasonal_events ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("%w: list seasonal events: %v", ErrInternal, err)
	}
	return events, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Event
	err := r.db.GetContext(ctx2, &e, `SELECT `+eventColumns+` FROM seasonal_events WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("%w: get seasonal event: %v", ErrInternal, err)
	}
	return &e, nil
}

func (r *repository) Create(ctx context.Context, e *Event, check CheckFunc) error {
	return r.lockedWrite(ctx, check, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO seasonal_events (`+eventColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, e.ID, e.Name, e.StartMonth, e.StartDay, e.EndMonth, e.EndDay, e.Rules, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("%w: create seasonal event: %v", ErrInternal, err)
		}
		return nil
	})
}

func (r *repository) Update(ctx context.Context, e *Event, check CheckFunc) error {
	return r.lockedWrite(ctx, check, func(ctx context.Context, tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE seasonal_events
			SET name = $2, start_month = $3, start_day = $4, end_month = $5, end_day = $6, rules = $7, updated_at = $8
			WHERE id = $1
		`, e.ID, e.Name, e.StartMonth, e.StartDay, e.EndMonth, e.EndDay, e.Rules, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("%w: update seasonal event: %v", ErrInternal, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrEventNotFound
		}
		return nil
	})
}

// lockedWrite takes the catalog lock, re-reads the stored events for check
// and applies write in the same transaction.
func (r *repository) lockedWrite(ctx context.Context, check CheckFunc, write func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx2, `SELECT pg_advisory_xact_lock($1)`, catalogLockKey); err != nil {
			return fmt.Errorf("%w: lock seasonal catalog: %v", ErrInternal, err)
		}
		if check != nil {
			stored := make([]Event, 0)
			if err := tx.SelectContext(ctx2, &stored,
				`SELECT `+eventColumns+` FROM seasonal_events ORDER BY created_at ASC, id ASC`); err != nil {
				return fmt.Errorf("%w: list seasonal events: %v", ErrInternal, err)
			}
			if err := check(stored); err != nil {
				return err
			}
		}
		return write(ctx2, tx)
	})
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `DELETE FROM seasonal_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete seasonal event: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}
