package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Store keeps lifetime action counters per user.
type Store interface {
	// Increment bumps the counter inside the caller's transaction and returns the new value.
	Increment(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, action Action, at time.Time) (int64, error)
	Counts(ctx context.Context, userID uuid.UUID) (map[Action]int64, error)
	// Processed reports whether the event id was already handled for the user.
	Processed(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, eventID string) (bool, error)
	// MarkProcessed records the event id inside the caller's transaction.
	MarkProcessed(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, eventID string, at time.Time) error
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Increment(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, action Action, at time.Time) (int64, error) {
	if !action.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if q == nil {
		q = r.db
	}

	var count int64
	err := sqlx.GetContext(ctx, q, &count, `
		INSERT INTO user_activity_counters (user_id, action, count, first_at, last_at)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (user_id, action) DO UPDATE
		SET count = user_activity_counters.count + 1,
		    last_at = GREATEST(user_activity_counters.last_at, EXCLUDED.last_at)
		RETURNING count
	`, userID, action, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: increment %s: %v", ErrInternal, action, err)
	}
	return count, nil
}

func (r *Repository) Counts(ctx context.Context, userID uuid.UUID) (map[Action]int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		Action Action `db:"action"`
		Count  int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx2, &rows,
		`SELECT action, count FROM user_activity_counters WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("%w: activity counts: %v", ErrInternal, err)
	}

	out := make(map[Action]int64, len(rows))
	for _, row := range rows {
		out[row.Action] = row.Count
	}
	return out, nil
}

func (r *Repository) Processed(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, eventID string) (bool, error) {
	if q == nil {
		q = r.db
	}

	var seen bool
	err := sqlx.GetContext(ctx, q, &seen,
		`SELECT EXISTS (SELECT 1 FROM user_processed_events WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID)
	if err != nil {
		return false, fmt.Errorf("%w: processed lookup: %v", ErrInternal, err)
	}
	return seen, nil
}

func (r *Repository) MarkProcessed(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, eventID string, at time.Time) error {
	if q == nil {
		q = r.db
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO user_processed_events (user_id, event_id, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, event_id) DO NOTHING
	`, userID, eventID, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: mark processed: %v", ErrInternal, err)
	}
	return nil
}
