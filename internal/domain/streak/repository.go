package streak

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const stateColumns = `user_id,
	presence_count, presence_cycle, presence_last_active,
	kindness_count, kindness_cycle, kindness_last_active,
	response_count, response_cycle, response_last_active,
	grace_period_used_at, created_at, updated_at`

// Store persists StreakState rows.
type Store interface {
	// LockForUpdate creates the row if missing and locks it for the caller's transaction.
	LockForUpdate(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (*State, error)
	Save(ctx context.Context, q sqlx.ExtContext, state *State) error
	Get(ctx context.Context, userID uuid.UUID) (*State, error)
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) LockForUpdate(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (*State, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO user_streaks (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, fmt.Errorf("%w: ensure streak row: %v", ErrInternal, err)
	}

	var row stateRow
	if err := sqlx.GetContext(ctx, q, &row,
		`SELECT `+stateColumns+` FROM user_streaks WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return nil, fmt.Errorf("%w: lock streak row: %v", ErrInternal, err)
	}
	return row.toState(), nil
}

func (r *Repository) Save(ctx context.Context, q sqlx.ExtContext, s *State) error {
	if q == nil {
		q = r.db
	}
	_, err := q.ExecContext(ctx, `
		UPDATE user_streaks SET
			presence_count = $2, presence_cycle = $3, presence_last_active = $4,
			kindness_count = $5, kindness_cycle = $6, kindness_last_active = $7,
			response_count = $8, response_cycle = $9, response_last_active = $10,
			grace_period_used_at = $11,
			updated_at = now()
		WHERE user_id = $1
	`, s.UserID,
		s.Presence.Count, s.Presence.Cycle, s.Presence.LastActiveDate,
		s.Kindness.Count, s.Kindness.Cycle, s.Kindness.LastActiveDate,
		s.Response.Count, s.Response.Cycle, s.Response.LastActiveDate,
		s.GracePeriodUsedAt)
	if err != nil {
		return fmt.Errorf("%w: save streak: %v", ErrInternal, err)
	}
	return nil
}

// Get reads without locking. A user with no row gets an empty state.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (*State, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row stateRow
	err := r.db.GetContext(ctx2, &row, `SELECT `+stateColumns+` FROM user_streaks WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewState(userID), nil
		}
		return nil, fmt.Errorf("%w: get streak: %v", ErrInternal, err)
	}
	return row.toState(), nil
}
