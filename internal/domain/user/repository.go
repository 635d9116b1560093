package user

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

// Repository defines settings data access
type Repository interface {
	GetSettings(ctx context.Context, userID uuid.UUID) (*Settings, error)
	// UpsertTimezone stores tz and reports whether the stored value changed.
	UpsertTimezone(ctx context.Context, userID uuid.UUID, tz string) (bool, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetSettings(ctx context.Context, userID uuid.UUID) (*Settings, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Settings
	err := r.db.GetContext(ctx2, &s, `
		SELECT user_id, timezone, updated_at
		FROM user_reward_settings
		WHERE user_id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("%w: get settings: %v", ErrInternal, err)
	}
	return &s, nil
}

func (r *repository) UpsertTimezone(ctx context.Context, userID uuid.UUID, tz string) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx2, `
		INSERT INTO user_reward_settings (user_id, timezone, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET timezone = EXCLUDED.timezone, updated_at = now()
		WHERE user_reward_settings.timezone <> EXCLUDED.timezone
	`, userID, tz)
	if err != nil {
		return false, fmt.Errorf("%w: upsert timezone: %v", ErrInternal, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
