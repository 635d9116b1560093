package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewRepository(sqlx.NewDb(raw, "postgres")), mock
}

func TestGetSettings(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM user_reward_settings`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "timezone", "updated_at"}).
			AddRow(userID.String(), "Asia/Tokyo", time.Now()))

	s, err := repo.GetSettings(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", s.Timezone)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingsMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery(`FROM user_reward_settings`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "timezone", "updated_at"}))

	_, err := repo.GetSettings(context.Background(), userID)
	assert.ErrorIs(t, err, ErrSettingsNotFound)
}

func TestUpsertTimezoneReportsChange(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectExec(`INSERT INTO user_reward_settings`).
		WithArgs(userID, "Europe/Berlin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO user_reward_settings`).
		WithArgs(userID, "Europe/Berlin").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO user_reward_settings`).
		WithArgs(userID, "Europe/Berlin").
		WillReturnError(errors.New("connection reset"))

	changed, err := repo.UpsertTimezone(context.Background(), userID, "Europe/Berlin")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpsertTimezone(context.Background(), userID, "Europe/Berlin")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.UpsertTimezone(context.Background(), userID, "Europe/Berlin")
	assert.ErrorIs(t, err, ErrInternal)
	require.NoError(t, mock.ExpectationsWereMet())
}
