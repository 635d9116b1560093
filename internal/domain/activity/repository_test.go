package activity

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return NewRepository(sqlx.NewDb(raw, "postgres")), mock
}

func TestIncrementReturnsNewCount(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO user_activity_counters .* RETURNING count`).
		WithArgs(userID, ActionEchoSent, at).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.Increment(context.Background(), nil, userID, ActionEchoSent, at)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementRejectsUnknownAction(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.Increment(context.Background(), nil, uuid.New(), Action("WAVE"), time.Now())
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestCounts(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT action, count FROM user_activity_counters`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"action", "count"}).
			AddRow("ECHO_SENT", 12).
			AddRow("ECHO_REPLIED", 1))

	counts, err := repo.Counts(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), counts[ActionEchoSent])
	assert.Equal(t, int64(1), counts[ActionEchoReplied])
	assert.Zero(t, counts[ActionAppOpened])
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" echo_replied ")
	require.NoError(t, err)
	assert.Equal(t, ActionEchoReplied, a)

	_, err = ParseAction("WAVE")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestProcessedLookup(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM user_processed_events`).
		WithArgs(userID, "evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	seen, err := repo.Processed(context.Background(), nil, userID, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkProcessedIgnoresDuplicates(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO user_processed_events .* ON CONFLICT \(user_id, event_id\) DO NOTHING`).
		WithArgs(userID, "evt-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessed(context.Background(), nil, userID, "evt-1", at))
	require.NoError(t, mock.ExpectationsWereMet())
}
