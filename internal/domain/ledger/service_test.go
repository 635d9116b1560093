package ledger

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	values      map[uuid.UUID]int64
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[uuid.UUID]int64{}}
}

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (int64, bool) {
	v, ok := c.values[id]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, id uuid.UUID, balance int64) {
	c.values[id] = balance
}

func (c *fakeCache) Invalidate(_ context.Context, id uuid.UUID) {
	delete(c.values, id)
	c.invalidated = append(c.invalidated, id)
}

func TestGetBalanceReadsThroughCache(t *testing.T) {
	repo, mock := newMockRepo(t)
	cache := newFakeCache()
	svc := NewService(repo, cache)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT balance FROM user_credit_balances`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(42)))

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)

	// second read is served from the cache; no further query expected
	balance, err = svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantGeneratesRelatedIDAndInvalidates(t *testing.T) {
	repo, mock := newMockRepo(t)
	cache := newFakeCache()
	svc := NewService(repo, cache)
	userID := uuid.New()
	cache.values[userID] = 1

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO credit_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))
	mock.ExpectExec(`INSERT INTO user_credit_balances`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := svc.Grant(context.Background(), userID, 25, TxTypeAdminGrant, GrantMeta{Description: "support"})
	require.NoError(t, err)
	assert.Contains(t, tx.Related(), "ADMIN_GRANT_")
	assert.Equal(t, "support", tx.Description)
	assert.Equal(t, []uuid.UUID{userID}, cache.invalidated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRejectsSpendAndNonPositive(t *testing.T) {
	repo, _ := newMockRepo(t)
	svc := NewService(repo, nil)

	_, err := svc.Grant(context.Background(), uuid.New(), 5, TxTypeSpend, GrantMeta{})
	assert.ErrorIs(t, err, ErrUnknownTxType)

	_, err = svc.Grant(context.Background(), uuid.New(), 0, TxTypeAdminGrant, GrantMeta{})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}
