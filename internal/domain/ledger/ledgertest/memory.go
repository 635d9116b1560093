// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/echoapp/echo-rewards/internal/domain/ledger"
)

// Memory mirrors the Postgres ledger's idempotency and window semantics.
// The q argument is ignored.
type Memory struct {
	mu   sync.Mutex
	rows []ledger.CreditTransaction

	// FailNext makes the next n Append calls fail with ledger.ErrInternal.
	FailNext int
}

var _ ledger.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, _ sqlx.ExtContext, tx *ledger.CreditTransaction) (uuid.UUID, error) {
	if err := tx.Normalize(); err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailNext > 0 {
		m.FailNext--
		return uuid.Nil, ledger.ErrInternal
	}

	if tx.Intent == ledger.IntentReward {
		for _, row := range m.rows {
			if row.UserID == tx.UserID && row.Intent == ledger.IntentReward && row.Related() == tx.Related() {
				return uuid.Nil, ledger.ErrDuplicateIdempotencyKey
			}
		}
	}

	m.rows = append(m.rows, *tx)
	return tx.ID, nil
}

func (m *Memory) QueryWindow(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, txType ledger.TxType, start, end time.Time) ([]ledger.CreditTransaction, error) {
	return m.filter(func(row ledger.CreditTransaction) bool {
		return row.UserID == userID && row.Type == txType &&
			!row.CreatedAt.Before(start) && row.CreatedAt.Before(end)
	}), nil
}

func (m *Memory) QueryByRelatedPrefix(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, prefix string) ([]ledger.CreditTransaction, error) {
	return m.filter(func(row ledger.CreditTransaction) bool {
		return row.UserID == userID && row.RelatedID != nil && strings.HasPrefix(*row.RelatedID, prefix)
	}), nil
}

func (m *Memory) RelatedExists(_ context.Context, _ sqlx.ExtContext, userID uuid.UUID, relatedIDs []string) (map[string]bool, error) {
	want := make(map[string]bool, len(relatedIDs))
	for _, id := range relatedIDs {
		want[id] = true
	}

	found := make(map[string]bool, len(relatedIDs))
	for _, row := range m.filter(func(row ledger.CreditTransaction) bool { return row.UserID == userID }) {
		if rel := row.Related(); want[rel] {
			found[rel] = true
		}
	}
	return found, nil
}

// Balance is the sum of the user's rows.
func (m *Memory) Balance(userID uuid.UUID) int64 {
	var sum int64
	for _, row := range m.filter(func(row ledger.CreditTransaction) bool { return row.UserID == userID }) {
		sum += row.Amount
	}
	return sum
}

// Rows returns the user's rows of txType, or every type when txType is empty.
func (m *Memory) Rows(userID uuid.UUID, txType ledger.TxType) []ledger.CreditTransaction {
	return m.filter(func(row ledger.CreditTransaction) bool {
		return row.UserID == userID && (txType == "" || row.Type == txType)
	})
}

func (m *Memory) filter(keep func(ledger.CreditTransaction) bool) []ledger.CreditTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ledger.CreditTransaction, 0)
	for _, row := range m.rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
