package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/echoapp/echo-rewards/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const txColumns = `id, user_id, amount, tx_type, visibility, intent, related_id, description, metadata, created_at`

// Store is the ledger surface the reward engine writes and reads through.
// A nil q runs against the pool; pass a transaction to join the caller's unit of work.
type Store interface {
	Append(ctx context.Context, q sqlx.ExtContext, tx *CreditTransaction) (uuid.UUID, error)
	QueryWindow(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, txType TxType, start, end time.Time) ([]CreditTransaction, error)
	QueryByRelatedPrefix(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, prefix string) ([]CreditTransaction, error)
	RelatedExists(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, relatedIDs []string) (map[string]bool, error)
}

// Repository is the Postgres ledger.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) exec(q sqlx.ExtContext) sqlx.ExtContext {
	if q == nil {
		return r.db
	}
	return q
}

// Append inserts tx and moves the denormalized balance in the same
// transaction. Reward rows are inserted with ON CONFLICT DO NOTHING so a
// duplicate surfaces as ErrDuplicateIdempotencyKey without aborting the
// caller's transaction.
func (r *Repository) Append(ctx context.Context, q sqlx.ExtContext, tx *CreditTransaction) (uuid.UUID, error) {
	if err := tx.Normalize(); err != nil {
		return uuid.Nil, err
	}

	if q == nil {
		var id uuid.UUID
		err := database.WithTx(ctx, r.db, func(sqlTx *sqlx.Tx) error {
			var err error
			id, err = r.append(ctx, sqlTx, tx)
			return err
		})
		return id, err
	}
	return r.append(ctx, q, tx)
}

func (r *Repository) append(ctx context.Context, q sqlx.ExtContext, tx *CreditTransaction) (uuid.UUID, error) {
	query := `
		INSERT INTO credit_transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if tx.Intent == IntentReward {
		query = `
		INSERT INTO credit_transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, related_id) WHERE intent = 'REWARD' AND related_id IS NOT NULL DO NOTHING
		RETURNING id`
	}

	var id uuid.UUID
	err := sqlx.GetContext(ctx, q, &id, query,
		tx.ID, tx.UserID, tx.Amount, string(tx.Type), string(tx.Visibility), string(tx.Intent),
		tx.RelatedID, tx.Description, tx.Metadata, tx.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrDuplicateIdempotencyKey
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return uuid.Nil, ErrDuplicateIdempotencyKey
		}
		return uuid.Nil, fmt.Errorf("%w: insert transaction: %v", ErrInternal, err)
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO user_credit_balances (user_id, balance, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET balance = user_credit_balances.balance + EXCLUDED.balance, updated_at = now()
	`, tx.UserID, tx.Amount); err != nil {
		return uuid.Nil, fmt.Errorf("%w: update balance: %v", ErrInternal, err)
	}

	return id, nil
}

// Balance reads the denormalized balance row.
func (r *Repository) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var balance int64
	err := r.db.GetContext(ctx2, &balance, `SELECT balance FROM user_credit_balances WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get balance", ErrInternal)
	}
	return balance, nil
}

// LedgerSum is the authoritative balance.
func (r *Repository) LedgerSum(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (int64, error) {
	var sum int64
	err := sqlx.GetContext(ctx, r.exec(q), &sum,
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: ledger sum", ErrInternal)
	}
	return sum, nil
}

// QueryWindow returns rows of txType created in [start, end).
func (r *Repository) QueryWindow(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, txType TxType, start, end time.Time) ([]CreditTransaction, error) {
	rows := make([]CreditTransaction, 0)
	err := sqlx.SelectContext(ctx, r.exec(q), &rows, `
		SELECT `+txColumns+`
		FROM credit_transactions
		WHERE user_id = $1 AND tx_type = $2 AND created_at >= $3 AND created_at < $4
		ORDER BY created_at ASC
	`, userID, string(txType), start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: query window", ErrInternal)
	}
	return rows, nil
}

// QueryByRelatedPrefix returns rows whose related id starts with prefix.
func (r *Repository) QueryByRelatedPrefix(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, prefix string) ([]CreditTransaction, error) {
	rows := make([]CreditTransaction, 0)
	err := sqlx.SelectContext(ctx, r.exec(q), &rows, `
		SELECT `+txColumns+`
		FROM credit_transactions
		WHERE user_id = $1 AND related_id LIKE $2 ESCAPE '\'
		ORDER BY created_at ASC
	`, userID, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: query by related prefix", ErrInternal)
	}
	return rows, nil
}

// RelatedExists reports which of relatedIDs already have a row for the user.
func (r *Repository) RelatedExists(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, relatedIDs []string) (map[string]bool, error) {
	found := make(map[string]bool, len(relatedIDs))
	if len(relatedIDs) == 0 {
		return found, nil
	}

	var existing []string
	err := sqlx.SelectContext(ctx, r.exec(q), &existing, `
		SELECT related_id
		FROM credit_transactions
		WHERE user_id = $1 AND related_id = ANY($2)
	`, userID, pq.Array(relatedIDs))
	if err != nil {
		return nil, fmt.Errorf("%w: related exists", ErrInternal)
	}
	for _, id := range existing {
		found[id] = true
	}
	return found, nil
}

// History returns one page of a user's transactions and the total count.
func (r *Repository) History(ctx context.Context, userID uuid.UUID, filter HistoryFilter) (*HistoryPage, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	page, pageSize := normalizePage(filter.Page, filter.PageSize)

	where := ` WHERE user_id = $1`
	args := make([]interface{}, 0, 8)
	args = append(args, userID)
	idx := 2

	if filter.VisibleOnly {
		where += fmt.Sprintf(" AND visibility = $%d", idx)
		args = append(args, string(VisibilityVisible))
		idx++
	}
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			types = append(types, string(t))
		}
		where += fmt.Sprintf(" AND tx_type = ANY($%d)", idx)
		args = append(args, pq.Array(types))
		idx++
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		where += fmt.Sprintf(" AND (description ILIKE $%d ESCAPE '\\' OR related_id ILIKE $%d ESCAPE '\\')", idx, idx)
		args = append(args, "%"+escapeLike(q)+"%")
		idx++
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND created_at < $%d", idx)
		args = append(args, *filter.To)
		idx++
	}

	var total int
	if err := r.db.GetContext(ctx2, &total, `SELECT COUNT(*) FROM credit_transactions`+where, args...); err != nil {
		return nil, fmt.Errorf("%w: count history", ErrInternal)
	}

	query := `SELECT ` + txColumns + ` FROM credit_transactions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, pageSize, (page-1)*pageSize)

	items := make([]CreditTransaction, 0)
	if err := r.db.SelectContext(ctx2, &items, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list history", ErrInternal)
	}

	return &HistoryPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Spend debits amount under a row lock on the balance. A replay with the same
// related id and amount is a no-op.
func (r *Repository) Spend(ctx context.Context, userID uuid.UUID, amount int64, relatedID, description string) error {
	if amount <= 0 || relatedID == "" {
		return ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		balance, err := r.lockBalance(ctx2, tx, userID)
		if err != nil {
			return err
		}

		var existing int64
		err = tx.GetContext(ctx2, &existing, `
			SELECT amount
			FROM credit_transactions
			WHERE user_id = $1 AND tx_type = $2 AND related_id = $3
			LIMIT 1
		`, userID, string(TxTypeSpend), relatedID)
		switch {
		case err == nil:
			if existing != -amount {
				return ErrReferenceConflict
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: lookup spend reference", ErrInternal)
		}

		// The ledger decides affordability; a drifted row is repaired before the debit lands on it.
		sum, err := r.LedgerSum(ctx2, tx, userID)
		if err != nil {
			return err
		}
		if sum != balance {
			if err := r.repairBalance(ctx2, tx, userID, sum); err != nil {
				return err
			}
		}
		if sum < amount {
			return ErrInsufficientCredits
		}

		spend := &CreditTransaction{
			UserID:      userID,
			Amount:      -amount,
			Type:        TxTypeSpend,
			Intent:      IntentSpend,
			RelatedID:   RelatedID(relatedID),
			Description: description,
		}
		if err := spend.Normalize(); err != nil {
			return err
		}
		_, err = r.append(ctx2, tx, spend)
		return err
	})
}

// Reconcile recomputes the balance from the ledger and repairs the
// denormalized row when they disagree.
func (r *Repository) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result := &Reconciliation{UserID: userID}
	err := database.WithTx(ctx2, r.db, func(tx *sqlx.Tx) error {
		cached, err := r.lockBalance(ctx2, tx, userID)
		if err != nil {
			return err
		}
		sum, err := r.LedgerSum(ctx2, tx, userID)
		if err != nil {
			return err
		}
		result.Cached = cached
		result.Ledger = sum
		if cached == sum {
			return nil
		}
		if err := r.repairBalance(ctx2, tx, userID, sum); err != nil {
			return err
		}
		result.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DriftedUsers lists users whose denormalized balance differs from the ledger.
func (r *Repository) DriftedUsers(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 500
	}

	ids := make([]uuid.UUID, 0)
	err := r.db.SelectContext(ctx, &ids, `
		SELECT t.user_id
		FROM (
			SELECT user_id, SUM(amount) AS total
			FROM credit_transactions
			GROUP BY user_id
		) t
		LEFT JOIN user_credit_balances b ON b.user_id = t.user_id
		WHERE b.balance IS DISTINCT FROM t.total
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: drifted users", ErrInternal)
	}
	return ids, nil
}

func (r *Repository) lockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_credit_balances (user_id, balance)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return 0, fmt.Errorf("%w: ensure balance row", ErrInternal)
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance,
		`SELECT balance FROM user_credit_balances WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return 0, fmt.Errorf("%w: lock balance row", ErrInternal)
	}
	return balance, nil
}

func (r *Repository) repairBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, sum int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_credit_balances SET balance = $1, updated_at = now() WHERE user_id = $2`, sum, userID); err != nil {
		return fmt.Errorf("%w: repair balance", ErrInternal)
	}
	return nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
