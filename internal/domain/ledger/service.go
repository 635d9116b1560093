package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/echoapp/echo-rewards/internal/pkg/metrics"
)

// GrantMeta describes a manual or system grant.
type GrantMeta struct {
	RelatedID   string
	Description string
	Visibility  Visibility
	Metadata    Metadata
}

// Service is the read/write surface of the ledger used by handlers and workers.
type Service struct {
	repo  *Repository
	cache BalanceCache
}

func NewService(repo *Repository, cache BalanceCache) *Service {
	if cache == nil {
		cache = noopCache{}
	}
	return &Service{repo: repo, cache: cache}
}

// GetBalance returns the user's balance, cache first.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	if balance, ok := s.cache.Get(ctx, userID); ok {
		return balance, nil
	}

	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, userID, balance)
	return balance, nil
}

// History returns the user-facing history page.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filter HistoryFilter) (*HistoryPage, error) {
	return s.repo.History(ctx, userID, filter)
}

// Grant appends a credit of a non-spend type in its own transaction.
func (s *Service) Grant(ctx context.Context, userID uuid.UUID, amount int64, txType TxType, meta GrantMeta) (*CreditTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if txType == TxTypeSpend || !txType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTxType, txType)
	}

	relatedID := meta.RelatedID
	if relatedID == "" && txType.DefaultIntent() == IntentReward {
		relatedID = fmt.Sprintf("%s_%s", txType, uuid.NewString())
	}

	tx := &CreditTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        txType,
		Visibility:  meta.Visibility,
		RelatedID:   RelatedID(relatedID),
		Description: meta.Description,
		Metadata:    meta.Metadata,
	}
	if _, err := s.repo.Append(ctx, nil, tx); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, userID)

	if tx.Intent == IntentReward {
		metrics.RecordGrant(string(tx.Type), tx.Amount)
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("tx_type", string(txType)).
		Str("related_id", relatedID).
		Msg("credits granted")
	return tx, nil
}

// Spend debits the balance; relatedID is the caller's idempotency reference.
func (s *Service) Spend(ctx context.Context, userID uuid.UUID, amount int64, relatedID, description string) error {
	if amount <= 0 || relatedID == "" {
		return ErrInvalidAmount
	}
	if err := s.repo.Spend(ctx, userID, amount, relatedID, description); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	log.Info().Str("user_id", userID.String()).Int64("amount", amount).Str("related_id", relatedID).Msg("credits spent")
	return nil
}

// Reconcile repairs one user's denormalized balance from the ledger.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (*Reconciliation, error) {
	result, err := s.repo.Reconcile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if result.Repaired {
		metrics.RecordBalanceRepair()
		log.Warn().
			Str("user_id", userID.String()).
			Int64("cached", result.Cached).
			Int64("ledger", result.Ledger).
			Msg("balance drift repaired")
	}
	s.cache.Invalidate(ctx, userID)
	return result, nil
}

// ReconcileDrifted repairs up to limit drifted users and returns how many were fixed.
func (s *Service) ReconcileDrifted(ctx context.Context, limit int) (int, error) {
	ids, err := s.repo.DriftedUsers(ctx, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, id := range ids {
		result, err := s.Reconcile(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("user_id", id.String()).Msg("balance reconcile failed")
			continue
		}
		if result.Repaired {
			repaired++
		}
	}
	return repaired, nil
}

// InvalidateBalance drops the cached balance after a write made elsewhere.
func (s *Service) InvalidateBalance(ctx context.Context, userID uuid.UUID) {
	s.cache.Invalidate(ctx, userID)
}
