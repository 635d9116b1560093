package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/domain/ledger"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/logger"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/pkg/validator"
)

// CreditService is the ledger surface admin endpoints need
type CreditService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	History(ctx context.Context, userID uuid.UUID, filter ledger.HistoryFilter) (*ledger.HistoryPage, error)
	Grant(ctx context.Context, userID uuid.UUID, amount int64, txType ledger.TxType, meta ledger.GrantMeta) (*ledger.CreditTransaction, error)
	Spend(ctx context.Context, userID uuid.UUID, amount int64, relatedID, description string) error
	Reconcile(ctx context.Context, userID uuid.UUID) (*ledger.Reconciliation, error)
}

// GrantCreditsRequest represents the request to grant credits
type GrantCreditsRequest struct {
	Amount int64  `json:"amount" validate:"required,min=1,max=1000000"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
	// Type defaults to ADMIN_GRANT
	Type string `json:"type" validate:"omitempty,tx_type"`
	// Reference makes retries of the same grant idempotent
	Reference string `json:"reference" validate:"max=128"`
	Internal  bool   `json:"internal"`
}

// SpendCreditsRequest represents a manual debit
type SpendCreditsRequest struct {
	Amount      int64  `json:"amount" validate:"required,min=1,max=1000000"`
	Reference   string `json:"reference" validate:"required,max=128"`
	Description string `json:"description" validate:"max=500"`
}

// CreditHandler handles admin credit operations
type CreditHandler struct {
	credits CreditService
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(credits CreditService) *CreditHandler {
	return &CreditHandler{credits: credits}
}

// GrantCredits handles POST /admin/users/{id}/credits/grant
func (h *CreditHandler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req GrantCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	txType := ledger.TxTypeAdminGrant
	if req.Type != "" {
		txType = ledger.TxType(req.Type)
	}
	visibility := ledger.VisibilityVisible
	if req.Internal {
		visibility = ledger.VisibilityInternal
	}

	adminID := GetAdminID(r.Context())
	tx, err := h.credits.Grant(r.Context(), userID, req.Amount, txType, ledger.GrantMeta{
		RelatedID:   req.Reference,
		Description: req.Reason,
		Visibility:  visibility,
		Metadata: ledger.Metadata{
			"admin_id": adminID.String(),
			"reason":   req.Reason,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
			response.Conflict(w, "Grant with this reference already exists")
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrUnknownTxType):
			response.BadRequest(w, "Invalid grant")
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "GRANT_FAILED", "Failed to grant credits", err)
		}
		return
	}

	logger.FromContext(r.Context()).Info().
		Str("user_id", userID.String()).
		Int64("amount", req.Amount).
		Str("tx_type", string(txType)).
		Msg("admin credit grant")

	balance, err := h.credits.GetBalance(r.Context(), userID)
	if err != nil {
		// the grant itself succeeded
		balance = 0
	}

	response.OK(w, map[string]interface{}{
		"user_id":        userID,
		"transaction_id": tx.ID,
		"amount_granted": req.Amount,
		"new_balance":    balance,
		"reason":         req.Reason,
	})
}

// SpendCredits handles POST /admin/users/{id}/credits/spend
func (h *CreditHandler) SpendCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req SpendCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	err := h.credits.Spend(r.Context(), userID, req.Amount, req.Reference, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCredits):
			response.UnprocessableEntity(w, "INSUFFICIENT_CREDITS", "Not enough credits")
		case errors.Is(err, ledger.ErrReferenceConflict):
			response.Conflict(w, "Reference already used with a different amount")
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SPEND_FAILED", "Failed to spend credits", err)
		}
		return
	}

	balance, _ := h.credits.GetBalance(r.Context(), userID)
	response.OK(w, map[string]interface{}{
		"user_id":     userID,
		"amount":      req.Amount,
		"new_balance": balance,
	})
}

// GetUserCredits handles GET /admin/users/{id}/credits
// Unlike the user history this includes INTERNAL rows.
func (h *CreditHandler) GetUserCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil && p > 0 {
			page = p
		}
	}

	balance, err := h.credits.GetBalance(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_FAILED", "Failed to load balance", err)
		return
	}
	history, err := h.credits.History(r.Context(), userID, ledger.HistoryFilter{Page: page, PageSize: 50})
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "Failed to load history", err)
		return
	}

	items := history.Items
	if items == nil {
		items = []ledger.CreditTransaction{}
	}
	response.WithMeta(w, map[string]interface{}{
		"user_id":      userID,
		"balance":      balance,
		"transactions": items,
	}, response.NewMeta(history.Total, history.Page, history.PageSize))
}

// Reconcile handles POST /admin/credits/reconcile/{id}
func (h *CreditHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	result, err := h.credits.Reconcile(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "RECONCILE_FAILED", "Failed to reconcile balance", err)
		return
	}
	response.OK(w, result)
}

func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}
