package ledger

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/middleware"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/pkg/validator"
)

// LocationResolver maps a user to the timezone their calendar days live in.
type LocationResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) *time.Location
}

type Handler struct {
	svc       *Service
	locations LocationResolver
}

func NewHandler(svc *Service, locations LocationResolver) *Handler {
	return &Handler{svc: svc, locations: locations}
}

// Balance handles GET /credits/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "BALANCE_FAILED", "Failed to load balance", err)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// History handles GET /credits/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	values := r.URL.Query()
	q := HistoryQuery{
		Page:     atoiDefault(values.Get("page"), 1),
		PageSize: atoiDefault(values.Get("page_size"), 20),
		Types:    values.Get("type"),
		Query:    values.Get("q"),
		From:     values.Get("from"),
		To:       values.Get("to"),
	}
	if errs := validator.Validate(&q); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	loc := time.UTC
	if h.locations != nil {
		loc = h.locations.Resolve(r.Context(), userID)
	}
	filter, err := q.Filter(loc)
	if err != nil {
		if errors.Is(err, ErrUnknownTxType) {
			response.BadRequest(w, "unknown transaction type")
			return
		}
		response.BadRequest(w, "invalid date filter")
		return
	}

	page, err := h.svc.History(r.Context(), userID, filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "HISTORY_FAILED", "Failed to load history", err)
		return
	}

	items := make([]TransactionResponse, 0, len(page.Items))
	for _, t := range page.Items {
		items = append(items, TransactionResponseFrom(t))
	}

	response.WithMeta(w, items, response.NewMeta(page.Total, page.Page, page.PageSize))
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Get("/history", h.History)
	return r
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
