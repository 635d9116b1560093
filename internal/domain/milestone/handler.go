package milestone

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/middleware"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
)

type Handler struct {
	evaluator *Evaluator
}

func NewHandler(evaluator *Evaluator) *Handler {
	return &Handler{evaluator: evaluator}
}

// List handles GET /milestones
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	statuses, err := h.evaluator.GetStatuses(r.Context(), userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "MILESTONES_FAILED", "Failed to load milestones", err)
		return
	}
	response.OK(w, statuses)
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/", h.List)
	return r
}
