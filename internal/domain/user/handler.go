package user

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/middleware"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/pkg/validator"
)

// TimezoneRequest is the body of PUT /settings/timezone
type TimezoneRequest struct {
	Timezone string `json:"timezone" validate:"required,timezone"`
}

type Handler struct {
	repo      Repository
	locations *LocationResolver
}

func NewHandler(repo Repository, locations *LocationResolver) *Handler {
	return &Handler{repo: repo, locations: locations}
}

// GetTimezone handles GET /settings/timezone and reports the zone streak
// days are currently counted in.
func (h *Handler) GetTimezone(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	loc := h.locations.Resolve(r.Context(), userID)
	response.OK(w, map[string]interface{}{"timezone": loc.String()})
}

// SetTimezone handles PUT /settings/timezone
func (h *Handler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req TimezoneRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	changed, err := h.repo.UpsertTimezone(r.Context(), userID, req.Timezone)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SETTINGS_FAILED", "Failed to save timezone", err)
		return
	}
	response.OK(w, map[string]interface{}{"timezone": req.Timezone, "changed": changed})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/timezone", h.GetTimezone)
	r.Put("/timezone", h.SetTimezone)
	return r
}
