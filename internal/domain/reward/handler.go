package reward

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/echoapp/echo-rewards/internal/middleware"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/pkg/validator"
)

type Handler struct {
	coordinator *Coordinator
	limiter     *middleware.RateLimiter
}

// NewHandler takes an optional per-user limiter.
func NewHandler(coordinator *Coordinator, limiter *middleware.RateLimiter) *Handler {
	return &Handler{coordinator: coordinator, limiter: limiter}
}

// Ingest handles POST /internal/v1/events
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	ev, err := req.toEvent()
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	// Callers are services, so limit by the acting user rather than by IP.
	if !h.limiter.Allow(ev.UserID.String()) {
		response.TooManyRequests(w, h.limiter.Interval())
		return
	}

	res, err := h.coordinator.Handle(r.Context(), ev)
	if err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			response.BadRequest(w, err.Error())
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "EVENT_FAILED", "Failed to process event", err)
		return
	}
	response.OK(w, EventResponseFrom(res))
}

func (h *Handler) Routes(serviceAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(serviceAuth)
	r.Post("/", h.Ingest)
	return r
}
