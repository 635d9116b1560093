package seasonal

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/echoapp/echo-rewards/internal/pkg/calendar"
	"github.com/echoapp/echo-rewards/internal/pkg/errorhandler"
	"github.com/echoapp/echo-rewards/internal/pkg/response"
	"github.com/echoapp/echo-rewards/internal/pkg/validator"
)

type Handler struct {
	svc        *Service
	engine     *Engine
	defaultLoc *time.Location
	now        func() time.Time
}

func NewHandler(svc *Service, engine *Engine, defaultLoc *time.Location) *Handler {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Handler{svc: svc, engine: engine, defaultLoc: defaultLoc, now: time.Now}
}

// Active handles GET /seasonal/active?tz=Area/City
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	loc := h.defaultLoc
	if tz := r.URL.Query().Get("tz"); tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			response.BadRequest(w, "Unknown timezone")
			return
		}
		loc = parsed
	}

	active, err := h.engine.GetActiveEvent(r.Context(), calendar.DateOf(h.now(), loc))
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SEASON_LOOKUP_FAILED", "Failed to resolve active event", err)
		return
	}
	if active == nil {
		response.OK(w, nil)
		return
	}
	response.OK(w, ActiveResponseFrom(active))
}

// List handles GET /seasonal-events?year=2026
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	year := h.now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1970 || parsed > 9999 {
			response.BadRequest(w, "Invalid year")
			return
		}
		year = parsed
	}

	events, err := h.svc.ListByYear(r.Context(), year)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SEASON_LIST_FAILED", "Failed to list seasonal events", err)
		return
	}
	response.OK(w, events)
}

// Get handles GET /seasonal-events/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, e)
}

// Create handles POST /seasonal-events
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEventRequest(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, e)
}

// Update handles PUT /seasonal-events/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := decodeEventRequest(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, e)
}

// Delete handles DELETE /seasonal-events/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// AdminRoutes is mounted behind admin auth by the caller.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *ConfigError
	switch {
	case errors.As(err, &cfgErr):
		errorhandler.LogValidationError(r.Context(), map[string]string{cfgErr.Field: cfgErr.Message})
		response.ErrorWithDetails(w, http.StatusUnprocessableEntity, "INVALID_SEASON_CONFIG", "Seasonal event configuration rejected",
			map[string]string{cfgErr.Field: cfgErr.Message})
	case errors.Is(err, ErrEventNotFound):
		response.NotFound(w, "Seasonal event not found")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "SEASON_WRITE_FAILED", "Failed to save seasonal event", err)
	}
}

func decodeEventRequest(w http.ResponseWriter, r *http.Request) (EventRequest, bool) {
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return req, false
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return req, false
	}
	return req, true
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid event ID")
		return uuid.Nil, false
	}
	return id, true
}
