package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/echoapp/echo-rewards/internal/pkg/response"
)

// Handler assembles the admin API
type Handler struct {
	jwtSvc        *JWTService
	creditHandler *CreditHandler
	seasons       chi.Router
}

// NewHandler takes the seasonal admin router so it can be mounted behind admin auth
func NewHandler(jwtSvc *JWTService, creditHandler *CreditHandler, seasons chi.Router) *Handler {
	return &Handler{jwtSvc: jwtSvc, creditHandler: creditHandler, seasons: seasons}
}

// Me handles GET /admin/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := GetPrincipal(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}
	response.OK(w, p)
}

// Routes returns admin router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.jwtSvc))

		r.Get("/auth/me", h.Me)

		if h.seasons != nil {
			r.Route("/seasonal-events", func(r chi.Router) {
				r.Use(RequirePermission(PermManageSeasons))
				r.Mount("/", h.seasons)
			})
		}

		r.Route("/users/{id}/credits", func(r chi.Router) {
			r.With(RequirePermission(PermViewLedger)).Get("/", h.creditHandler.GetUserCredits)
			r.With(RequirePermission(PermGrantCredits)).Post("/grant", h.creditHandler.GrantCredits)
			r.With(RequirePermission(PermGrantCredits)).Post("/spend", h.creditHandler.SpendCredits)
		})

		r.With(RequirePermission(PermReconcileCredits)).Post("/credits/reconcile/{id}", h.creditHandler.Reconcile)
	})

	return r
}
