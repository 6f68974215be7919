package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/errwatch/internal/api/middleware"
	"github.com/kiranshivaraju/errwatch/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth          *mw.Auth
	RateLimit     *mw.RateLimit
	RequestLogger *slog.Logger

	HealthHandler http.HandlerFunc
	IngestHandler http.HandlerFunc

	ListErrorsHandler   http.HandlerFunc
	GetErrorHandler     http.HandlerFunc
	UpdateStatusHandler http.HandlerFunc
	DeleteErrorHandler  http.HandlerFunc
	StatsHandler        http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	if deps.RequestLogger != nil {
		r.Use(mw.Logger(deps.RequestLogger))
	}
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("ingest"))
			r.Post("/api/v1/events", orNotImplemented(deps.IngestHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("read"))
			r.Get("/api/v1/errors", orNotImplemented(deps.ListErrorsHandler))
			r.Get("/api/v1/errors/stats", orNotImplemented(deps.StatsHandler))
			r.Get("/api/v1/errors/{recordID}", orNotImplemented(deps.GetErrorHandler))
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Patch("/api/v1/errors/{recordID}/status", orNotImplemented(deps.UpdateStatusHandler))
			r.Delete("/api/v1/errors/{recordID}", orNotImplemented(deps.DeleteErrorHandler))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
