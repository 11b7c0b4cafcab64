package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/funddesk/funddesk/internal/audit"
	"github.com/funddesk/funddesk/internal/auth"
	"github.com/funddesk/funddesk/internal/fundreq"
	"github.com/funddesk/funddesk/internal/shared"
	"github.com/funddesk/funddesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Resolver       auth.Resolver
	RequestHandler *fundreq.Handler
	AuditHandler   *audit.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with FundDesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.Logger, params.Resolver))

		r.Route("/requests", params.RequestHandler.MountRoutes)

		if params.AuditHandler != nil {
			r.Route("/logs", func(r chi.Router) {
				r.Use(auth.RequireRoles(shared.RoleAdmin, shared.RoleSuperAdmin))
				params.AuditHandler.MountRoutes(r)
			})
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
