package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	audithttp "github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/audit/http"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/auth"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/observability"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/shared"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	AuthService     *auth.Service
	AuthHandler     *auth.Handler
	AuthzHandler    *authz.Handler
	AuditHandler    *audithttp.Handler
	AuthzMiddleware authz.Middleware
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(auth.PrincipalMiddleware(params.AuthService, params.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		// Credential endpoints get a tighter rate limit than the global one.
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(params.AuthzMiddleware.RequirePrincipal)
		r.Use(params.AuthzMiddleware.TenantScope)

		params.AuthzHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(params.AuthzMiddleware.Require(authz.ResourceAudit, authz.ActionRead))
			params.AuditHandler.MountRoutes(r)
		})
	})

	return r
}
