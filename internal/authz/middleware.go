package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/platform/httpx"
)

// DefaultTenantHeader carries the branch the caller wants to operate in.
const DefaultTenantHeader = "X-Filial-ID"

// Middleware wires the engine into chi handler chains.
type Middleware struct {
	Service      *Service
	Guard        *TenantGuard
	TenantHeader string
	Logger       *slog.Logger
}

// RequirePrincipal rejects unauthenticated requests with 401. It also seeds
// the per-request decision memo so repeated checks share one store read.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		if p == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		ctx := ContextWithMemo(r.Context(), NewMemo(p.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TenantScope parses the tenant header, narrows the request's branch scope
// through the guard and stores the result in context. A requested branch
// outside the entitlement ends the request with 403 before any handler runs.
func (m Middleware) TenantScope(next http.Handler) http.Handler {
	header := m.TenantHeader
	if header == "" {
		header = DefaultTenantHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := PrincipalFromContext(ctx)
		if p == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}

		var requested *int64
		if raw := strings.TrimSpace(r.Header.Get(header)); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				// Malformed header is ignored, same as no header at all.
				m.logger().Warn("authz: invalid tenant header", slog.String("value", raw))
			} else {
				requested = &id
				ctx = ContextWithRequestedFilial(ctx, id)
			}
		}

		scope, err := m.Guard.NarrowScope(ctx, p, requested)
		if err != nil {
			switch err {
			case ErrScopeNotAllowed, ErrNoEntitlements:
				// Already logged by the guard with the real cause.
			default:
				m.logger().Error("authz: tenant guard failure", slog.Any("error", err))
			}
			httpx.Forbidden(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAllowedScope(ctx, scope)))
	})
}

// Require guards a route with a permission check on (resource, action). When
// the caller explicitly requested a branch, that branch is the evaluation
// scope; otherwise the check is context-free.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := PrincipalFromContext(ctx)

			var scope []int64
			if filialID, ok := RequestedFilialFromContext(ctx); ok {
				scope = []int64{filialID}
			}

			if !m.Service.HasPermission(ctx, p, resource, action, scope) {
				httpx.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOnEntity guards a route whose URL parameter identifies the target
// entity. The engine resolves the entity's branch itself; a missing entity
// answers exactly like a forbidden one.
func (m Middleware) RequireOnEntity(resource, action, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := PrincipalFromContext(ctx)

			targetID, err := strconv.ParseInt(chi.URLParam(r, urlParam), 10, 64)
			if err != nil {
				httpx.Forbidden(w)
				return
			}

			if !m.Service.HasPermissionOnEntity(ctx, p, resource, action, targetID) {
				httpx.Forbidden(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
