package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/shared"
)

// PrincipalMiddleware resolves the session user into a principal snapshot and
// stores it in context. Requests without a valid session pass through without
// a principal; guards downstream decide whether that matters.
func PrincipalMiddleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimSpace(sess.User())
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				logger.Error("auth: parse session user id", slog.String("value", raw))
				next.ServeHTTP(w, r)
				return
			}
			principal, err := svc.Principal(r.Context(), userID)
			if err != nil {
				// A stale session for a removed or deactivated account is
				// treated as unauthenticated, not as an error page.
				logger.Warn("auth: principal resolution failed",
					slog.Int64("user_id", userID), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			ctx := authz.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
