package authz

import "context"

type principalContextKey struct{}
type requestedFilialContextKey struct{}
type allowedScopeContextKey struct{}

// ContextWithPrincipal stores the authenticated principal snapshot in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal, or nil for unauthenticated
// requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// ContextWithRequestedFilial records the branch the caller explicitly asked
// for via the tenant header.
func ContextWithRequestedFilial(ctx context.Context, filialID int64) context.Context {
	return context.WithValue(ctx, requestedFilialContextKey{}, filialID)
}

// RequestedFilialFromContext returns the explicitly requested branch, if any.
func RequestedFilialFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requestedFilialContextKey{}).(int64)
	return id, ok
}

// ContextWithAllowedScope stores the narrowed branch set downstream queries
// must filter by.
func ContextWithAllowedScope(ctx context.Context, scope []int64) context.Context {
	return context.WithValue(ctx, allowedScopeContextKey{}, scope)
}

// AllowedScopeFromContext returns the narrowed branch set for this request.
func AllowedScopeFromContext(ctx context.Context) []int64 {
	scope, _ := ctx.Value(allowedScopeContextKey{}).([]int64)
	return scope
}
