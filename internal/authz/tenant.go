package authz

import (
	"context"
	"errors"
	"log/slog"
)

// Tenant guard errors. Both collapse to 403 at the HTTP boundary; they are
// distinct so logs can tell a configuration problem from a policy denial.
var (
	// ErrNoEntitlements means a branch was requested but the principal has
	// no branch memberships at all.
	ErrNoEntitlements = errors.New("authz: principal has no branch entitlements")
	// ErrScopeNotAllowed means an explicitly requested branch is outside the
	// principal's entitlement.
	ErrScopeNotAllowed = errors.New("authz: requested branch not allowed")
)

// TenantGuard narrows the branch scope of a request to what the principal is
// entitled to.
type TenantGuard struct {
	store  Store
	logger *slog.Logger
}

// NewTenantGuard constructs a TenantGuard.
func NewTenantGuard(store Store, logger *slog.Logger) *TenantGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantGuard{store: store, logger: logger}
}

// NarrowScope returns the branch set downstream queries must filter by. With
// an explicitly requested branch the result is that single branch, provided
// the principal is entitled to it; without one it is the full entitlement,
// possibly empty. The guard only denies an explicit request: whether an
// empty entitlement blocks an action is the evaluator's call, because only
// context-constrained grants care.
func (g *TenantGuard) NarrowScope(ctx context.Context, p *Principal, requested *int64) ([]int64, error) {
	if p == nil || p.ID == 0 {
		return nil, ErrNoEntitlements
	}

	entitled, err := MemoFromContext(ctx).Filials(ctx, g.store, p.ID)
	if err != nil {
		return nil, err
	}

	if requested == nil {
		return entitled, nil
	}
	if len(entitled) == 0 {
		g.logger.Warn("authz: tenant guard found no entitlements",
			slog.String("principal", p.Email), slog.Int64("filial_id", *requested))
		return nil, ErrNoEntitlements
	}
	for _, id := range entitled {
		if id == *requested {
			return []int64{*requested}, nil
		}
	}
	g.logger.Warn("authz: tenant guard denied requested branch",
		slog.String("principal", p.Email), slog.Int64("filial_id", *requested))
	return nil, ErrScopeNotAllowed
}
