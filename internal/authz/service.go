package authz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/observability"
)

// Recorder receives every decision for asynchronous audit persistence. Record
// must never block on or fail into the caller's path.
type Recorder interface {
	Record(event Event)
}

// ServiceConfig collects the engine's collaborators.
type ServiceConfig struct {
	Store     Store
	Resolvers []ScopeResolver
	Recorder  Recorder
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Service is the policy decision component. Evaluation is read-only and
// synchronous; the only side effects are metrics and the fire-and-forget
// audit notification, both outside the decision path.
type Service struct {
	store     Store
	resolvers map[string]ScopeResolver
	recorder  Recorder
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewService constructs the engine.
func NewService(cfg ServiceConfig) *Service {
	resolvers := make(map[string]ScopeResolver, len(cfg.Resolvers))
	for _, r := range cfg.Resolvers {
		if r != nil {
			resolvers[r.Resource()] = r
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     cfg.Store,
		resolvers: resolvers,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}

// HasPermission evaluates whether the principal may perform action on
// resource, optionally constrained to the given branch scope. A nil scope
// means no context was supplied. The decision is audited and counted; the
// caller only ever sees a boolean.
func (s *Service) HasPermission(ctx context.Context, p *Principal, resource, action string, scope []int64) bool {
	return s.Check(ctx, p, resource, action, scope).Allowed
}

// Check is HasPermission with the full decision, for callers that need the
// denial reason (the reason stays internal; it is never sent to clients).
func (s *Service) Check(ctx context.Context, p *Principal, resource, action string, scope []int64) Decision {
	start := time.Now()
	dec := s.evaluate(ctx, p, resource, action, scope)
	s.conclude(p, resource, action, scope, dec, start)
	return dec
}

// HasPermissionOnEntity resolves the target's branch scope through the
// registered resolver before evaluating. A missing target denies exactly like
// an inaccessible one: authorization is evaluated before existence is
// revealed.
func (s *Service) HasPermissionOnEntity(ctx context.Context, p *Principal, resource, action string, targetID int64) bool {
	start := time.Now()

	resolver, ok := s.resolvers[resource]
	if !ok {
		dec := Deny(fmt.Sprintf("no scope resolver for resource %s", resource))
		s.logger.Error("authz: missing scope resolver", slog.String("resource", resource))
		s.conclude(p, resource, action, nil, dec, start)
		return false
	}

	// Unauthenticated callers are rejected before any lookup so the
	// resolver cannot be used as an existence oracle.
	if p == nil {
		dec := Deny("unauthenticated")
		s.conclude(p, resource, action, nil, dec, start)
		return false
	}

	scope, err := resolver.ResolveScope(ctx, targetID)
	if err != nil {
		var dec Decision
		switch {
		case err == ErrTargetNotFound:
			dec = Deny(fmt.Sprintf("target %s/%d not found", resource, targetID))
			s.logger.Debug("authz: deny, target missing",
				slog.String("resource", resource), slog.Int64("target_id", targetID))
		default:
			dec = Deny(fmt.Sprintf("scope resolution failed: %v", err))
			s.logger.Error("authz: scope resolution failure",
				slog.String("resource", resource), slog.Int64("target_id", targetID), slog.Any("error", err))
		}
		s.conclude(p, resource, action, nil, dec, start)
		return false
	}

	dec := s.evaluate(ctx, p, resource, action, scope)
	s.conclude(p, resource, action, scope, dec, start)
	return dec.Allowed
}

// EffectivePermissions returns the principal's effective permission set, the
// same union the evaluator matches against.
func (s *Service) EffectivePermissions(ctx context.Context, p *Principal) ([]Permission, error) {
	if p == nil {
		return nil, fmt.Errorf("authz: no principal")
	}
	return MemoFromContext(ctx).Permissions(ctx, s.store, p.ID)
}

// evaluate is the pure decision function. It never panics and never returns
// an error: every failure collapses to a denial.
func (s *Service) evaluate(ctx context.Context, p *Principal, resource, action string, scope []int64) Decision {
	if p == nil || p.ID == 0 {
		return Deny("unauthenticated")
	}
	if resource == "" || action == "" {
		return Deny("resource and action tags are required")
	}

	if p.IsAdmin() {
		return Allow()
	}

	perms, err := MemoFromContext(ctx).Permissions(ctx, s.store, p.ID)
	if err != nil {
		s.logger.Error("authz: permission lookup failure",
			slog.String("principal", p.Email), slog.Any("error", err))
		return Deny(fmt.Sprintf("permission lookup failed: %v", err))
	}

	var matched bool
	var contextDenied bool
	for _, perm := range perms {
		if perm.Resource != resource || perm.Action != action {
			continue
		}
		matched = true

		if !perm.RequiresContext() {
			return Allow()
		}

		// Context-constrained grant: a missing scope never satisfies it.
		if scope == nil {
			contextDenied = true
			continue
		}
		if perm.ContextKey != ContextKeyFilial {
			// Unknown scoping dimension: nothing to match against.
			contextDenied = true
			continue
		}

		entitled, err := MemoFromContext(ctx).Filials(ctx, s.store, p.ID)
		if err != nil {
			s.logger.Error("authz: entitlement lookup failure",
				slog.String("principal", p.Email), slog.Any("error", err))
			contextDenied = true
			continue
		}
		if len(entitled) == 0 {
			// Employee without branches: configuration problem, not policy.
			s.logger.Warn("authz: principal has no branch entitlements",
				slog.String("principal", p.Email),
				slog.String("resource", resource), slog.String("action", action))
			contextDenied = true
			continue
		}
		if containsAll(entitled, scope) {
			return Allow()
		}
		contextDenied = true
	}

	switch {
	case !matched:
		return Deny(fmt.Sprintf("no permission for %s/%s", resource, action))
	case contextDenied && scope == nil:
		return Deny(fmt.Sprintf("context required for %s/%s but none supplied", resource, action))
	default:
		return Deny(fmt.Sprintf("branch scope %v not within entitlement for %s/%s", scope, resource, action))
	}
}

// conclude reports metrics and notifies the audit recorder. Neither can alter
// the decision already made.
func (s *Service) conclude(p *Principal, resource, action string, scope []int64, dec Decision, start time.Time) {
	s.metrics.ObserveDecision(dec.Allowed, resource, action, time.Since(start))

	if !dec.Allowed {
		s.logger.Debug("authz: deny",
			slog.String("principal", principalEmail(p)),
			slog.String("resource", resource),
			slog.String("action", action),
			slog.String("reason", dec.Reason))
	}

	if s.recorder != nil {
		s.recorder.Record(Event{
			PrincipalEmail: principalEmail(p),
			Resource:       resource,
			Action:         action,
			Scope:          scope,
			Allowed:        dec.Allowed,
			Detail:         dec.Reason,
		})
	}
}

// containsAll reports whether every requested value is entitled.
func containsAll(entitled, requested []int64) bool {
	set := make(map[int64]struct{}, len(entitled))
	for _, id := range entitled {
		set[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func principalEmail(p *Principal) string {
	if p == nil || p.Email == "" {
		return "anonymous"
	}
	return p.Email
}
