package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	_ "github.com/diogo-rp-menezes/aegispatrimonio-sub000/testing"
)

type stubStore struct {
	perms      []authz.Permission
	filials    []int64
	permsErr   error
	filialsErr error

	permsCalls   int
	filialsCalls int
}

func (s *stubStore) PermissionsFor(ctx context.Context, userID int64) ([]authz.Permission, error) {
	s.permsCalls++
	return s.perms, s.permsErr
}

func (s *stubStore) FilialsFor(ctx context.Context, userID int64) ([]int64, error) {
	s.filialsCalls++
	return s.filials, s.filialsErr
}

type captureRecorder struct {
	events []authz.Event
}

func (r *captureRecorder) Record(event authz.Event) {
	r.events = append(r.events, event)
}

type stubResolver struct {
	resource string
	scope    []int64
	err      error
	calls    int
}

func (r *stubResolver) Resource() string { return r.resource }

func (r *stubResolver) ResolveScope(ctx context.Context, targetID int64) ([]int64, error) {
	r.calls++
	return r.scope, r.err
}

func newService(store authz.Store, recorder authz.Recorder, resolvers ...authz.ScopeResolver) *authz.Service {
	return authz.NewService(authz.ServiceConfig{
		Store:     store,
		Resolvers: resolvers,
		Recorder:  recorder,
	})
}

func user(roles ...string) *authz.Principal {
	return &authz.Principal{ID: 7, Email: "user@aegis.local", Roles: roles}
}

func TestAdminBypassesPermissionLookup(t *testing.T) {
	store := &stubStore{permsErr: errors.New("down")}
	svc := newService(store, nil)

	if !svc.HasPermission(context.Background(), user(authz.RoleAdmin), authz.ResourceAtivo, authz.ActionDelete, nil) {
		t.Fatalf("expected admin to be allowed")
	}
	if store.permsCalls != 0 {
		t.Fatalf("expected no permission lookup for admin, got %d", store.permsCalls)
	}
}

func TestUnauthenticatedDenied(t *testing.T) {
	svc := newService(&stubStore{}, nil)

	if svc.HasPermission(context.Background(), nil, authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected nil principal to be denied")
	}
	if svc.HasPermission(context.Background(), &authz.Principal{}, authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected zero principal to be denied")
	}
}

func TestEmptyTagsDenied(t *testing.T) {
	svc := newService(&stubStore{}, nil)

	if svc.HasPermission(context.Background(), user(authz.RoleAdmin), "", authz.ActionRead, nil) {
		t.Fatalf("expected empty resource to be denied")
	}
	if svc.HasPermission(context.Background(), user(authz.RoleAdmin), authz.ResourceAtivo, "", nil) {
		t.Fatalf("expected empty action to be denied")
	}
}

func TestContextFreePermissionAllows(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
	}}
	svc := newService(store, nil)

	if !svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected context-free grant to allow without scope")
	}
	if !svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionRead, []int64{99}) {
		t.Fatalf("expected context-free grant to allow regardless of scope")
	}
}

func TestTagMatchingIsCaseSensitive(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
	}}
	svc := newService(store, nil)

	if svc.HasPermission(context.Background(), user("ROLE_USER"), "ativo", authz.ActionRead, nil) {
		t.Fatalf("expected lowercase resource tag not to match")
	}
	if svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, "read", nil) {
		t.Fatalf("expected lowercase action tag not to match")
	}
}

func TestContextConstrainedGrant(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
		filials: []int64{1, 2},
	}
	svc := newService(store, nil)
	p := user("ROLE_USER")

	if !svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, []int64{1}) {
		t.Fatalf("expected entitled branch to be allowed")
	}
	if svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, []int64{3}) {
		t.Fatalf("expected branch outside entitlement to be denied")
	}
	if svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, []int64{1, 3}) {
		t.Fatalf("expected partially entitled scope to be denied")
	}
	if svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, nil) {
		t.Fatalf("expected missing scope to be denied for a context-constrained grant")
	}
}

func TestEmptyScopeIsVacuouslyAllowed(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceFuncionario, Action: authz.ActionRead, ContextKey: authz.ContextKeyFilial},
		},
		filials: []int64{1},
	}
	svc := newService(store, nil)

	// An empty, non-nil scope carries no branch to contradict: the target
	// exists but is not pinned to any branch.
	if !svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceFuncionario, authz.ActionRead, []int64{}) {
		t.Fatalf("expected empty scope to be allowed")
	}
}

func TestNoBranchEntitlementsDenied(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
	}
	svc := newService(store, nil)

	if svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionUpdate, []int64{1}) {
		t.Fatalf("expected principal without entitlements to be denied")
	}
}

func TestUnknownContextKeyDenied(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: "departmentId"},
		},
		filials: []int64{1},
	}
	svc := newService(store, nil)

	if svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionUpdate, []int64{1}) {
		t.Fatalf("expected unknown scoping dimension to be denied")
	}
}

func TestAllMatchingPermissionsAreTried(t *testing.T) {
	// The context-constrained grant fails for branch 9, but the context-free
	// grant on the same tags still allows, regardless of ordering.
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionRead, ContextKey: authz.ContextKeyFilial},
			{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
		},
		filials: []int64{1},
	}
	svc := newService(store, nil)

	if !svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionRead, []int64{9}) {
		t.Fatalf("expected the context-free grant to win")
	}
}

// unionStore mimics the SQL union of role- and group-sourced grants.
type unionStore struct {
	rolePerms  []authz.Permission
	groupPerms []authz.Permission
	filials    []int64
}

func (s *unionStore) PermissionsFor(ctx context.Context, userID int64) ([]authz.Permission, error) {
	return append(append([]authz.Permission{}, s.rolePerms...), s.groupPerms...), nil
}

func (s *unionStore) FilialsFor(ctx context.Context, userID int64) ([]int64, error) {
	return s.filials, nil
}

func TestGroupGrantIsEquivalentToRoleGrant(t *testing.T) {
	store := &unionStore{
		groupPerms: []authz.Permission{
			{Resource: authz.ResourceAudit, Action: authz.ActionRead},
		},
	}
	svc := newService(store, nil)
	p := &authz.Principal{ID: 7, Email: "user@aegis.local", Roles: []string{"ROLE_USER"}, Groups: []string{"auditores"}}

	if !svc.HasPermission(context.Background(), p, authz.ResourceAudit, authz.ActionRead, nil) {
		t.Fatalf("expected group-sourced grant to allow")
	}
	if svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected ungranted pair to deny")
	}
}

func TestStoreFailureDenies(t *testing.T) {
	store := &stubStore{permsErr: errors.New("connection refused")}
	recorder := &captureRecorder{}
	svc := newService(store, recorder)

	if svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected lookup failure to deny")
	}
	if len(recorder.events) != 1 || recorder.events[0].Allowed {
		t.Fatalf("expected one denial event, got %+v", recorder.events)
	}
	if recorder.events[0].Detail == "" {
		t.Fatalf("expected denial detail to be recorded")
	}
}

func TestEntitlementFailureDenies(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
		filialsErr: errors.New("connection refused"),
	}
	svc := newService(store, nil)

	if svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionUpdate, []int64{1}) {
		t.Fatalf("expected entitlement failure to deny")
	}
}

func TestDecisionIsIdempotent(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
		filials: []int64{1},
	}
	svc := newService(store, nil)
	p := user("ROLE_USER")

	first := svc.Check(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, []int64{1})
	second := svc.Check(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, []int64{1})
	if first != second {
		t.Fatalf("expected identical decisions, got %+v then %+v", first, second)
	}
}

func TestEveryDecisionIsRecorded(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
	}}
	recorder := &captureRecorder{}
	svc := newService(store, recorder)
	p := user("ROLE_USER")

	svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionRead, nil)
	svc.HasPermission(context.Background(), p, authz.ResourceAtivo, authz.ActionDelete, nil)

	if len(recorder.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recorder.events))
	}
	if !recorder.events[0].Allowed || recorder.events[0].Detail != "" {
		t.Fatalf("unexpected allow event: %+v", recorder.events[0])
	}
	if recorder.events[1].Allowed || recorder.events[1].Detail == "" {
		t.Fatalf("unexpected deny event: %+v", recorder.events[1])
	}
	if recorder.events[0].PrincipalEmail != "user@aegis.local" {
		t.Fatalf("unexpected principal in event: %q", recorder.events[0].PrincipalEmail)
	}
}

func TestAnonymousRecordedForNilPrincipal(t *testing.T) {
	recorder := &captureRecorder{}
	svc := newService(&stubStore{}, recorder)

	svc.HasPermission(context.Background(), nil, authz.ResourceAtivo, authz.ActionRead, nil)

	if len(recorder.events) != 1 || recorder.events[0].PrincipalEmail != "anonymous" {
		t.Fatalf("expected anonymous denial event, got %+v", recorder.events)
	}
}

// brokenRecorder simulates an audit pipeline that swallows its own failures,
// the contract every Recorder must honor.
type brokenRecorder struct {
	calls int
}

func (r *brokenRecorder) Record(event authz.Event) {
	r.calls++
}

func TestAuditFailureDoesNotFlipDecision(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
	}}
	recorder := &brokenRecorder{}
	svc := newService(store, recorder)

	if !svc.HasPermission(context.Background(), user("ROLE_USER"), authz.ResourceAtivo, authz.ActionRead, nil) {
		t.Fatalf("expected allow regardless of audit outcome")
	}
	if recorder.calls != 1 {
		t.Fatalf("expected the recorder to be notified once, got %d", recorder.calls)
	}
}

func TestMemoSharesLookupAcrossChecks(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
	}}
	svc := newService(store, nil)
	p := user("ROLE_USER")
	ctx := authz.ContextWithMemo(context.Background(), authz.NewMemo(p.ID))

	svc.HasPermission(ctx, p, authz.ResourceAtivo, authz.ActionRead, nil)
	svc.HasPermission(ctx, p, authz.ResourceAtivo, authz.ActionUpdate, nil)
	svc.HasPermission(ctx, p, authz.ResourceAtivo, authz.ActionDelete, nil)

	if store.permsCalls != 1 {
		t.Fatalf("expected a single permission lookup, got %d", store.permsCalls)
	}
}

func TestEntityCheckResolvesScope(t *testing.T) {
	store := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
		filials: []int64{1},
	}
	inBranch := &stubResolver{resource: authz.ResourceAtivo, scope: []int64{1}}
	svc := newService(store, nil, inBranch)
	p := user("ROLE_USER")

	if !svc.HasPermissionOnEntity(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, 10) {
		t.Fatalf("expected entity in entitled branch to be allowed")
	}

	outOfBranch := &stubResolver{resource: authz.ResourceAtivo, scope: []int64{2}}
	svc = newService(store, nil, outOfBranch)
	if svc.HasPermissionOnEntity(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, 10) {
		t.Fatalf("expected entity outside entitled branch to be denied")
	}
}

func TestUnplacedEntityDeniesConstrainedGrant(t *testing.T) {
	// An entity whose branch column is NULL resolves to a nil scope.
	// That is absent context for the evaluator: branch-constrained grants
	// cannot reach it, only an unconstrained grant admits the action.
	unplaced := &stubResolver{resource: authz.ResourceAtivo, scope: nil}
	p := user("ROLE_USER")

	constrained := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate, ContextKey: authz.ContextKeyFilial},
		},
		filials: []int64{1, 2},
	}
	svc := newService(constrained, nil, unplaced)
	if svc.HasPermissionOnEntity(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, 10) {
		t.Fatalf("expected nil scope to deny a branch-constrained grant")
	}

	unconstrained := &stubStore{
		perms: []authz.Permission{
			{Resource: authz.ResourceAtivo, Action: authz.ActionUpdate},
		},
	}
	svc = newService(unconstrained, nil, unplaced)
	if !svc.HasPermissionOnEntity(context.Background(), p, authz.ResourceAtivo, authz.ActionUpdate, 10) {
		t.Fatalf("expected unconstrained grant to allow an unplaced entity")
	}
}

func TestMissingTargetDeniedEvenForAdmin(t *testing.T) {
	resolver := &stubResolver{resource: authz.ResourceAtivo, err: authz.ErrTargetNotFound}
	recorder := &captureRecorder{}
	svc := newService(&stubStore{}, recorder, resolver)

	if svc.HasPermissionOnEntity(context.Background(), user(authz.RoleAdmin), authz.ResourceAtivo, authz.ActionRead, 999) {
		t.Fatalf("expected missing target to deny before the admin bypass")
	}
	if len(recorder.events) != 1 || recorder.events[0].Allowed {
		t.Fatalf("expected a denial event, got %+v", recorder.events)
	}
}

func TestResolverFailureDenies(t *testing.T) {
	resolver := &stubResolver{resource: authz.ResourceAtivo, err: errors.New("connection refused")}
	svc := newService(&stubStore{}, nil, resolver)

	if svc.HasPermissionOnEntity(context.Background(), user(authz.RoleAdmin), authz.ResourceAtivo, authz.ActionRead, 10) {
		t.Fatalf("expected resolver failure to deny")
	}
}

func TestMissingResolverDenies(t *testing.T) {
	svc := newService(&stubStore{}, nil)

	if svc.HasPermissionOnEntity(context.Background(), user(authz.RoleAdmin), authz.ResourceAtivo, authz.ActionRead, 10) {
		t.Fatalf("expected missing resolver to deny")
	}
}

func TestUnauthenticatedEntityCheckSkipsResolver(t *testing.T) {
	resolver := &stubResolver{resource: authz.ResourceAtivo, err: authz.ErrTargetNotFound}
	svc := newService(&stubStore{}, nil, resolver)

	if svc.HasPermissionOnEntity(context.Background(), nil, authz.ResourceAtivo, authz.ActionRead, 10) {
		t.Fatalf("expected unauthenticated entity check to deny")
	}
	if resolver.calls != 0 {
		t.Fatalf("expected resolver not to be consulted, got %d calls", resolver.calls)
	}
}

func TestEffectivePermissions(t *testing.T) {
	store := &stubStore{perms: []authz.Permission{
		{Resource: authz.ResourceAtivo, Action: authz.ActionRead},
		{Resource: authz.ResourceAudit, Action: authz.ActionRead},
	}}
	svc := newService(store, nil)

	perms, err := svc.EffectivePermissions(context.Background(), user("ROLE_USER"))
	if err != nil {
		t.Fatalf("effective permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(perms))
	}

	if _, err := svc.EffectivePermissions(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil principal")
	}
}
