// Package authz implements the contextual authorization engine: effective
// permission computation over roles and groups, per-permission branch scoping,
// tenant isolation at the request boundary, and decision auditing hooks.
package authz

import "slices"

// Resource tags understood by the engine. Handlers may pass any tag; these
// constants cover the resources the engine resolves scope for.
const (
	ResourceAtivo       = "ATIVO"
	ResourceFuncionario = "FUNCIONARIO"
	ResourceAudit       = "AUDIT"
	ResourcePermission  = "PERMISSION"
)

// Action tags.
const (
	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// RoleAdmin is the distinguished role that bypasses every check.
const RoleAdmin = "ROLE_ADMIN"

// ContextKeyFilial names the branch-scoping dimension a permission may be
// restricted to.
const ContextKeyFilial = "filialId"

// Permission is a grant of an action on a resource, optionally restricted to
// a tenant-scoping dimension. An empty ContextKey means the grant applies
// regardless of scope.
type Permission struct {
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	ContextKey string `json:"contextKey,omitempty"`
}

// RequiresContext reports whether the permission only applies within a scope.
func (p Permission) RequiresContext() bool {
	return p.ContextKey != ""
}

// Principal is the immutable snapshot of an authenticated actor, built once
// at session resolution. A nil *Principal means the caller is unauthenticated.
type Principal struct {
	ID     int64
	Email  string
	Roles  []string
	Groups []string
	// FilialIDs is the branch entitlement attached via the employee record.
	// Nil when the user has no linked employee.
	FilialIDs []int64
}

// HasRole reports whether the principal holds the named role.
func (p *Principal) HasRole(name string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, name)
}

// IsAdmin reports whether the principal holds the administrator role.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// Decision is the outcome of one evaluation. Reason is only populated on
// denials; it feeds the audit trail and is never returned to API clients.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision carrying the reason for the audit detail.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Event describes one decision handed to the audit recorder.
type Event struct {
	PrincipalEmail string
	Resource       string
	Action         string
	Scope          []int64
	Allowed        bool
	Detail         string
}
