package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides read-only access to the RBAC model. The engine never writes
// through it.
type Store interface {
	// PermissionsFor returns the union of permissions reachable through the
	// user's roles and groups. Group grants are indistinguishable from role
	// grants in the result.
	PermissionsFor(ctx context.Context, userID int64) ([]Permission, error)
	// FilialsFor returns the branch ids the user is entitled to through the
	// linked employee record. An empty result means no entitlement.
	FilialsFor(ctx context.Context, userID int64) ([]int64, error)
}

// PGStore implements Store against PostgreSQL with minimal projections.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// PermissionsFor loads role and group grants as a deduplicated union.
func (s *PGStore) PermissionsFor(ctx context.Context, userID int64) ([]Permission, error) {
	const query = `
		SELECT p.resource, p.action, COALESCE(p.context_key, '')
		FROM rbac_permission p
		JOIN rbac_role_permission rp ON rp.permission_id = p.id
		JOIN rbac_user_role ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		UNION
		SELECT p.resource, p.action, COALESCE(p.context_key, '')
		FROM rbac_permission p
		JOIN rbac_group_permission gp ON gp.permission_id = p.id
		JOIN rbac_user_group ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = $1`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Resource, &p.Action, &p.ContextKey); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// FilialsFor loads only the branch ids linked to the user's employee record.
func (s *PGStore) FilialsFor(ctx context.Context, userID int64) ([]int64, error) {
	const query = `
		SELECT ff.filial_id
		FROM funcionario_filiais ff
		JOIN usuarios u ON u.funcionario_id = ff.funcionario_id
		WHERE u.id = $1`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
