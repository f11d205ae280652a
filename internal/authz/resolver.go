package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTargetNotFound signals that the entity a scope was requested for does not
// exist. Callers must convert it to a denial, never to a "not found" answer.
var ErrTargetNotFound = errors.New("authz: target not found")

// ScopeResolver resolves the branch scope of one resource type from an entity
// identifier. Implementations load only the scoping columns, nothing else.
type ScopeResolver interface {
	Resource() string
	// ResolveScope returns the entity's branch ids. A nil slice means the
	// entity exists but is not placed in any branch; the evaluator treats
	// it as absent context, so context-constrained grants cannot match and
	// only unconstrained grants (or the admin role) admit the action. An
	// empty non-nil slice is a present-but-empty branch set, which every
	// constrained grant satisfies vacuously. ErrTargetNotFound is returned
	// when the entity does not exist.
	ResolveScope(ctx context.Context, targetID int64) ([]int64, error)
}

// AtivoResolver resolves the owning branch of an asset.
type AtivoResolver struct {
	pool *pgxpool.Pool
}

// NewAtivoResolver constructs an AtivoResolver.
func NewAtivoResolver(pool *pgxpool.Pool) *AtivoResolver {
	return &AtivoResolver{pool: pool}
}

// Resource returns the resource tag this resolver serves.
func (r *AtivoResolver) Resource() string {
	return ResourceAtivo
}

// ResolveScope loads only the asset's branch id. An asset with a NULL
// filial_id yields a nil scope, so branch-constrained grants deny it.
func (r *AtivoResolver) ResolveScope(ctx context.Context, targetID int64) ([]int64, error) {
	var filialID pgtype.Int8
	err := r.pool.QueryRow(ctx, `SELECT filial_id FROM ativos WHERE id = $1`, targetID).Scan(&filialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTargetNotFound
		}
		return nil, err
	}
	if !filialID.Valid {
		return nil, nil
	}
	return []int64{filialID.Int64}, nil
}

// FuncionarioResolver resolves the branch set of an employee.
type FuncionarioResolver struct {
	pool *pgxpool.Pool
}

// NewFuncionarioResolver constructs a FuncionarioResolver.
func NewFuncionarioResolver(pool *pgxpool.Pool) *FuncionarioResolver {
	return &FuncionarioResolver{pool: pool}
}

// Resource returns the resource tag this resolver serves.
func (r *FuncionarioResolver) Resource() string {
	return ResourceFuncionario
}

// ResolveScope loads only the employee's branch ids. The employee row is
// checked first so a missing employee is distinct from one with no branches.
func (r *FuncionarioResolver) ResolveScope(ctx context.Context, targetID int64) ([]int64, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM funcionarios WHERE id = $1)`, targetID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTargetNotFound
	}
	rows, err := r.pool.Query(ctx, `SELECT filial_id FROM funcionario_filiais WHERE funcionario_id = $1`, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	// Non-nil so an employee without branches reads as an empty set, not as
	// an absent scope.
	ids := []int64{}
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
