package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	RoleNames(ctx context.Context, userID int64) ([]string, error)
	GroupNames(ctx context.Context, userID int64) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password, status, funcionario_id, criado_em, atualizado_em`

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id)
	return scanUser(row)
}

// RoleNames returns the names of the user's roles.
func (r *PGRepository) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return r.names(ctx,
		`SELECT ro.name FROM rbac_role ro
		 JOIN rbac_user_role ur ON ur.role_id = ro.id
		 WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
}

// GroupNames returns the names of the user's groups.
func (r *PGRepository) GroupNames(ctx context.Context, userID int64) ([]string, error) {
	return r.names(ctx,
		`SELECT g.name FROM rbac_group g
		 JOIN rbac_user_group ug ON ug.group_id = g.id
		 WHERE ug.user_id = $1 ORDER BY g.name`, userID)
}

func (r *PGRepository) names(ctx context.Context, query string, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var funcionarioID pgtype.Int8
	var createdAt, updatedAt pgtype.Timestamptz
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Status, &funcionarioID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if funcionarioID.Valid {
		user.FuncionarioID = &funcionarioID.Int64
	}
	if createdAt.Valid {
		user.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.Time
	}
	return &user, nil
}
