// Package auth authenticates users and builds the principal snapshot the
// authorization engine evaluates against.
package auth

import "time"

// User statuses as stored in usuarios.status.
const (
	StatusAtivo   = "ATIVO"
	StatusInativo = "INATIVO"
)

// User is an account row, loaded for authentication only.
type User struct {
	ID            int64
	Email         string
	PasswordHash  string
	Status        string
	FuncionarioID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u != nil && u.Status == StatusAtivo
}
