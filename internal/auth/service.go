package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/authz"
	"github.com/diogo-rp-menezes/aegispatrimonio-sub000/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
	rbac authz.Store
}

// NewService constructs a new Service.
func NewService(repo Repository, rbac authz.Store) *Service {
	return &Service{repo: repo, rbac: rbac}
}

// Authenticate validates email/password credentials. Every failure collapses
// to ErrInvalidCredentials so callers cannot tell which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active() {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Principal builds the immutable snapshot the engine evaluates against:
// identity, role and group names, and branch entitlements.
func (s *Service) Principal(ctx context.Context, userID int64) (*authz.Principal, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load user %d: %w", userID, err)
	}
	if !user.Active() {
		return nil, shared.ErrInvalidCredentials
	}
	roles, err := s.repo.RoleNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load roles: %w", err)
	}
	groups, err := s.repo.GroupNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load groups: %w", err)
	}
	filials, err := s.rbac.FilialsFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load branch entitlements: %w", err)
	}
	return &authz.Principal{
		ID:        user.ID,
		Email:     user.Email,
		Roles:     roles,
		Groups:    groups,
		FilialIDs: filials,
	}, nil
}
