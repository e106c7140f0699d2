package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

var (
	// ErrNotFound indicates that the requested role does not exist.
	ErrNotFound = fmt.Errorf("roles: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates that another role already uses the name.
	ErrDuplicate = fmt.Errorf("roles: name already taken: %w", httpx.ErrDuplicate)
	// ErrInvalid indicates an empty role name.
	ErrInvalid = fmt.Errorf("roles: name is required: %w", httpx.ErrValidation)
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, in RoleInput) (Role, error)
	UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	hooks rbac.Hooks
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hooks rbac.Hooks) *Service {
	return &Service{repo: repo, hooks: hooks}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a single role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole adds a role. A new role holds no grants, so the decision cache is untouched.
func (s *Service) CreateRole(ctx context.Context, actorID int64, in RoleInput) (Role, error) {
	in, err := clean(in)
	if err != nil {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, in)
	if err != nil {
		return Role{}, err
	}
	s.hooks.Audited(ctx, actorID, "role.create", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, in RoleInput) (Role, error) {
	in, err := clean(in)
	if err != nil {
		return Role{}, err
	}
	role, err := s.repo.UpdateRole(ctx, id, in)
	if err != nil {
		return Role{}, err
	}
	s.hooks.Audited(ctx, actorID, "role.update", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role together with its grants and assignments.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.hooks.Changed(ctx, actorID, "role.delete", "role", id, nil)
	return nil
}

func clean(in RoleInput) (RoleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, ErrInvalid
	}
	return in, nil
}
