package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
)

var (
	// ErrNotFound indicates that the requested user does not exist.
	ErrNotFound = fmt.Errorf("users: %w", httpx.ErrNotFound)
	// ErrDuplicateEmail indicates another account already uses the email.
	ErrDuplicateEmail = fmt.Errorf("users: email already taken: %w", httpx.ErrDuplicate)
	// ErrBlankField indicates a required profile field that is empty after trimming.
	ErrBlankField = fmt.Errorf("users: required profile field is blank: %w", httpx.ErrValidation)
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
	UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Deactivate soft-deletes an account. The row and its assignments stay so history is kept,
// but an inactive user is rejected before any permission check.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	return nil
}

// UpdateProfile applies a partial update to the caller's own profile. An empty update
// returns the current profile unchanged.
func (s *Service) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error) {
	in.FirstName = trimmed(in.FirstName)
	in.LastName = trimmed(in.LastName)
	in.MiddleName = trimmed(in.MiddleName)
	in.Email = trimmed(in.Email)
	if blank(in.FirstName) || blank(in.LastName) || blank(in.Email) {
		return User{}, ErrBlankField
	}
	if in.Empty() {
		return s.repo.GetUser(ctx, id)
	}
	return s.repo.UpdateProfile(ctx, id, in)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func blank(v *string) bool {
	return v != nil && *v == ""
}
