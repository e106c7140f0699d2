package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

var (
	// ErrResourceNotFound indicates that the requested resource does not exist.
	ErrResourceNotFound = fmt.Errorf("catalog: resource %w", httpx.ErrNotFound)
	// ErrActionNotFound indicates that the requested action does not exist.
	ErrActionNotFound = fmt.Errorf("catalog: action %w", httpx.ErrNotFound)
	// ErrDuplicateName indicates that the normalized name is already taken.
	ErrDuplicateName = fmt.Errorf("catalog: name already taken: %w", httpx.ErrDuplicate)
	// ErrInvalidName indicates a name that is empty after normalization.
	ErrInvalidName = fmt.Errorf("catalog: name is required: %w", httpx.ErrValidation)
)

// RepositoryPort defines data access methods for the catalog.
type RepositoryPort interface {
	ListResources(ctx context.Context) ([]Resource, error)
	GetResource(ctx context.Context, id int64) (Resource, error)
	CreateResource(ctx context.Context, in Input) (Resource, error)
	UpdateResource(ctx context.Context, id int64, in Input) (Resource, error)
	DeleteResource(ctx context.Context, id int64) error

	ListActions(ctx context.Context) ([]Action, error)
	GetAction(ctx context.Context, id int64) (Action, error)
	CreateAction(ctx context.Context, in Input) (Action, error)
	UpdateAction(ctx context.Context, id int64, in Input) (Action, error)
	DeleteAction(ctx context.Context, id int64) error
}

// Service manages resources and actions. Names are stored normalized so that a grant on
// "Posts" and a check for "posts" refer to the same row.
type Service struct {
	repo  RepositoryPort
	hooks rbac.Hooks
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hooks rbac.Hooks) *Service {
	return &Service{repo: repo, hooks: hooks}
}

// ListResources returns all resources.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.repo.ListResources(ctx)
}

// GetResource returns one resource.
func (s *Service) GetResource(ctx context.Context, id int64) (Resource, error) {
	return s.repo.GetResource(ctx, id)
}

// CreateResource adds a resource.
func (s *Service) CreateResource(ctx context.Context, actorID int64, in Input) (Resource, error) {
	in, err := normalize(in)
	if err != nil {
		return Resource{}, err
	}
	res, err := s.repo.CreateResource(ctx, in)
	if err != nil {
		return Resource{}, err
	}
	s.hooks.Audited(ctx, actorID, "resource.create", "resource", res.ID, map[string]any{"name": res.Name})
	return res, nil
}

// UpdateResource renames a resource. Renaming changes which checks its grants satisfy.
func (s *Service) UpdateResource(ctx context.Context, actorID, id int64, in Input) (Resource, error) {
	in, err := normalize(in)
	if err != nil {
		return Resource{}, err
	}
	res, err := s.repo.UpdateResource(ctx, id, in)
	if err != nil {
		return Resource{}, err
	}
	s.hooks.Changed(ctx, actorID, "resource.update", "resource", res.ID, map[string]any{"name": res.Name})
	return res, nil
}

// DeleteResource removes a resource and its grants.
func (s *Service) DeleteResource(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteResource(ctx, id); err != nil {
		return err
	}
	s.hooks.Changed(ctx, actorID, "resource.delete", "resource", id, nil)
	return nil
}

// ListActions returns all actions.
func (s *Service) ListActions(ctx context.Context) ([]Action, error) {
	return s.repo.ListActions(ctx)
}

// GetAction returns one action.
func (s *Service) GetAction(ctx context.Context, id int64) (Action, error) {
	return s.repo.GetAction(ctx, id)
}

// CreateAction adds an action.
func (s *Service) CreateAction(ctx context.Context, actorID int64, in Input) (Action, error) {
	in, err := normalize(in)
	if err != nil {
		return Action{}, err
	}
	act, err := s.repo.CreateAction(ctx, in)
	if err != nil {
		return Action{}, err
	}
	s.hooks.Audited(ctx, actorID, "action.create", "action", act.ID, map[string]any{"name": act.Name})
	return act, nil
}

// UpdateAction renames an action.
func (s *Service) UpdateAction(ctx context.Context, actorID, id int64, in Input) (Action, error) {
	in, err := normalize(in)
	if err != nil {
		return Action{}, err
	}
	act, err := s.repo.UpdateAction(ctx, id, in)
	if err != nil {
		return Action{}, err
	}
	s.hooks.Changed(ctx, actorID, "action.update", "action", act.ID, map[string]any{"name": act.Name})
	return act, nil
}

// DeleteAction removes an action and its grants.
func (s *Service) DeleteAction(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteAction(ctx, id); err != nil {
		return err
	}
	s.hooks.Changed(ctx, actorID, "action.delete", "action", id, nil)
	return nil
}

func normalize(in Input) (Input, error) {
	in.Name = shared.NormalizeName(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, ErrInvalidName
	}
	return in, nil
}
