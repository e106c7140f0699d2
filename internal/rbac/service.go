package rbac

import (
	"context"
	"fmt"
)

// Service orchestrates grant and assignment operations.
type Service struct {
	store Store
	hooks Hooks
}

// NewService constructs a Service backed by the provided store.
func NewService(store Store, hooks Hooks) *Service {
	return &Service{store: store, hooks: hooks}
}

// ListGrants returns every permission grant.
func (s *Service) ListGrants(ctx context.Context) ([]Grant, error) {
	return s.store.ListGrants(ctx)
}

// GetGrant fetches a grant by ID.
func (s *Service) GetGrant(ctx context.Context, id int64) (Grant, error) {
	return s.store.GetGrant(ctx, id)
}

// CreateGrant grants action on resource to role. Duplicate triples are rejected.
func (s *Service) CreateGrant(ctx context.Context, actorID, roleID, resourceID, actionID int64) (Grant, error) {
	grant, err := s.store.CreateGrant(ctx, roleID, resourceID, actionID)
	if err != nil {
		return Grant{}, err
	}
	s.changed(ctx, actorID, "permission.grant", "permission", grant.ID, map[string]any{
		"role_id":     grant.RoleID,
		"resource_id": grant.ResourceID,
		"action_id":   grant.ActionID,
	})
	return grant, nil
}

// DeleteGrant revokes a grant.
func (s *Service) DeleteGrant(ctx context.Context, actorID, id int64) error {
	if err := s.store.DeleteGrant(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actorID, "permission.revoke", "permission", id, nil)
	return nil
}

// AssignRole binds role to user. Assigning a role the user already holds is not an error:
// the result reports Created=false and the original timestamp and assigner are kept.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) (AssignResult, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return AssignResult{}, err
	}
	if !exists {
		return AssignResult{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	roleName, err := s.store.RoleName(ctx, roleID)
	if err != nil {
		return AssignResult{}, err
	}
	assignment, created, err := s.store.InsertAssignment(ctx, userID, roleID, assignedBy, s.hooks.Now())
	if err != nil {
		return AssignResult{}, err
	}
	assignment.RoleName = roleName
	result := AssignResult{Created: created, RoleName: roleName, Assignment: assignment}
	if created {
		var actor int64
		if assignedBy != nil {
			actor = *assignedBy
		}
		s.changed(ctx, actor, "role.assign", "user_role", assignment.ID, map[string]any{
			"user_id": userID,
			"role_id": roleID,
		})
	}
	return result, nil
}

// RemoveRole unbinds role from user. It fails with ErrNotFound when the user does not exist
// or never held the role.
func (s *Service) RemoveRole(ctx context.Context, actorID, userID, roleID int64) error {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	removed, err := s.store.DeleteAssignment(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: user %d does not hold role %d", ErrNotFound, userID, roleID)
	}
	s.changed(ctx, actorID, "role.remove", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// ListUserRoles returns the assignments held by a user.
func (s *Service) ListUserRoles(ctx context.Context, userID int64) ([]Assignment, error) {
	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return s.store.ListAssignments(ctx, userID)
}

// ListAssignments returns every assignment.
func (s *Service) ListAssignments(ctx context.Context) ([]Assignment, error) {
	return s.store.ListAssignments(ctx, 0)
}

// GetAssignment fetches an assignment by ID.
func (s *Service) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	return s.store.GetAssignment(ctx, id)
}

// DeleteAssignment removes an assignment by ID.
func (s *Service) DeleteAssignment(ctx context.Context, actorID, id int64) error {
	a, err := s.store.DeleteAssignmentByID(ctx, id)
	if err != nil {
		return err
	}
	s.changed(ctx, actorID, "role.remove", "user", a.UserID, map[string]any{"role_id": a.RoleID})
	return nil
}

// EffectiveGrants returns the deduplicated (resource, action) pairs a user holds.
func (s *Service) EffectiveGrants(ctx context.Context, userID int64) ([]GrantKey, error) {
	return s.store.UserGrants(ctx, userID)
}

func (s *Service) changed(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	s.hooks.Changed(ctx, actorID, action, entity, entityID, meta)
}
