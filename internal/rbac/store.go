package rbac

import (
	"context"
	"time"
)

// GrantReader answers the single question the decision engine asks.
type GrantReader interface {
	// HasGrant reports whether any role assigned to userID grants (resource, action).
	// Names are matched after NormalizeName.
	HasGrant(ctx context.Context, userID int64, resource, action string) (bool, error)
}

// GrantLister returns every (resource, action) pair a user holds through its roles.
type GrantLister interface {
	UserGrants(ctx context.Context, userID int64) ([]GrantKey, error)
}

// Store is the persistence port for grants and assignments.
type Store interface {
	GrantReader
	GrantLister

	UserExists(ctx context.Context, id int64) (bool, error)
	// RoleName resolves a role id, returning ErrNotFound when it does not exist.
	RoleName(ctx context.Context, id int64) (string, error)

	ListGrants(ctx context.Context) ([]Grant, error)
	GetGrant(ctx context.Context, id int64) (Grant, error)
	// CreateGrant returns ErrDuplicateGrant when the triple already exists and ErrNotFound
	// when one of the referenced rows is missing.
	CreateGrant(ctx context.Context, roleID, resourceID, actionID int64) (Grant, error)
	DeleteGrant(ctx context.Context, id int64) error

	// ListAssignments lists assignments for userID, or all of them when userID is 0.
	ListAssignments(ctx context.Context, userID int64) ([]Assignment, error)
	GetAssignment(ctx context.Context, id int64) (Assignment, error)
	// InsertAssignment creates the (user, role) binding unless it exists. It must be a single
	// atomic conditional insert; created is false when the binding was already held, in which
	// case the stored row is returned untouched.
	InsertAssignment(ctx context.Context, userID, roleID int64, assignedBy *int64, at time.Time) (a Assignment, created bool, err error)
	// DeleteAssignment removes the binding, reporting whether a row existed.
	DeleteAssignment(ctx context.Context, userID, roleID int64) (bool, error)
	DeleteAssignmentByID(ctx context.Context, id int64) (Assignment, error)
}
