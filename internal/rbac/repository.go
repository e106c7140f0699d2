package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

// PGStore implements Store on PostgreSQL. Cascades on role, resource, action and user
// deletion are declared as foreign key actions in the schema.
type PGStore struct {
	db db.Querier
}

// NewPGStore constructs a PostgreSQL store.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{db: q}
}

var _ Store = (*PGStore)(nil)

// HasGrant runs the engine's existence query over user_roles × permissions.
func (s *PGStore) HasGrant(ctx context.Context, userID int64, resource, action string) (bool, error) {
	const q = `
SELECT EXISTS (
    SELECT 1
    FROM user_roles ur
    JOIN permissions p ON p.role_id = ur.role_id
    JOIN resources r ON r.id = p.resource_id
    JOIN actions a ON a.id = p.action_id
    WHERE ur.user_id = $1 AND r.name = $2 AND a.name = $3
)`
	var ok bool
	if err := s.db.QueryRow(ctx, q, userID, resource, action).Scan(&ok); err != nil {
		return false, fmt.Errorf("rbac: has grant: %w", err)
	}
	return ok, nil
}

// UserGrants lists the distinct (resource, action) pairs granted to a user.
func (s *PGStore) UserGrants(ctx context.Context, userID int64) ([]GrantKey, error) {
	const q = `
SELECT DISTINCT r.name, a.name
FROM user_roles ur
JOIN permissions p ON p.role_id = ur.role_id
JOIN resources r ON r.id = p.resource_id
JOIN actions a ON a.id = p.action_id
WHERE ur.user_id = $1
ORDER BY r.name, a.name`
	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: user grants: %w", err)
	}
	defer rows.Close()
	var keys []GrantKey
	for rows.Next() {
		var k GrantKey
		if err := rows.Scan(&k.Resource, &k.Action); err != nil {
			return nil, fmt.Errorf("rbac: scan grant key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UserExists reports whether a user row exists.
func (s *PGStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("rbac: user exists: %w", err)
	}
	return ok, nil
}

// RoleName resolves a role id.
func (s *PGStore) RoleName(ctx context.Context, id int64) (string, error) {
	var name string
	if err := s.db.QueryRow(ctx, `SELECT name FROM roles WHERE id = $1`, id).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: role %d", ErrNotFound, id)
		}
		return "", fmt.Errorf("rbac: role name: %w", err)
	}
	return name, nil
}

const grantSelect = `
SELECT p.id, p.role_id, ro.name, p.resource_id, r.name, p.action_id, a.name, p.created_at
FROM permissions p
JOIN roles ro ON ro.id = p.role_id
JOIN resources r ON r.id = p.resource_id
JOIN actions a ON a.id = p.action_id`

// ListGrants returns all grants ordered by role, resource and action.
func (s *PGStore) ListGrants(ctx context.Context) ([]Grant, error) {
	rows, err := s.db.Query(ctx, grantSelect+` ORDER BY ro.name, r.name, a.name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list grants: %w", err)
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GetGrant fetches a grant by ID.
func (s *PGStore) GetGrant(ctx context.Context, id int64) (Grant, error) {
	g, err := scanGrant(s.db.QueryRow(ctx, grantSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Grant{}, fmt.Errorf("%w: permission %d", ErrNotFound, id)
		}
		return Grant{}, fmt.Errorf("rbac: get grant: %w", err)
	}
	return g, nil
}

// CreateGrant inserts the triple. The unique constraint rejects duplicates.
func (s *PGStore) CreateGrant(ctx context.Context, roleID, resourceID, actionID int64) (Grant, error) {
	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO permissions (role_id, resource_id, action_id) VALUES ($1, $2, $3) RETURNING id`,
		roleID, resourceID, actionID).Scan(&id)
	switch {
	case err == nil:
	case db.IsUniqueViolation(err):
		return Grant{}, ErrDuplicateGrant
	case db.IsForeignKeyViolation(err):
		return Grant{}, fmt.Errorf("%w: role, resource or action", ErrNotFound)
	default:
		return Grant{}, fmt.Errorf("rbac: create grant: %w", err)
	}
	return s.GetGrant(ctx, id)
}

// DeleteGrant removes a grant by ID.
func (s *PGStore) DeleteGrant(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rbac: delete grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: permission %d", ErrNotFound, id)
	}
	return nil
}

const assignmentSelect = `
SELECT ur.id, ur.user_id, ur.role_id, ro.name, ur.assigned_at, ur.assigned_by
FROM user_roles ur
JOIN roles ro ON ro.id = ur.role_id`

// ListAssignments lists assignments for a user, or all when userID is 0.
func (s *PGStore) ListAssignments(ctx context.Context, userID int64) ([]Assignment, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userID == 0 {
		rows, err = s.db.Query(ctx, assignmentSelect+` ORDER BY ur.user_id, ro.name`)
	} else {
		rows, err = s.db.Query(ctx, assignmentSelect+` WHERE ur.user_id = $1 ORDER BY ro.name`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("rbac: list assignments: %w", err)
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAssignment fetches an assignment by ID.
func (s *PGStore) GetAssignment(ctx context.Context, id int64) (Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(ctx, assignmentSelect+` WHERE ur.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
		}
		return Assignment{}, fmt.Errorf("rbac: get assignment: %w", err)
	}
	return a, nil
}

// InsertAssignment is a single conditional insert guarded by the (user_id, role_id) unique
// constraint. On conflict nothing is written and the existing row is read back. A conflicting
// row removed before the read-back gets one more insert attempt.
func (s *PGStore) InsertAssignment(ctx context.Context, userID, roleID int64, assignedBy *int64, at time.Time) (Assignment, bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		a := Assignment{UserID: userID, RoleID: roleID}
		err := s.db.QueryRow(ctx,
			`INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, role_id) DO NOTHING
			 RETURNING id, assigned_at, assigned_by`,
			userID, roleID, at, assignedBy).Scan(&a.ID, &a.AssignedAt, &a.AssignedBy)
		switch {
		case err == nil:
			return a, true, nil
		case errors.Is(err, pgx.ErrNoRows):
		case db.IsForeignKeyViolation(err):
			return Assignment{}, false, fmt.Errorf("%w: user %d or role %d", ErrNotFound, userID, roleID)
		default:
			return Assignment{}, false, fmt.Errorf("rbac: insert assignment: %w", err)
		}
		existing, err := scanAssignment(s.db.QueryRow(ctx,
			assignmentSelect+` WHERE ur.user_id = $1 AND ur.role_id = $2`, userID, roleID))
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, false, fmt.Errorf("rbac: read existing assignment: %w", err)
		}
	}
	return Assignment{}, false, fmt.Errorf("%w: assignment of role %d to user %d kept changing", ErrStoreFault, roleID, userID)
}

// DeleteAssignment removes the (user, role) binding.
func (s *PGStore) DeleteAssignment(ctx context.Context, userID, roleID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return false, fmt.Errorf("rbac: delete assignment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAssignmentByID removes an assignment and returns the deleted row.
func (s *PGStore) DeleteAssignmentByID(ctx context.Context, id int64) (Assignment, error) {
	var a Assignment
	err := s.db.QueryRow(ctx,
		`DELETE FROM user_roles WHERE id = $1 RETURNING id, user_id, role_id, assigned_at, assigned_by`, id).
		Scan(&a.ID, &a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, fmt.Errorf("%w: assignment %d", ErrNotFound, id)
		}
		return Assignment{}, fmt.Errorf("rbac: delete assignment: %w", err)
	}
	return a, nil
}

func scanGrant(row pgx.Row) (Grant, error) {
	var g Grant
	err := row.Scan(&g.ID, &g.RoleID, &g.RoleName, &g.ResourceID, &g.ResourceName, &g.ActionID, &g.ActionName, &g.CreatedAt)
	return g, err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.UserID, &a.RoleID, &a.RoleName, &a.AssignedAt, &a.AssignedBy)
	return a, err
}
