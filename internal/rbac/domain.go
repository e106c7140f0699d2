package rbac

import "time"

// Grant binds one role to one (resource, action) pair.
type Grant struct {
	ID           int64     `json:"id"`
	RoleID       int64     `json:"role_id"`
	RoleName     string    `json:"role_name"`
	ResourceID   int64     `json:"resource_id"`
	ResourceName string    `json:"resource_name"`
	ActionID     int64     `json:"action_id"`
	ActionName   string    `json:"action_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// GrantKey is the (resource, action) pair a grant authorizes, by name.
type GrantKey struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Assignment links a user to a role. AssignedBy is nil when the assigner is unknown or was removed.
type Assignment struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RoleID     int64     `json:"role_id"`
	RoleName   string    `json:"role_name"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy *int64    `json:"assigned_by"`
}

// AssignResult reports the outcome of an idempotent role assignment.
type AssignResult struct {
	Created    bool       `json:"created"`
	RoleName   string     `json:"role_name"`
	Assignment Assignment `json:"assignment"`
}

// Message renders the human readable outcome.
func (r AssignResult) Message() string {
	if r.Created {
		return "role " + r.RoleName + " assigned to user"
	}
	return "user already holds role " + r.RoleName
}
