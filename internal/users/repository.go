package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

const userColumns = `id, email, username, first_name, last_name, middle_name, is_active, is_staff, created_at, updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// GetUser fetches a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: get %d: %w", id, err)
	}
	return user, nil
}

// SetActive flips the active flag and returns the updated user.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userColumns, id, active))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("users: set active %d: %w", id, err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of in.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `
UPDATE users SET
    first_name  = COALESCE($2, first_name),
    last_name   = COALESCE($3, last_name),
    middle_name = COALESCE($4, middle_name),
    email       = COALESCE($5, email),
    updated_at  = NOW()
WHERE id = $1
RETURNING `+userColumns, id, in.FirstName, in.LastName, in.MiddleName, in.Email))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return User{}, ErrNotFound
		case db.IsUniqueViolation(err):
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("users: update profile %d: %w", id, err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.MiddleName,
		&u.IsActive, &u.IsStaff, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

var _ RepositoryPort = (*Repository)(nil)
