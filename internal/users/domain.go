package users

import "time"

// User represents an account known to the access-control layer.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	MiddleName string    `json:"middle_name,omitempty"`
	IsActive   bool      `json:"is_active"`
	IsStaff    bool      `json:"is_staff"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	FirstName  *string `json:"first_name" validate:"omitempty,min=1,max=150"`
	LastName   *string `json:"last_name" validate:"omitempty,min=1,max=150"`
	MiddleName *string `json:"middle_name" validate:"omitempty,max=150"`
	Email      *string `json:"email" validate:"omitempty,email,max=254"`
}

// Empty reports whether the update touches no field.
func (in ProfileInput) Empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.MiddleName == nil && in.Email == nil
}
