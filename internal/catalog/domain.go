// Package catalog manages the resource and action vocabularies that permission grants refer to.
package catalog

import "time"

// Resource is a named protected domain such as "posts".
type Resource struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Action is a named verb such as "read" or "update".
type Action struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Input carries the writable fields shared by resources and actions.
type Input struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}
