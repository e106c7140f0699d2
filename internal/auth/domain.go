package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials is returned for unknown emails, wrong passwords and inactive accounts alike.
	ErrInvalidCredentials = fmt.Errorf("auth: invalid credentials: %w", httpx.ErrUnauthorized)
	// ErrInvalidToken is returned for missing, malformed, expired or foreign bearer tokens.
	ErrInvalidToken = fmt.Errorf("auth: invalid token: %w", httpx.ErrUnauthorized)
)

// User is the account view needed to authenticate a request.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	IsStaff      bool
}

// Claims are the JWT claims carried by an access token. The subject is the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
