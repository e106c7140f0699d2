package auth_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

type stubRepo struct {
	users map[int64]*auth.User
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (*auth.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}

func newAuthHandler(t *testing.T) (*auth.Handler, *stubRepo, *auth.Tokens) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubRepo{users: map[int64]*auth.User{
		1: {ID: 1, Email: "admin@test.local", PasswordHash: string(hashed), IsActive: true, IsStaff: true},
		2: {ID: 2, Email: "gone@test.local", PasswordHash: string(hashed), IsActive: false},
	}}
	tokens, err := auth.NewTokens(testSecret, "odyssey-rbac", time.Hour)
	require.NoError(t, err)
	return auth.NewHandler(slog.Default(), auth.NewService(repo, tokens)), repo, tokens
}

func login(h *auth.Handler, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestNewTokensRejectsShortSecret(t *testing.T) {
	_, err := auth.NewTokens("short", "", time.Hour)
	assert.Error(t, err)
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	h, _, tokens := newAuthHandler(t)

	rec := login(h, `{"email":"admin@test.local","password":"correctpass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Bearer", resp.TokenType)

	id, err := tokens.Verify(resp.AccessToken)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	assert.Equal(t, http.StatusUnauthorized, login(h, `{"email":"admin@test.local","password":"wrongpass"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(h, `{"email":"gone@test.local","password":"correctpass"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, login(h, `{"email":"nobody@test.local","password":"correctpass"}`).Code)
	assert.Equal(t, http.StatusBadRequest, login(h, `{"email":"not-an-email","password":"correctpass"}`).Code)
}

func protected(h *auth.Handler) http.Handler {
	return h.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := shared.PrincipalFromContext(r.Context())
		if p == nil {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	}))
}

func withBearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticateSetsPrincipal(t *testing.T) {
	h, repo, tokens := newAuthHandler(t)
	token, _, err := tokens.Issue(repo.users[1])
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	protected(h).ServeHTTP(rec, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	var p shared.Principal
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.EqualValues(t, 1, p.UserID)
	assert.True(t, p.IsStaff)
	assert.True(t, p.IsActive)
}

func TestAuthenticateRejects(t *testing.T) {
	h, repo, tokens := newAuthHandler(t)
	inactive, _, err := tokens.Issue(repo.users[2])
	require.NoError(t, err)
	unknown, _, err := tokens.Issue(&auth.User{ID: 99, Email: "ghost@test.local"})
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	foreignToken, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		Issuer:    "odyssey-rbac",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})
	expiredToken, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := map[string]string{
		"missing":        "",
		"garbage":        "not.a.token",
		"inactive user":  inactive,
		"unknown user":   unknown,
		"foreign issuer": foreignToken,
		"expired":        expiredToken,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			protected(h).ServeHTTP(rec, withBearer(token))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
