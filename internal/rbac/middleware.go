package rbac

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// Enforce evaluates the request-level guards of policy before calling next.
func (m Middleware) Enforce(policy EndpointPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if err := m.Authorizer.CheckRequest(r.Context(), policy, p, r.Method); err != nil {
				m.reject(w, r, policy, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require guards an endpoint with the grant for (resource, action).
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return m.Enforce(Policy(resource, action, ResourcePermission()))
}

// AdminOnly lets any authenticated user read and only staff write.
func (m Middleware) AdminOnly() func(http.Handler) http.Handler {
	return m.Enforce(Policy("", "", AdminOnly()))
}

// AuthorizeObject runs the object-level guards of policy. On rejection it writes the
// response and returns false.
func (m Middleware) AuthorizeObject(w http.ResponseWriter, r *http.Request, policy EndpointPolicy, obj Owned) bool {
	p := shared.PrincipalFromContext(r.Context())
	if err := m.Authorizer.CheckObject(r.Context(), policy, p, r.Method, obj); err != nil {
		m.reject(w, r, policy, err)
		return false
	}
	return true
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, policy EndpointPolicy, err error) {
	if m.Logger != nil {
		attrs := []any{
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.String("resource", policy.Resource),
			slog.String("action", policy.Action),
			slog.Any("error", err),
		}
		if errors.Is(err, ErrStoreFault) {
			m.Logger.Error("rbac could not evaluate", attrs...)
		} else {
			m.Logger.Debug("rbac rejected", attrs...)
		}
	}
	httpx.RespondError(w, err)
}
