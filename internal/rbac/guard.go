package rbac

import (
	"context"
	"fmt"
	"net/http"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// GuardKind tags the check a Guard performs.
type GuardKind int

const (
	// KindResourcePermission consults the engine for the endpoint's (resource, action).
	KindResourcePermission GuardKind = iota + 1
	// KindOwnership lets safe methods through and requires the actor to own the object otherwise.
	KindOwnership
	// KindAdminOnly lets safe methods through and requires a staff actor otherwise.
	KindAdminOnly
)

func (k GuardKind) String() string {
	switch k {
	case KindResourcePermission:
		return "resource_permission"
	case KindOwnership:
		return "ownership"
	case KindAdminOnly:
		return "admin_only"
	default:
		return fmt.Sprintf("guard(%d)", int(k))
	}
}

// Guard is one authorization check in an endpoint policy.
type Guard struct {
	Kind GuardKind
}

// ResourcePermission returns the grant-table guard.
func ResourcePermission() Guard { return Guard{Kind: KindResourcePermission} }

// Ownership returns the object-owner guard.
func Ownership() Guard { return Guard{Kind: KindOwnership} }

// AdminOnly returns the staff guard.
func AdminOnly() Guard { return Guard{Kind: KindAdminOnly} }

// objectLevel reports whether the guard needs the loaded object.
func (g Guard) objectLevel() bool {
	return g.Kind == KindOwnership
}

// EndpointPolicy names what an endpoint requires. Every listed guard must pass, in order.
type EndpointPolicy struct {
	Resource string
	Action   string
	Guards   []Guard
}

// Policy builds an EndpointPolicy.
func Policy(resource, action string, guards ...Guard) EndpointPolicy {
	return EndpointPolicy{Resource: resource, Action: action, Guards: guards}
}

// Owned is implemented by objects that carry an owner reference.
type Owned interface {
	OwnerID() int64
}

// Authorizer evaluates endpoint policies for a principal.
type Authorizer struct {
	engine *Engine
}

// NewAuthorizer wraps the decision engine.
func NewAuthorizer(engine *Engine) *Authorizer {
	return &Authorizer{engine: engine}
}

// Engine exposes the underlying decision engine.
func (a *Authorizer) Engine() *Engine {
	return a.engine
}

// CheckRequest evaluates the request-level guards of policy. Object-level guards are skipped
// and must be checked with CheckObject once the object is loaded.
//
// It returns nil when access is allowed, ErrUnauthenticated when the caller precondition
// fails, ErrDenied on a negative decision and an ErrStoreFault wrapper when evaluation failed.
func (a *Authorizer) CheckRequest(ctx context.Context, policy EndpointPolicy, p *shared.Principal, method string) error {
	if err := requireActive(p); err != nil {
		return err
	}
	for _, g := range policy.Guards {
		if g.objectLevel() {
			continue
		}
		if err := a.check(ctx, g, policy, p, method, nil); err != nil {
			return err
		}
	}
	return nil
}

// CheckObject evaluates the object-level guards of policy against obj.
func (a *Authorizer) CheckObject(ctx context.Context, policy EndpointPolicy, p *shared.Principal, method string, obj Owned) error {
	if err := requireActive(p); err != nil {
		return err
	}
	for _, g := range policy.Guards {
		if !g.objectLevel() {
			continue
		}
		if err := a.check(ctx, g, policy, p, method, obj); err != nil {
			return err
		}
	}
	return nil
}

// Check evaluates every guard of policy, request-level first.
func (a *Authorizer) Check(ctx context.Context, policy EndpointPolicy, p *shared.Principal, method string, obj Owned) error {
	if err := a.CheckRequest(ctx, policy, p, method); err != nil {
		return err
	}
	return a.CheckObject(ctx, policy, p, method, obj)
}

func (a *Authorizer) check(ctx context.Context, g Guard, policy EndpointPolicy, p *shared.Principal, method string, obj Owned) error {
	switch g.Kind {
	case KindResourcePermission:
		ok, err := a.engine.IsAllowed(ctx, p.UserID, policy.Resource, policy.Action)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s on %s not granted", ErrDenied, policy.Action, policy.Resource)
		}
		return nil
	case KindOwnership:
		if IsSafeMethod(method) {
			return nil
		}
		if obj == nil || obj.OwnerID() != p.UserID {
			return fmt.Errorf("%w: only the owner may modify this object", ErrDenied)
		}
		return nil
	case KindAdminOnly:
		if IsSafeMethod(method) || p.IsStaff {
			return nil
		}
		return fmt.Errorf("%w: administrator required", ErrDenied)
	default:
		return fmt.Errorf("%w: unknown guard %s", ErrDenied, g.Kind)
	}
}

func requireActive(p *shared.Principal) error {
	if p == nil || p.UserID == 0 || !p.IsActive {
		return ErrUnauthenticated
	}
	return nil
}

// IsSafeMethod reports whether method is read-only.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
