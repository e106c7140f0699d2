package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// UnscopedPolicy decides checks that name no resource or no action.
type UnscopedPolicy int

const (
	// UnscopedDeny rejects unscoped checks. Public endpoints must declare no guard instead.
	UnscopedDeny UnscopedPolicy = iota
	// UnscopedAllow keeps the legacy default-open behavior for unscoped checks.
	UnscopedAllow
)

// ParseUnscopedPolicy maps the configuration value to a policy.
func ParseUnscopedPolicy(raw string) (UnscopedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "deny":
		return UnscopedDeny, nil
	case "allow":
		return UnscopedAllow, nil
	default:
		return UnscopedDeny, fmt.Errorf("rbac: unknown unscoped policy %q", raw)
	}
}

func (p UnscopedPolicy) String() string {
	if p == UnscopedAllow {
		return "allow"
	}
	return "deny"
}

// Decision outcomes reported to the observer.
const (
	OutcomeAllow    = "allow"
	OutcomeDeny     = "deny"
	OutcomeFault    = "fault"
	OutcomeUnscoped = "unscoped"
)

// DecisionObserver receives one call per evaluated decision.
type DecisionObserver interface {
	ObserveDecision(resource, action, outcome string)
}

// Engine evaluates (user, resource, action) triples against the grant table.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	grants   GrantReader
	unscoped UnscopedPolicy
	observer DecisionObserver
	logger   *slog.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithUnscopedPolicy sets how unscoped checks are decided.
func WithUnscopedPolicy(p UnscopedPolicy) EngineOption {
	return func(e *Engine) { e.unscoped = p }
}

// WithObserver attaches a decision observer such as the metrics collector.
func WithObserver(o DecisionObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithLogger attaches a logger for store faults.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an Engine reading grants from the given source.
func NewEngine(grants GrantReader, opts ...EngineOption) *Engine {
	e := &Engine{grants: grants, unscoped: UnscopedDeny}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UnscopedPolicy reports the configured policy.
func (e *Engine) UnscopedPolicy() UnscopedPolicy {
	return e.unscoped
}

// IsAllowed reports whether userID holds a role granting action on resource.
//
// A non-nil error always comes with false and wraps ErrStoreFault, so callers can tell
// "not permitted" apart from "could not evaluate".
func (e *Engine) IsAllowed(ctx context.Context, userID int64, resource, action string) (allowed bool, err error) {
	resource = shared.NormalizeName(resource)
	action = shared.NormalizeName(action)

	if resource == "" || action == "" {
		allowed = e.unscoped == UnscopedAllow
		e.observe(resource, action, OutcomeUnscoped)
		return allowed, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			allowed = false
			err = fmt.Errorf("%w: panic during evaluation: %v", ErrStoreFault, rec)
			e.fault(userID, resource, action, err)
		}
	}()

	ok, err := e.grants.HasGrant(ctx, userID, resource, action)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrStoreFault, err)
		e.fault(userID, resource, action, err)
		return false, err
	}
	if ok {
		e.observe(resource, action, OutcomeAllow)
		return true, nil
	}
	e.observe(resource, action, OutcomeDeny)
	return false, nil
}

func (e *Engine) fault(userID int64, resource, action string, err error) {
	e.observe(resource, action, OutcomeFault)
	if e.logger != nil {
		e.logger.Error("rbac evaluate",
			slog.Int64("user_id", userID),
			slog.String("resource", resource),
			slog.String("action", action),
			slog.Any("error", err))
	}
}

func (e *Engine) observe(resource, action, outcome string) {
	if e.observer != nil {
		e.observer.ObserveDecision(resource, action, outcome)
	}
}
