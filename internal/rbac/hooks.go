package rbac

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/odyssey-erp/odyssey-rbac/internal/audit"
)

// Invalidator drops cached decision inputs after grants or assignments change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, event audit.Event) error
}

// Hooks carries the post-mutation collaborators shared by every admin service. All fields
// are optional.
type Hooks struct {
	Invalidator Invalidator
	Auditor     Auditor
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Now returns the hook clock reading, defaulting to UTC wall time.
func (h Hooks) Now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

func (h Hooks) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Changed invalidates cached grants and then records an audit event. Neither step can fail
// the mutation that triggered it.
func (h Hooks) Changed(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if h.Invalidator != nil {
		if err := h.Invalidator.Invalidate(ctx); err != nil {
			h.logger().Warn("rbac invalidate cache", slog.String("action", action), slog.Any("error", err))
		}
	}
	h.Audited(ctx, actorID, action, entity, entityID, meta)
}

// Audited records an audit event without touching the grant cache.
func (h Hooks) Audited(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if h.Auditor == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	event := audit.NewEvent(actorID, action, entity, strconv.FormatInt(entityID, 10), meta, h.Now())
	if err := h.Auditor.Record(ctx, event); err != nil {
		h.logger().Warn("rbac audit record", slog.String("action", action), slog.Any("error", err))
	}
}
