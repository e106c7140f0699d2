package audit

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

// Store writes events into audit_logs.
type Store struct {
	db db.Querier
}

// NewStore returns a new Store.
func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

// Insert persists the event. Re-delivered events are ignored by ID.
func (s *Store) Insert(ctx context.Context, e Event) error {
	if s == nil {
		return errors.New("audit store not initialised")
	}
	if e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return errors.New("audit event requires action/entity/entity_id")
	}
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var actor *int64
	if e.ActorID != 0 {
		actor = &e.ActorID
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID, actor, e.Action, e.Entity, e.EntityID, metaJSON, e.At)
	return err
}
