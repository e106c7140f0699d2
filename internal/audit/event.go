// Package audit records administrative changes to the access-control tables.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event is one audited change.
type Event struct {
	ID       uuid.UUID      `json:"id"`
	ActorID  int64          `json:"actor_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// NewEvent stamps a fresh event ID.
func NewEvent(actorID int64, action, entity, entityID string, meta map[string]any, at time.Time) Event {
	return Event{
		ID:       uuid.New(),
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
		At:       at,
	}
}
