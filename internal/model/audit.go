package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SystemActor is the actor recorded for background jobs
var SystemActor = uuid.Nil

// AuditLog is an append-only record of a mutating action
type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	ActorID    uuid.UUID       `db:"actor_id" json:"actor_id"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID       `db:"entity_id" json:"entity_id"`
	ProjectID  *uuid.UUID      `db:"project_id" json:"project_id,omitempty"`
	Details    json.RawMessage `db:"details" json:"details"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Notification is a message for one profile
type Notification struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	ProfileID  uuid.UUID  `db:"profile_id" json:"profile_id"`
	Kind       string     `db:"kind" json:"kind"`
	Title      string     `db:"title" json:"title"`
	Body       string     `db:"body" json:"body"`
	EntityType string     `db:"entity_type" json:"entity_type"`
	EntityID   *uuid.UUID `db:"entity_id" json:"entity_id,omitempty"`
	ReadAt     *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
