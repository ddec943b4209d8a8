package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// ConnectionStatus is the state of an introduction request
type ConnectionStatus string

const (
	ConnectionPending   ConnectionStatus = "pending"
	ConnectionAccepted  ConnectionStatus = "accepted"
	ConnectionRejected  ConnectionStatus = "rejected"
	ConnectionWithdrawn ConnectionStatus = "withdrawn"
)

var connectionTransitions = transitions[ConnectionStatus]{
	ConnectionPending: {ConnectionAccepted, ConnectionRejected, ConnectionWithdrawn},
}

// CanTransitionTo reports whether s may move to next
func (s ConnectionStatus) CanTransitionTo(next ConnectionStatus) bool {
	return connectionTransitions.allows(s, next)
}

// Connection is a bilateral relationship request between two profiles
type Connection struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	RequesterID uuid.UUID        `db:"requester_id" json:"requester_id"`
	RecipientID uuid.UUID        `db:"recipient_id" json:"recipient_id"`
	Message     string           `db:"message" json:"message"`
	Status      ConnectionStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Involves reports whether the profile is either side of the connection
func (c *Connection) Involves(profileID uuid.UUID) bool {
	return c.RequesterID == profileID || c.RecipientID == profileID
}

// Counterpart returns the other side of the connection from profileID
func (c *Connection) Counterpart(profileID uuid.UUID) uuid.UUID {
	if c.RequesterID == profileID {
		return c.RecipientID
	}
	return c.RequesterID
}

// Validate checks connection fields
func (c *Connection) Validate() error {
	ve := validation.NewValidationErrors()
	if c.RecipientID == uuid.Nil {
		ve.Add("recipient_id", "is required")
	} else if c.RecipientID == c.RequesterID {
		ve.Add("recipient_id", "cannot connect to yourself")
	}
	ve.MaxLength("message", c.Message, 2000)
	return ve.ErrOrNil()
}
