package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// ConnectionService manages introductions between profiles
type ConnectionService struct{ *base }

// ConnectionInput is a connection request
type ConnectionInput struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Message     string    `json:"message"`
}

// List returns the caller's connections in direction
func (s *ConnectionService) List(ctx context.Context, p *auth.Principal, direction string, opts store.ListOptions) ([]model.Connection, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	if direction == "" {
		direction = store.DirectionAll
	}
	conns, err := s.store.ListConnections(ctx, p.ID, direction, opts)
	return conns, wrap(err, "connection")
}

// Get returns a connection the caller is part of
func (s *ConnectionService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Connection, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	c, err := s.store.GetConnection(ctx, id)
	if err != nil {
		return nil, wrap(err, "connection")
	}
	if !auth.CanViewConnection(p, c) {
		return nil, NotFound("connection")
	}
	return c, nil
}

// Request asks the recipient to connect. Only one pending or accepted
// connection may exist between two profiles.
func (s *ConnectionService) Request(ctx context.Context, p *auth.Principal, in ConnectionInput) (*model.Connection, error) {
	if err := authorize(p, auth.ConnectionsWrite); err != nil {
		return nil, err
	}
	c := &model.Connection{
		RequesterID: p.ID,
		RecipientID: in.RecipientID,
		Message:     in.Message,
		Status:      model.ConnectionPending,
	}
	if err := c.Validate(); err != nil {
		return nil, wrap(err, "connection")
	}

	if _, err := s.store.GetProfile(ctx, c.RecipientID); err != nil {
		if store.IsNotFound(err) {
			return nil, InvalidField("recipient_id", "does not exist")
		}
		return nil, wrap(err, "profile")
	}
	exists, err := s.store.ActiveConnectionExists(ctx, c.RequesterID, c.RecipientID)
	if err != nil {
		return nil, wrap(err, "connection")
	}
	if exists {
		return nil, Conflict("a pending or accepted connection already exists")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateConnection(ctx, c); err != nil {
			if store.IsUniqueViolation(err) {
				return Conflict("a pending or accepted connection already exists")
			}
			return err
		}
		if err := t.audit(ctx, "connection.requested", "connection", c.ID, nil, detail("recipient_id", c.RecipientID)); err != nil {
			return err
		}
		return t.notify(ctx, c.RecipientID, "connection.requested",
			"New connection request", c.Message, "connection", c.ID)
	})
	if err != nil {
		return nil, wrap(err, "connection")
	}
	return c, nil
}

// Respond accepts or rejects a pending request addressed to the caller
func (s *ConnectionService) Respond(ctx context.Context, p *auth.Principal, id uuid.UUID, accept bool) (*model.Connection, error) {
	to := model.ConnectionRejected
	if accept {
		to = model.ConnectionAccepted
	}
	return s.transition(ctx, p, id, to, func(c *model.Connection) bool { return c.RecipientID == p.ID },
		"only the recipient may respond")
}

// Withdraw cancels a pending request the caller sent
func (s *ConnectionService) Withdraw(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Connection, error) {
	return s.transition(ctx, p, id, model.ConnectionWithdrawn, func(c *model.Connection) bool { return c.RequesterID == p.ID },
		"only the requester may withdraw")
}

func (s *ConnectionService) transition(ctx context.Context, p *auth.Principal, id uuid.UUID, to model.ConnectionStatus, allowed func(*model.Connection) bool, denied string) (*model.Connection, error) {
	if err := authorize(p, auth.ConnectionsWrite); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !allowed(c) {
		return nil, Forbidden(denied)
	}
	if !c.Status.CanTransitionTo(to) {
		return nil, Conflict("connection is " + string(c.Status))
	}

	from := c.Status
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.TransitionConnection(ctx, c, to); err != nil {
			return err
		}
		if err := t.audit(ctx, "connection."+string(to), "connection", c.ID, nil, detail("from", from, "to", to)); err != nil {
			return err
		}
		return t.notify(ctx, c.Counterpart(p.ID), "connection."+string(to),
			"Connection "+string(to), "", "connection", c.ID)
	})
	if err != nil {
		return nil, wrap(err, "connection")
	}
	return c, nil
}
