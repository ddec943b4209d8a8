package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

// ErrStaleStatus is returned when a guarded status update finds the row in a
// different state than expected
var ErrStaleStatus = errors.New("status changed concurrently")

// Connection list directions
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
	DirectionAll      = "all"
)

const connectionColumns = `id, requester_id, recipient_id, message, status, created_at, updated_at`

var connectionList = listSpec{
	filters: map[string]filterFunc{
		"status": eqString("status"),
	},
	sorts: map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	defaultSort: "created_at DESC, id ASC",
}

func scanConnection(row scanner) (*model.Connection, error) {
	var c model.Connection
	err := row.Scan(&c.ID, &c.RequesterID, &c.RecipientID, &c.Message, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConnection inserts a pending connection request
func (s *Store) CreateConnection(ctx context.Context, c *model.Connection) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO connections (id, requester_id, recipient_id, message, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`,
		c.ID, c.RequesterID, c.RecipientID, c.Message, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create connection: %w", ConvertDBError(err))
	}
	return nil
}

// GetConnection loads a connection by id
func (s *Store) GetConnection(ctx context.Context, id uuid.UUID) (*model.Connection, error) {
	c, err := scanConnection(s.q.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return c, nil
}

// ActiveConnectionExists reports whether a pending or accepted connection
// exists between a and b in either direction
func (s *Store) ActiveConnectionExists(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM connections
	WHERE ((requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1))
	AND status IN ('pending', 'accepted')
)`, a, b).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check connection: %w", ConvertDBError(err))
	}
	return exists, nil
}

// TransitionConnection moves a connection from one status to another
func (s *Store) TransitionConnection(ctx context.Context, c *model.Connection, to model.ConnectionStatus) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE connections SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2
RETURNING updated_at`, c.ID, c.Status, to).Scan(&c.UpdatedAt)
	if err != nil {
		if err = ConvertDBError(err); IsNotFound(err) {
			return ErrStaleStatus
		}
		return fmt.Errorf("update connection: %w", err)
	}
	c.Status = to
	return nil
}

// ListConnections returns the profile's connections in the given direction
func (s *Store) ListConnections(ctx context.Context, profileID uuid.UUID, direction string, opts ListOptions) ([]model.Connection, error) {
	var lq listQuery
	switch direction {
	case DirectionIncoming:
		lq.where("recipient_id = ?", profileID)
	case DirectionOutgoing:
		lq.where("requester_id = ?", profileID)
	case DirectionAll, "":
		lq.where("(requester_id = ? OR recipient_id = ?)", profileID, profileID)
	default:
		return nil, fmt.Errorf("%w: direction must be incoming, outgoing or all", ErrInvalidQuery)
	}

	query, args, err := lq.build(`SELECT `+connectionColumns+` FROM connections`, connectionList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", ConvertDBError(err))
	}
	defer rows.Close()

	connections := []model.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		connections = append(connections, *c)
	}
	return connections, rows.Err()
}

// CountPendingIncoming counts connection requests awaiting the profile's answer
func (s *Store) CountPendingIncoming(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM connections WHERE recipient_id = $1 AND status = 'pending'`, recipientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count connections: %w", ConvertDBError(err))
	}
	return n, nil
}
