package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const bidColumns = `id, rfp_id, bidder_id, amount, proposal, timeline_days, status, created_at, updated_at`

func scanBid(row scanner) (*model.Bid, error) {
	var b model.Bid
	err := row.Scan(&b.ID, &b.RFPID, &b.BidderID, &b.Amount, &b.Proposal, &b.TimelineDays, &b.Status,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBid inserts a submitted bid. A second active bid by the same bidder
// on the same RFP fails with ErrUniqueViolation.
func (s *Store) CreateBid(ctx context.Context, b *model.Bid) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO bids (id, rfp_id, bidder_id, amount, proposal, timeline_days, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`,
		b.ID, b.RFPID, b.BidderID, b.Amount, b.Proposal, b.TimelineDays, b.Status,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create bid: %w", ConvertDBError(err))
	}
	return nil
}

// GetBid loads a bid by id
func (s *Store) GetBid(ctx context.Context, id uuid.UUID) (*model.Bid, error) {
	b, err := scanBid(s.q.QueryRowContext(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return b, nil
}

// TransitionBid moves a bid from its current status to another
func (s *Store) TransitionBid(ctx context.Context, b *model.Bid, to model.BidStatus) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE bids SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2
RETURNING updated_at`, b.ID, b.Status, to).Scan(&b.UpdatedAt)
	if err != nil {
		if err = ConvertDBError(err); IsNotFound(err) {
			return ErrStaleStatus
		}
		return fmt.Errorf("update bid: %w", err)
	}
	b.Status = to
	return nil
}

// RejectOtherBids rejects every submitted bid on the RFP except keep and
// returns the rejected bids
func (s *Store) RejectOtherBids(ctx context.Context, rfpID, keep uuid.UUID) ([]model.Bid, error) {
	return s.queryBids(ctx, `
UPDATE bids SET status = 'rejected', updated_at = NOW()
WHERE rfp_id = $1 AND id <> $2 AND status = 'submitted'
RETURNING `+bidColumns, rfpID, keep)
}

// ListBids returns the bids on an RFP, optionally only those of one bidder
func (s *Store) ListBids(ctx context.Context, rfpID uuid.UUID, bidder *uuid.UUID) ([]model.Bid, error) {
	if bidder != nil {
		return s.queryBids(ctx,
			`SELECT `+bidColumns+` FROM bids WHERE rfp_id = $1 AND bidder_id = $2 ORDER BY created_at ASC`, rfpID, *bidder)
	}
	return s.queryBids(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE rfp_id = $1 ORDER BY amount ASC, created_at ASC`, rfpID)
}

// CountActiveBids counts a bidder's submitted or accepted bids
func (s *Store) CountActiveBids(ctx context.Context, bidderID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bids WHERE bidder_id = $1 AND status IN ('submitted', 'accepted')`, bidderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bids: %w", ConvertDBError(err))
	}
	return n, nil
}

func (s *Store) queryBids(ctx context.Context, query string, args ...interface{}) ([]model.Bid, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", ConvertDBError(err))
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}
