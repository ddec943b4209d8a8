package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const rfpColumns = `id, owner_id, title, description, category, budget_min, budget_max, deadline, status, awarded_bid_id, created_at, updated_at`

var rfpList = listSpec{
	filters: map[string]filterFunc{
		"status":          eqString("status"),
		"category":        eqString("category"),
		"owner_id":        eqUUID("owner_id"),
		"deadline_after":  cmpTime("deadline", ">="),
		"deadline_before": untilTime("deadline"),
	},
	sorts: map[string]string{
		"deadline":   "deadline",
		"created_at": "created_at",
		"budget_max": "budget_max",
		"title":      "title",
	},
	search:      []string{"title", "description"},
	defaultSort: "deadline ASC, id ASC",
}

func scanRFP(row scanner) (*model.RFP, error) {
	var r model.RFP
	err := row.Scan(&r.ID, &r.OwnerID, &r.Title, &r.Description, &r.Category, &r.BudgetMin, &r.BudgetMax,
		&r.Deadline, &r.Status, &r.AwardedBidID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRFP inserts an RFP
func (s *Store) CreateRFP(ctx context.Context, r *model.RFP) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO rfps (id, owner_id, title, description, category, budget_min, budget_max, deadline, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		r.ID, r.OwnerID, r.Title, r.Description, r.Category, r.BudgetMin, r.BudgetMax, r.Deadline, r.Status,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create rfp: %w", ConvertDBError(err))
	}
	return nil
}

// GetRFP loads an RFP by id
func (s *Store) GetRFP(ctx context.Context, id uuid.UUID) (*model.RFP, error) {
	r, err := scanRFP(s.q.QueryRowContext(ctx, `SELECT `+rfpColumns+` FROM rfps WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return r, nil
}

// GetRFPForUpdate loads an RFP and locks its row until the transaction ends
func (s *Store) GetRFPForUpdate(ctx context.Context, id uuid.UUID) (*model.RFP, error) {
	r, err := scanRFP(s.q.QueryRowContext(ctx, `SELECT `+rfpColumns+` FROM rfps WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return r, nil
}

// UpdateRFP writes every mutable RFP column
func (s *Store) UpdateRFP(ctx context.Context, r *model.RFP) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE rfps
SET title = $2, description = $3, category = $4, budget_min = $5, budget_max = $6, deadline = $7,
	status = $8, awarded_bid_id = $9, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		r.ID, r.Title, r.Description, r.Category, r.BudgetMin, r.BudgetMax, r.Deadline, r.Status, r.AwardedBidID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update rfp: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteDraftRFP removes an RFP that is still a draft
func (s *Store) DeleteDraftRFP(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM rfps WHERE id = $1 AND status = 'draft'`, id))
}

// ListRFPs returns RFPs visible to the viewer: everything past draft plus the
// viewer's own drafts. Admins see everything.
func (s *Store) ListRFPs(ctx context.Context, viewer uuid.UUID, admin bool, opts ListOptions) ([]model.RFP, error) {
	var lq listQuery
	if !admin {
		lq.where("(status <> 'draft' OR owner_id = ?)", viewer)
	}
	query, args, err := lq.build(`SELECT `+rfpColumns+` FROM rfps`, rfpList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rfps: %w", ConvertDBError(err))
	}
	defer rows.Close()

	rfps := []model.RFP{}
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rfp: %w", err)
		}
		rfps = append(rfps, *r)
	}
	return rfps, rows.Err()
}

// CloseExpiredRFPs closes published RFPs whose deadline has passed and
// returns the closed rows
func (s *Store) CloseExpiredRFPs(ctx context.Context, now time.Time) ([]model.RFP, error) {
	rows, err := s.q.QueryContext(ctx, `
UPDATE rfps SET status = 'closed', updated_at = NOW()
WHERE status = 'published' AND deadline <= $1
RETURNING `+rfpColumns, now)
	if err != nil {
		return nil, fmt.Errorf("close expired rfps: %w", ConvertDBError(err))
	}
	defer rows.Close()

	closed := []model.RFP{}
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rfp: %w", err)
		}
		closed = append(closed, *r)
	}
	return closed, rows.Err()
}

// CountOpenRFPs counts published RFPs still before their deadline
func (s *Store) CountOpenRFPs(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rfps WHERE status = 'published' AND deadline > $1`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rfps: %w", ConvertDBError(err))
	}
	return n, nil
}
