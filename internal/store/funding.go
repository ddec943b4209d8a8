package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/citymind/urbanlink/internal/model"
)

const opportunityColumns = `id, title, provider, type, amount_min, amount_max, deadline, eligibility, categories, url, status, created_at, updated_at`

const applicationColumns = `id, opportunity_id, applicant_id, project_id, amount_requested, status, notes, created_at, updated_at`

var opportunityList = listSpec{
	filters: map[string]filterFunc{
		"type":           eqString("type"),
		"status":         eqString("status"),
		"category":       arrayContains("categories"),
		"closing_within": closingWithin,
	},
	sorts: map[string]string{
		"deadline":   "deadline",
		"amount_max": "amount_max",
		"created_at": "created_at",
		"title":      "title",
	},
	search:      []string{"title", "provider", "eligibility"},
	defaultSort: "deadline ASC, id ASC",
}

var applicationList = listSpec{
	filters: map[string]filterFunc{
		"status":         eqString("status"),
		"opportunity_id": eqUUID("opportunity_id"),
		"project_id":     eqUUID("project_id"),
	},
	sorts: map[string]string{
		"created_at":       "created_at",
		"updated_at":       "updated_at",
		"amount_requested": "amount_requested",
	},
	defaultSort: "created_at DESC, id ASC",
}

func closingWithin(q *listQuery, v string) error {
	days, err := strconv.Atoi(v)
	if err != nil || days < 0 {
		return fmt.Errorf("must be a non-negative number of days")
	}
	q.where("deadline >= NOW() AND deadline <= NOW() + make_interval(days => ?)", days)
	return nil
}

func scanOpportunity(row scanner) (*model.FundingOpportunity, error) {
	var f model.FundingOpportunity
	err := row.Scan(&f.ID, &f.Title, &f.Provider, &f.Type, &f.AmountMin, &f.AmountMax, &f.Deadline,
		&f.Eligibility, pq.Array(&f.Categories), &f.URL, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if f.Categories == nil {
		f.Categories = []string{}
	}
	return &f, nil
}

func scanApplication(row scanner) (*model.FundingApplication, error) {
	var a model.FundingApplication
	err := row.Scan(&a.ID, &a.OpportunityID, &a.ApplicantID, &a.ProjectID, &a.AmountRequested, &a.Status,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateOpportunity inserts a funding opportunity
func (s *Store) CreateOpportunity(ctx context.Context, f *model.FundingOpportunity) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.Categories == nil {
		f.Categories = []string{}
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO funding_opportunities (id, title, provider, type, amount_min, amount_max, deadline, eligibility, categories, url, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at`,
		f.ID, f.Title, f.Provider, f.Type, f.AmountMin, f.AmountMax, f.Deadline, f.Eligibility,
		pq.Array(f.Categories), f.URL, f.Status,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create funding opportunity: %w", ConvertDBError(err))
	}
	return nil
}

// GetOpportunity loads a funding opportunity by id
func (s *Store) GetOpportunity(ctx context.Context, id uuid.UUID) (*model.FundingOpportunity, error) {
	f, err := scanOpportunity(s.q.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM funding_opportunities WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return f, nil
}

// UpdateOpportunity writes every mutable opportunity column
func (s *Store) UpdateOpportunity(ctx context.Context, f *model.FundingOpportunity) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE funding_opportunities
SET title = $2, provider = $3, type = $4, amount_min = $5, amount_max = $6, deadline = $7,
	eligibility = $8, categories = $9, url = $10, status = $11, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		f.ID, f.Title, f.Provider, f.Type, f.AmountMin, f.AmountMax, f.Deadline, f.Eligibility,
		pq.Array(f.Categories), f.URL, f.Status,
	).Scan(&f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update funding opportunity: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteOpportunity removes a funding opportunity and its applications
func (s *Store) DeleteOpportunity(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM funding_opportunities WHERE id = $1`, id))
}

// ListOpportunities returns funding opportunities matching opts
func (s *Store) ListOpportunities(ctx context.Context, opts ListOptions) ([]model.FundingOpportunity, error) {
	var lq listQuery
	query, args, err := lq.build(`SELECT `+opportunityColumns+` FROM funding_opportunities`, opportunityList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list funding opportunities: %w", ConvertDBError(err))
	}
	defer rows.Close()

	opportunities := []model.FundingOpportunity{}
	for rows.Next() {
		f, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan funding opportunity: %w", err)
		}
		opportunities = append(opportunities, *f)
	}
	return opportunities, rows.Err()
}

// CreateApplication inserts a funding application
func (s *Store) CreateApplication(ctx context.Context, a *model.FundingApplication) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO funding_applications (id, opportunity_id, applicant_id, project_id, amount_requested, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`,
		a.ID, a.OpportunityID, a.ApplicantID, a.ProjectID, a.AmountRequested, a.Status, a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create funding application: %w", ConvertDBError(err))
	}
	return nil
}

// GetApplication loads a funding application by id
func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (*model.FundingApplication, error) {
	a, err := scanApplication(s.q.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM funding_applications WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return a, nil
}

// UpdateApplication writes the editable fields of a draft application
func (s *Store) UpdateApplication(ctx context.Context, a *model.FundingApplication) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE funding_applications
SET project_id = $2, amount_requested = $3, notes = $4, updated_at = NOW()
WHERE id = $1 AND status = 'draft'
RETURNING updated_at`,
		a.ID, a.ProjectID, a.AmountRequested, a.Notes,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if err = ConvertDBError(err); IsNotFound(err) {
			return ErrStaleStatus
		}
		return fmt.Errorf("update funding application: %w", err)
	}
	return nil
}

// TransitionApplication moves an application from its current status to another
func (s *Store) TransitionApplication(ctx context.Context, a *model.FundingApplication, to model.ApplicationStatus) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE funding_applications SET status = $3, updated_at = NOW()
WHERE id = $1 AND status = $2
RETURNING updated_at`, a.ID, a.Status, to).Scan(&a.UpdatedAt)
	if err != nil {
		if err = ConvertDBError(err); IsNotFound(err) {
			return ErrStaleStatus
		}
		return fmt.Errorf("update funding application: %w", err)
	}
	a.Status = to
	return nil
}

// ListApplications returns funding applications, limited to one applicant
// unless applicant is nil
func (s *Store) ListApplications(ctx context.Context, applicant *uuid.UUID, opts ListOptions) ([]model.FundingApplication, error) {
	var lq listQuery
	if applicant != nil {
		lq.where("applicant_id = ?", *applicant)
	}
	query, args, err := lq.build(`SELECT `+applicationColumns+` FROM funding_applications`, applicationList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list funding applications: %w", ConvertDBError(err))
	}
	defer rows.Close()

	applications := []model.FundingApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan funding application: %w", err)
		}
		applications = append(applications, *a)
	}
	return applications, rows.Err()
}

// PendingDraft is a draft application whose opportunity closes soon
type PendingDraft struct {
	ApplicationID    uuid.UUID
	ApplicantID      uuid.UUID
	OpportunityID    uuid.UUID
	OpportunityTitle string
	Deadline         time.Time
}

// DraftsClosingWithin returns draft applications against open opportunities
// whose deadline falls between now and now + days
func (s *Store) DraftsClosingWithin(ctx context.Context, now time.Time, days int) ([]PendingDraft, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT a.id, a.applicant_id, o.id, o.title, o.deadline
FROM funding_applications a
JOIN funding_opportunities o ON o.id = a.opportunity_id
WHERE a.status = 'draft' AND o.status = 'open'
	AND o.deadline >= $1 AND o.deadline <= $2
ORDER BY o.deadline ASC`, now, now.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("list closing drafts: %w", ConvertDBError(err))
	}
	defer rows.Close()

	var drafts []PendingDraft
	for rows.Next() {
		var d PendingDraft
		if err := rows.Scan(&d.ApplicationID, &d.ApplicantID, &d.OpportunityID, &d.OpportunityTitle, &d.Deadline); err != nil {
			return nil, fmt.Errorf("scan closing draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
