package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const complianceColumns = `id, project_id, standard, description, status, evidence_url, reviewed_at, created_at, updated_at`

var complianceList = listSpec{
	filters: map[string]filterFunc{
		"status":   eqString("status"),
		"standard": eqString("standard"),
	},
	sorts: map[string]string{
		"standard":    "standard",
		"status":      "status",
		"created_at":  "created_at",
		"reviewed_at": "reviewed_at",
	},
	search:      []string{"standard", "description"},
	defaultSort: "standard ASC, id ASC",
}

func scanRequirement(row scanner) (*model.ComplianceRequirement, error) {
	var c model.ComplianceRequirement
	err := row.Scan(&c.ID, &c.ProjectID, &c.Standard, &c.Description, &c.Status, &c.EvidenceURL, &c.ReviewedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateRequirement inserts a compliance requirement
func (s *Store) CreateRequirement(ctx context.Context, c *model.ComplianceRequirement) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO compliance_requirements (id, project_id, standard, description, status, evidence_url, reviewed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`,
		c.ID, c.ProjectID, c.Standard, c.Description, c.Status, c.EvidenceURL, c.ReviewedAt,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create compliance requirement: %w", ConvertDBError(err))
	}
	return nil
}

// GetRequirement loads a compliance requirement by id
func (s *Store) GetRequirement(ctx context.Context, id uuid.UUID) (*model.ComplianceRequirement, error) {
	c, err := scanRequirement(s.q.QueryRowContext(ctx,
		`SELECT `+complianceColumns+` FROM compliance_requirements WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return c, nil
}

// UpdateRequirement writes every mutable requirement column
func (s *Store) UpdateRequirement(ctx context.Context, c *model.ComplianceRequirement) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE compliance_requirements
SET standard = $2, description = $3, status = $4, evidence_url = $5, reviewed_at = $6, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		c.ID, c.Standard, c.Description, c.Status, c.EvidenceURL, c.ReviewedAt,
	).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update compliance requirement: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteRequirement removes a compliance requirement
func (s *Store) DeleteRequirement(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM compliance_requirements WHERE id = $1`, id))
}

// ListRequirements returns a project's requirements matching opts
func (s *Store) ListRequirements(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]model.ComplianceRequirement, error) {
	var lq listQuery
	lq.where("project_id = ?", projectID)
	query, args, err := lq.build(`SELECT `+complianceColumns+` FROM compliance_requirements`, complianceList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list compliance requirements: %w", ConvertDBError(err))
	}
	defer rows.Close()

	reqs := []model.ComplianceRequirement{}
	for rows.Next() {
		c, err := scanRequirement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance requirement: %w", err)
		}
		reqs = append(reqs, *c)
	}
	return reqs, rows.Err()
}

// ComplianceCounts counts a project's requirements by status
func (s *Store) ComplianceCounts(ctx context.Context, projectID uuid.UUID) (map[model.ComplianceStatus]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM compliance_requirements WHERE project_id = $1 GROUP BY status`, projectID)
	if err != nil {
		return nil, fmt.Errorf("count compliance requirements: %w", ConvertDBError(err))
	}
	defer rows.Close()

	counts := make(map[model.ComplianceStatus]int)
	for rows.Next() {
		var st model.ComplianceStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan compliance count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
