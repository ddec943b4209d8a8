package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const workflowColumns = `id, created_by, name, description, category, phases, milestones, is_public, created_at, updated_at`

var workflowList = listSpec{
	filters: map[string]filterFunc{
		"category":   eqString("category"),
		"is_public":  eqBool("is_public"),
		"created_by": eqUUID("created_by"),
	},
	sorts: map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
	},
	search:      []string{"name", "description"},
	defaultSort: "name ASC, id ASC",
}

func scanWorkflow(row scanner) (*model.WorkflowTemplate, error) {
	var w model.WorkflowTemplate
	err := row.Scan(&w.ID, &w.CreatedBy, &w.Name, &w.Description, &w.Category, &w.Phases, &w.Milestones,
		&w.IsPublic, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWorkflowTemplate inserts a workflow template
func (s *Store) CreateWorkflowTemplate(ctx context.Context, w *model.WorkflowTemplate) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO workflow_templates (id, created_by, name, description, category, phases, milestones, is_public)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`,
		w.ID, w.CreatedBy, w.Name, w.Description, w.Category, w.Phases, w.Milestones, w.IsPublic,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create workflow template: %w", ConvertDBError(err))
	}
	return nil
}

// GetWorkflowTemplate loads a workflow template by id
func (s *Store) GetWorkflowTemplate(ctx context.Context, id uuid.UUID) (*model.WorkflowTemplate, error) {
	w, err := scanWorkflow(s.q.QueryRowContext(ctx,
		`SELECT `+workflowColumns+` FROM workflow_templates WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return w, nil
}

// UpdateWorkflowTemplate writes every mutable template column
func (s *Store) UpdateWorkflowTemplate(ctx context.Context, w *model.WorkflowTemplate) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE workflow_templates
SET name = $2, description = $3, category = $4, phases = $5, milestones = $6, is_public = $7, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		w.ID, w.Name, w.Description, w.Category, w.Phases, w.Milestones, w.IsPublic,
	).Scan(&w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update workflow template: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteWorkflowTemplate removes a workflow template
func (s *Store) DeleteWorkflowTemplate(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM workflow_templates WHERE id = $1`, id))
}

// ListWorkflowTemplates returns public templates plus the viewer's own.
// Admins see every template.
func (s *Store) ListWorkflowTemplates(ctx context.Context, viewer uuid.UUID, admin bool, opts ListOptions) ([]model.WorkflowTemplate, error) {
	var lq listQuery
	if !admin {
		lq.where("(is_public OR created_by = ?)", viewer)
	}
	query, args, err := lq.build(`SELECT `+workflowColumns+` FROM workflow_templates`, workflowList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflow templates: %w", ConvertDBError(err))
	}
	defer rows.Close()

	templates := []model.WorkflowTemplate{}
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow template: %w", err)
		}
		templates = append(templates, *w)
	}
	return templates, rows.Err()
}
