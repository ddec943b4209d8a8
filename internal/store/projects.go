package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const projectColumns = `id, owner_id, integrator_id, solution_id, name, description, status, budget_total, start_date, end_date, created_at, updated_at`

var projectList = listSpec{
	filters: map[string]filterFunc{
		"status":        eqString("status"),
		"owner_id":      eqUUID("owner_id"),
		"integrator_id": eqUUID("integrator_id"),
		"solution_id":   eqUUID("solution_id"),
	},
	sorts: map[string]string{
		"name":         "name",
		"status":       "status",
		"created_at":   "created_at",
		"start_date":   "start_date",
		"budget_total": "budget_total",
	},
	search:      []string{"name", "description"},
	defaultSort: "created_at DESC, id ASC",
}

func scanProject(row scanner) (*model.Project, error) {
	var p model.Project
	err := row.Scan(&p.ID, &p.OwnerID, &p.IntegratorID, &p.SolutionID, &p.Name, &p.Description,
		&p.Status, &p.BudgetTotal, &p.StartDate, &p.EndDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject inserts a project
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO projects (id, owner_id, integrator_id, solution_id, name, description, status, budget_total, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at`,
		p.ID, p.OwnerID, p.IntegratorID, p.SolutionID, p.Name, p.Description, p.Status, p.BudgetTotal,
		p.StartDate, p.EndDate,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", ConvertDBError(err))
	}
	return nil
}

// GetProject loads a project by id
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	p, err := scanProject(s.q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return p, nil
}

// UpdateProject writes every mutable project column
func (s *Store) UpdateProject(ctx context.Context, p *model.Project) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE projects
SET integrator_id = $2, solution_id = $3, name = $4, description = $5, status = $6, budget_total = $7,
	start_date = $8, end_date = $9, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		p.ID, p.IntegratorID, p.SolutionID, p.Name, p.Description, p.Status, p.BudgetTotal, p.StartDate, p.EndDate,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update project: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteProject removes a project and, by cascade, its children
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id))
}

// ListProjects returns projects the viewer owns or integrates. Admins see
// every project.
func (s *Store) ListProjects(ctx context.Context, viewer uuid.UUID, admin bool, opts ListOptions) ([]model.Project, error) {
	var lq listQuery
	if !admin {
		lq.where("(owner_id = ? OR integrator_id = ?)", viewer, viewer)
	}
	query, args, err := lq.build(`SELECT `+projectColumns+` FROM projects`, projectList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", ConvertDBError(err))
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// ProjectProgress returns the number of done and total tasks of a project
func (s *Store) ProjectProgress(ctx context.Context, projectID uuid.UUID) (done, total int, err error) {
	err = s.q.QueryRowContext(ctx, `
SELECT COUNT(*) FILTER (WHERE status = 'done'), COUNT(*)
FROM tasks WHERE project_id = $1`, projectID).Scan(&done, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("project progress: %w", ConvertDBError(err))
	}
	return done, total, nil
}

// CountProjectsByStatus counts the projects the profile owns or integrates,
// keyed by status
func (s *Store) CountProjectsByStatus(ctx context.Context, profileID uuid.UUID) (map[model.ProjectStatus]int, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT status, COUNT(*) FROM projects
WHERE owner_id = $1 OR integrator_id = $1
GROUP BY status`, profileID)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", ConvertDBError(err))
	}
	defer rows.Close()

	counts := make(map[model.ProjectStatus]int, len(model.ProjectStatuses))
	for _, st := range model.ProjectStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var st model.ProjectStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan project count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
