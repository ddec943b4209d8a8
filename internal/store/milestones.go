package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const milestoneColumns = `id, project_id, name, due_date, completed, created_at, updated_at`

func scanMilestone(row scanner) (*model.Milestone, error) {
	var m model.Milestone
	if err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.DueDate, &m.Completed, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMilestone inserts a milestone
func (s *Store) CreateMilestone(ctx context.Context, m *model.Milestone) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO milestones (id, project_id, name, due_date, completed)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`,
		m.ID, m.ProjectID, m.Name, m.DueDate, m.Completed,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create milestone: %w", ConvertDBError(err))
	}
	return nil
}

// GetMilestone loads a milestone by id
func (s *Store) GetMilestone(ctx context.Context, id uuid.UUID) (*model.Milestone, error) {
	m, err := scanMilestone(s.q.QueryRowContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return m, nil
}

// UpdateMilestone writes name, due date and completion
func (s *Store) UpdateMilestone(ctx context.Context, m *model.Milestone) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE milestones SET name = $2, due_date = $3, completed = $4, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`, m.ID, m.Name, m.DueDate, m.Completed).Scan(&m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update milestone: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteMilestone removes a milestone
func (s *Store) DeleteMilestone(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, id))
}

// ListMilestones returns a project's milestones ordered by due date
func (s *Store) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]model.Milestone, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE project_id = $1 ORDER BY due_date ASC, name ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list milestones: %w", ConvertDBError(err))
	}
	defer rows.Close()

	milestones := []model.Milestone{}
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan milestone: %w", err)
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}
