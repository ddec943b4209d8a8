package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const budgetItemColumns = `id, project_id, category, description, planned_amount, actual_amount, created_at, updated_at`

func scanBudgetItem(row scanner) (*model.BudgetItem, error) {
	var b model.BudgetItem
	err := row.Scan(&b.ID, &b.ProjectID, &b.Category, &b.Description, &b.PlannedAmount, &b.ActualAmount,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBudgetItem inserts a budget line
func (s *Store) CreateBudgetItem(ctx context.Context, b *model.BudgetItem) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO budget_items (id, project_id, category, description, planned_amount, actual_amount)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING created_at, updated_at`,
		b.ID, b.ProjectID, b.Category, b.Description, b.PlannedAmount, b.ActualAmount,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create budget item: %w", ConvertDBError(err))
	}
	return nil
}

// GetBudgetItem loads a budget line by id
func (s *Store) GetBudgetItem(ctx context.Context, id uuid.UUID) (*model.BudgetItem, error) {
	b, err := scanBudgetItem(s.q.QueryRowContext(ctx,
		`SELECT `+budgetItemColumns+` FROM budget_items WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return b, nil
}

// UpdateBudgetItem writes category, description and amounts
func (s *Store) UpdateBudgetItem(ctx context.Context, b *model.BudgetItem) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE budget_items
SET category = $2, description = $3, planned_amount = $4, actual_amount = $5, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		b.ID, b.Category, b.Description, b.PlannedAmount, b.ActualAmount,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update budget item: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteBudgetItem removes a budget line
func (s *Store) DeleteBudgetItem(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM budget_items WHERE id = $1`, id))
}

// ListBudgetItems returns every budget line of a project
func (s *Store) ListBudgetItems(ctx context.Context, projectID uuid.UUID) ([]model.BudgetItem, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+budgetItemColumns+` FROM budget_items WHERE project_id = $1 ORDER BY category ASC, created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", ConvertDBError(err))
	}
	defer rows.Close()

	items := []model.BudgetItem{}
	for rows.Next() {
		b, err := scanBudgetItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		items = append(items, *b)
	}
	return items, rows.Err()
}
