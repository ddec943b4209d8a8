package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// BudgetService manages project budget lines
type BudgetService struct{ *base }

// BudgetItemInput is a new budget line
type BudgetItemInput struct {
	Category      model.BudgetCategory `json:"category"`
	Description   string               `json:"description"`
	PlannedAmount float64              `json:"planned_amount"`
	ActualAmount  float64              `json:"actual_amount"`
}

// BudgetItemPatch changes a budget line; nil fields are left alone
type BudgetItemPatch struct {
	Category      *model.BudgetCategory `json:"category"`
	Description   *string               `json:"description"`
	PlannedAmount *float64              `json:"planned_amount"`
	ActualAmount  *float64              `json:"actual_amount"`
}

// List returns a project's budget lines
func (s *BudgetService) List(ctx context.Context, p *auth.Principal, projectID uuid.UUID) ([]model.BudgetItem, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListBudgetItems(ctx, pr.ID)
	return items, wrap(err, "budget item")
}

// Summary totals a project's budget lines against its budget
func (s *BudgetService) Summary(ctx context.Context, p *auth.Principal, projectID uuid.UUID) (*model.BudgetSummary, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListBudgetItems(ctx, pr.ID)
	if err != nil {
		return nil, wrap(err, "budget item")
	}
	summary := model.SummarizeBudget(pr.ID, pr.BudgetTotal, items)
	return &summary, nil
}

// Create adds a budget line
func (s *BudgetService) Create(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in BudgetItemInput) (*model.BudgetItem, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	item := &model.BudgetItem{
		ProjectID:     pr.ID,
		Category:      in.Category,
		Description:   in.Description,
		PlannedAmount: in.PlannedAmount,
		ActualAmount:  in.ActualAmount,
	}
	if err := item.Validate(); err != nil {
		return nil, wrap(err, "budget item")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateBudgetItem(ctx, item); err != nil {
			return err
		}
		return t.audit(ctx, "budget_item.created", "budget_item", item.ID, &pr.ID,
			detail("category", item.Category, "planned", item.PlannedAmount, "actual", item.ActualAmount))
	})
	if err != nil {
		return nil, wrap(err, "budget item")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return item, nil
}

// Update applies patch to a budget line
func (s *BudgetService) Update(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID, patch BudgetItemPatch) (*model.BudgetItem, error) {
	pr, item, err := s.item(ctx, p, projectID, id)
	if err != nil {
		return nil, err
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	setString(&item.Description, patch.Description)
	if patch.PlannedAmount != nil {
		item.PlannedAmount = *patch.PlannedAmount
	}
	if patch.ActualAmount != nil {
		item.ActualAmount = *patch.ActualAmount
	}
	if err := item.Validate(); err != nil {
		return nil, wrap(err, "budget item")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateBudgetItem(ctx, item); err != nil {
			return err
		}
		return t.audit(ctx, "budget_item.updated", "budget_item", item.ID, &pr.ID,
			detail("planned", item.PlannedAmount, "actual", item.ActualAmount))
	})
	if err != nil {
		return nil, wrap(err, "budget item")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return item, nil
}

// Delete removes a budget line
func (s *BudgetService) Delete(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) error {
	pr, item, err := s.item(ctx, p, projectID, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteBudgetItem(ctx, item.ID); err != nil {
			return err
		}
		return t.audit(ctx, "budget_item.deleted", "budget_item", item.ID, &pr.ID, detail("description", item.Description))
	})
	if err != nil {
		return wrap(err, "budget item")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return nil
}

func (s *BudgetService) item(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Project, *model.BudgetItem, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.store.GetBudgetItem(ctx, id)
	if err != nil {
		return nil, nil, wrap(err, "budget item")
	}
	if item.ProjectID != pr.ID {
		return nil, nil, NotFound("budget item")
	}
	return pr, item, nil
}
