package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/domain/roi"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// ROIService runs return-on-investment projections
type ROIService struct{ *base }

// Calculate projects the given input
func (s *ROIService) Calculate(ctx context.Context, p *auth.Principal, in roi.Input) (*roi.Result, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	res, err := roi.Calculate(in)
	return res, wrap(err, "roi")
}

// ForProject projects a project's return using its planned budget as the
// initial investment. Without budget lines the project budget total is used.
// Operating cost, benefits and rates come from in.
func (s *ROIService) ForProject(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in roi.Input) (*roi.Result, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListBudgetItems(ctx, pr.ID)
	if err != nil {
		return nil, wrap(err, "budget item")
	}
	summary := model.SummarizeBudget(pr.ID, pr.BudgetTotal, items)
	in.InitialInvestment = summary.TotalPlanned
	if len(items) == 0 {
		in.InitialInvestment = pr.BudgetTotal
	}
	res, err := roi.Calculate(in)
	return res, wrap(err, "roi")
}
