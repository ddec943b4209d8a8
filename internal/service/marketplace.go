package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// CategoryCountsTTL bounds how stale the marketplace category counts may be
const CategoryCountsTTL = 5 * time.Minute

// MarketplaceService manages solution listings
type MarketplaceService struct{ *base }

// SolutionInput is a new listing
type SolutionInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Category    model.Category       `json:"category"`
	Tags        []string             `json:"tags"`
	PriceMin    float64              `json:"price_min"`
	PriceMax    float64              `json:"price_max"`
	Deployments int                  `json:"deployments"`
	Status      model.SolutionStatus `json:"status"`
}

// SolutionPatch changes a listing; nil fields are left alone
type SolutionPatch struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Category    *model.Category       `json:"category"`
	Tags        *[]string             `json:"tags"`
	PriceMin    *float64              `json:"price_min"`
	PriceMax    *float64              `json:"price_max"`
	Deployments *int                  `json:"deployments"`
	Status      *model.SolutionStatus `json:"status"`
}

// List returns the listings visible to the caller
func (s *MarketplaceService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.Solution, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	solutions, err := s.store.ListSolutions(ctx, p.ID, auth.IsAdmin(p), opts)
	return solutions, wrap(err, "solution")
}

// Get returns one listing when visible to the caller
func (s *MarketplaceService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Solution, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	sol, err := s.store.GetSolution(ctx, id)
	if err != nil {
		return nil, wrap(err, "solution")
	}
	if !auth.CanViewSolution(p, sol) {
		return nil, NotFound("solution")
	}
	return sol, nil
}

// Create stores a listing owned by the calling developer
func (s *MarketplaceService) Create(ctx context.Context, p *auth.Principal, in SolutionInput) (*model.Solution, error) {
	if err := authorize(p, auth.SolutionsWrite); err != nil {
		return nil, err
	}
	sol := &model.Solution{
		DeveloperID: p.ID,
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Tags:        normalizeTags(in.Tags),
		PriceMin:    in.PriceMin,
		PriceMax:    in.PriceMax,
		Deployments: in.Deployments,
		Status:      in.Status,
	}
	if sol.Status == "" {
		sol.Status = model.SolutionDraft
	}
	if err := sol.Validate(); err != nil {
		return nil, wrap(err, "solution")
	}

	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateSolution(ctx, sol); err != nil {
			return err
		}
		return t.audit(ctx, "solution.created", "solution", sol.ID, nil, detail("status", sol.Status))
	})
	if err != nil {
		return nil, wrap(err, "solution")
	}
	s.invalidate(ctx, cache.SolutionsPrefix)
	return sol, nil
}

// Update applies patch to a listing the caller owns
func (s *MarketplaceService) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, patch SolutionPatch) (*model.Solution, error) {
	sol, err := s.editable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	from := sol.Status

	setString(&sol.Name, patch.Name)
	setString(&sol.Description, patch.Description)
	if patch.Category != nil {
		sol.Category = *patch.Category
	}
	if patch.Tags != nil {
		sol.Tags = normalizeTags(*patch.Tags)
	}
	if patch.PriceMin != nil {
		sol.PriceMin = *patch.PriceMin
	}
	if patch.PriceMax != nil {
		sol.PriceMax = *patch.PriceMax
	}
	if patch.Deployments != nil {
		sol.Deployments = *patch.Deployments
	}
	if patch.Status != nil && *patch.Status != from {
		if !from.CanTransitionTo(*patch.Status) {
			return nil, Conflict("solution cannot move from " + string(from) + " to " + string(*patch.Status))
		}
		sol.Status = *patch.Status
	}
	if err := sol.Validate(); err != nil {
		return nil, wrap(err, "solution")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateSolution(ctx, sol); err != nil {
			return err
		}
		action := "solution.updated"
		if sol.Status != from {
			action = "solution." + string(sol.Status)
		}
		return t.audit(ctx, action, "solution", sol.ID, nil, detail("from", from, "to", sol.Status))
	})
	if err != nil {
		return nil, wrap(err, "solution")
	}
	s.invalidate(ctx, cache.SolutionsPrefix)
	return sol, nil
}

// SetStatus publishes, archives or unpublishes a listing
func (s *MarketplaceService) SetStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, status model.SolutionStatus) (*model.Solution, error) {
	return s.Update(ctx, p, id, SolutionPatch{Status: &status})
}

// Delete removes a listing the caller owns
func (s *MarketplaceService) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	sol, err := s.editable(ctx, p, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteSolution(ctx, sol.ID); err != nil {
			return err
		}
		return t.audit(ctx, "solution.deleted", "solution", sol.ID, nil, detail("name", sol.Name))
	})
	if err != nil {
		return wrap(err, "solution")
	}
	s.invalidate(ctx, cache.SolutionsPrefix)
	return nil
}

// CategoryCounts returns the number of published listings per category
func (s *MarketplaceService) CategoryCounts(ctx context.Context) (map[model.Category]int, error) {
	counts, err := cache.Remember(ctx, s.cache, s.logger, cache.CategoryCountsKey(), CategoryCountsTTL, s.store.SolutionCategoryCounts)
	return counts, wrap(err, "solution")
}

func (s *MarketplaceService) editable(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Solution, error) {
	if err := authorize(p, auth.SolutionsWrite); err != nil {
		return nil, err
	}
	sol, err := s.store.GetSolution(ctx, id)
	if err != nil {
		return nil, wrap(err, "solution")
	}
	if !auth.CanEditSolution(p, sol) {
		if auth.CanViewSolution(p, sol) {
			return nil, Forbidden("only the listing's developer may change it")
		}
		return nil, NotFound("solution")
	}
	return sol, nil
}

// normalizeTags trims, lower-cases and de-duplicates tags
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
