package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// ComplianceService tracks regulatory requirements on projects
type ComplianceService struct{ *base }

// RequirementInput is a new requirement
type RequirementInput struct {
	Standard    string                 `json:"standard"`
	Description string                 `json:"description"`
	Status      model.ComplianceStatus `json:"status"`
	EvidenceURL string                 `json:"evidence_url"`
}

// RequirementPatch changes a requirement; nil fields are left alone
type RequirementPatch struct {
	Standard    *string                 `json:"standard"`
	Description *string                 `json:"description"`
	Status      *model.ComplianceStatus `json:"status"`
	EvidenceURL *string                 `json:"evidence_url"`
}

// List returns a project's requirements matching opts
func (s *ComplianceService) List(ctx context.Context, p *auth.Principal, projectID uuid.UUID, opts store.ListOptions) ([]model.ComplianceRequirement, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequirements(ctx, pr.ID, opts)
	return reqs, wrap(err, "compliance requirement")
}

// Summary counts a project's requirements by status
func (s *ComplianceService) Summary(ctx context.Context, p *auth.Principal, projectID uuid.UUID) (*model.ComplianceSummary, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ComplianceCounts(ctx, pr.ID)
	if err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	summary := model.SummarizeCompliance(counts)
	return &summary, nil
}

// Create adds a requirement
func (s *ComplianceService) Create(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in RequirementInput) (*model.ComplianceRequirement, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	req := &model.ComplianceRequirement{
		ProjectID:   pr.ID,
		Standard:    in.Standard,
		Description: in.Description,
		Status:      in.Status,
		EvidenceURL: in.EvidenceURL,
	}
	if req.Status == "" {
		req.Status = model.ComplianceNotStarted
	}
	if req.Status != model.ComplianceNotStarted {
		now := s.now().UTC()
		req.ReviewedAt = &now
	}
	if err := req.Validate(); err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateRequirement(ctx, req); err != nil {
			return err
		}
		return t.audit(ctx, "compliance.created", "compliance_requirement", req.ID, &pr.ID,
			detail("standard", req.Standard, "status", req.Status))
	})
	if err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return req, nil
}

// Update applies patch to a requirement. A status change stamps reviewed_at.
func (s *ComplianceService) Update(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID, patch RequirementPatch) (*model.ComplianceRequirement, error) {
	pr, req, err := s.requirement(ctx, p, projectID, id)
	if err != nil {
		return nil, err
	}
	from := req.Status

	setString(&req.Standard, patch.Standard)
	setString(&req.Description, patch.Description)
	setString(&req.EvidenceURL, patch.EvidenceURL)
	if patch.Status != nil && *patch.Status != from {
		req.Status = *patch.Status
		now := s.now().UTC()
		req.ReviewedAt = &now
	}
	if err := req.Validate(); err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateRequirement(ctx, req); err != nil {
			return err
		}
		return t.audit(ctx, "compliance.updated", "compliance_requirement", req.ID, &pr.ID,
			detail("from", from, "to", req.Status))
	})
	if err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	if req.Status != from {
		s.invalidate(ctx, cache.BenchmarkPrefix)
	}
	return req, nil
}

// Delete removes a requirement
func (s *ComplianceService) Delete(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) error {
	pr, req, err := s.requirement(ctx, p, projectID, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteRequirement(ctx, req.ID); err != nil {
			return err
		}
		return t.audit(ctx, "compliance.deleted", "compliance_requirement", req.ID, &pr.ID, detail("standard", req.Standard))
	})
	if err != nil {
		return wrap(err, "compliance requirement")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return nil
}

func (s *ComplianceService) requirement(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Project, *model.ComplianceRequirement, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, nil, err
	}
	req, err := s.store.GetRequirement(ctx, id)
	if err != nil {
		return nil, nil, wrap(err, "compliance requirement")
	}
	if req.ProjectID != pr.ID {
		return nil, nil, NotFound("compliance requirement")
	}
	return pr, req, nil
}
