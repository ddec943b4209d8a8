package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// FundingService lists funding opportunities and tracks applications to them
type FundingService struct{ *base }

// OpportunityInput is a new or replaced funding opportunity
type OpportunityInput struct {
	Title       string                  `json:"title"`
	Provider    string                  `json:"provider"`
	Type        model.FundingType       `json:"type"`
	AmountMin   float64                 `json:"amount_min"`
	AmountMax   float64                 `json:"amount_max"`
	Deadline    time.Time               `json:"deadline"`
	Eligibility string                  `json:"eligibility"`
	Categories  []string                `json:"categories"`
	URL         string                  `json:"url"`
	Status      model.OpportunityStatus `json:"status"`
}

// ApplicationInput starts a draft application
type ApplicationInput struct {
	OpportunityID   uuid.UUID  `json:"opportunity_id"`
	ProjectID       *uuid.UUID `json:"project_id"`
	AmountRequested float64    `json:"amount_requested"`
	Notes           string     `json:"notes"`
}

// ApplicationPatch changes a draft; nil fields are left alone
type ApplicationPatch struct {
	ProjectID       *uuid.UUID `json:"project_id"`
	ClearProject    bool       `json:"clear_project"`
	AmountRequested *float64   `json:"amount_requested"`
	Notes           *string    `json:"notes"`
}

// ListOpportunities returns opportunities matching opts
func (s *FundingService) ListOpportunities(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.FundingOpportunity, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	ops, err := s.store.ListOpportunities(ctx, opts)
	return ops, wrap(err, "funding opportunity")
}

// GetOpportunity returns one opportunity
func (s *FundingService) GetOpportunity(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.FundingOpportunity, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	f, err := s.store.GetOpportunity(ctx, id)
	return f, wrap(err, "funding opportunity")
}

// CreateOpportunity publishes a new opportunity
func (s *FundingService) CreateOpportunity(ctx context.Context, p *auth.Principal, in OpportunityInput) (*model.FundingOpportunity, error) {
	if err := authorize(p, auth.FundingManage); err != nil {
		return nil, err
	}
	f := &model.FundingOpportunity{}
	applyOpportunity(f, in)
	if err := f.Validate(); err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateOpportunity(ctx, f); err != nil {
			return err
		}
		return t.audit(ctx, "funding_opportunity.created", "funding_opportunity", f.ID, nil, detail("title", f.Title))
	})
	if err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	return f, nil
}

// UpdateOpportunity replaces an opportunity's fields
func (s *FundingService) UpdateOpportunity(ctx context.Context, p *auth.Principal, id uuid.UUID, in OpportunityInput) (*model.FundingOpportunity, error) {
	if err := authorize(p, auth.FundingManage); err != nil {
		return nil, err
	}
	f, err := s.store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	applyOpportunity(f, in)
	if err := f.Validate(); err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateOpportunity(ctx, f); err != nil {
			return err
		}
		return t.audit(ctx, "funding_opportunity.updated", "funding_opportunity", f.ID, nil, detail("status", f.Status))
	})
	if err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	return f, nil
}

// DeleteOpportunity removes an opportunity
func (s *FundingService) DeleteOpportunity(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if err := authorize(p, auth.FundingManage); err != nil {
		return err
	}
	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteOpportunity(ctx, id); err != nil {
			if store.IsForeignKeyViolation(err) {
				return Conflict("opportunity has applications")
			}
			return err
		}
		return t.audit(ctx, "funding_opportunity.deleted", "funding_opportunity", id, nil, nil)
	})
	return wrap(err, "funding opportunity")
}

func applyOpportunity(f *model.FundingOpportunity, in OpportunityInput) {
	f.Title = in.Title
	f.Provider = in.Provider
	f.Type = in.Type
	f.AmountMin = in.AmountMin
	f.AmountMax = in.AmountMax
	f.Deadline = in.Deadline
	f.Eligibility = in.Eligibility
	f.Categories = in.Categories
	if f.Categories == nil {
		f.Categories = []string{}
	}
	f.URL = in.URL
	f.Status = in.Status
	if f.Status == "" {
		f.Status = model.OpportunityOpen
	}
}

// ListApplications returns the caller's applications; admins see all
func (s *FundingService) ListApplications(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.FundingApplication, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	var applicant *uuid.UUID
	if !auth.IsAdmin(p) {
		applicant = &p.ID
	}
	apps, err := s.store.ListApplications(ctx, applicant, opts)
	return apps, wrap(err, "funding application")
}

// GetApplication returns an application visible to the caller
func (s *FundingService) GetApplication(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.FundingApplication, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	a, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	if !auth.CanAccessApplication(p, a) {
		return nil, NotFound("funding application")
	}
	return a, nil
}

// CreateApplication starts a draft against an open opportunity
func (s *FundingService) CreateApplication(ctx context.Context, p *auth.Principal, in ApplicationInput) (*model.FundingApplication, error) {
	if err := authorize(p, auth.FundingApply); err != nil {
		return nil, err
	}
	a := &model.FundingApplication{
		OpportunityID:   in.OpportunityID,
		ApplicantID:     p.ID,
		ProjectID:       in.ProjectID,
		AmountRequested: in.AmountRequested,
		Status:          model.ApplicationDraft,
		Notes:           in.Notes,
	}
	if err := a.Validate(); err != nil {
		return nil, wrap(err, "funding application")
	}
	f, err := s.store.GetOpportunity(ctx, a.OpportunityID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, InvalidField("opportunity_id", "does not exist")
		}
		return nil, wrap(err, "funding opportunity")
	}
	if err := s.acceptsApplications(f); err != nil {
		return nil, err
	}
	if err := s.checkProject(ctx, p, a.ProjectID); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateApplication(ctx, a); err != nil {
			return err
		}
		return t.audit(ctx, "funding_application.created", "funding_application", a.ID, a.ProjectID,
			detail("opportunity_id", f.ID, "amount_requested", a.AmountRequested))
	})
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	return a, nil
}

// UpdateApplication edits a draft owned by the caller
func (s *FundingService) UpdateApplication(ctx context.Context, p *auth.Principal, id uuid.UUID, patch ApplicationPatch) (*model.FundingApplication, error) {
	a, err := s.own(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if a.Status != model.ApplicationDraft {
		return nil, Conflict("only draft applications can be edited")
	}
	switch {
	case patch.ClearProject:
		a.ProjectID = nil
	case patch.ProjectID != nil:
		a.ProjectID = patch.ProjectID
	}
	if patch.AmountRequested != nil {
		a.AmountRequested = *patch.AmountRequested
	}
	setString(&a.Notes, patch.Notes)
	if err := a.Validate(); err != nil {
		return nil, wrap(err, "funding application")
	}
	if err := s.checkProject(ctx, p, a.ProjectID); err != nil {
		return nil, err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateApplication(ctx, a); err != nil {
			return err
		}
		return t.audit(ctx, "funding_application.updated", "funding_application", a.ID, a.ProjectID,
			detail("amount_requested", a.AmountRequested))
	})
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	return a, nil
}

// SubmitApplication sends a draft for review. The opportunity must still be
// open and the amount within its range.
func (s *FundingService) SubmitApplication(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.FundingApplication, error) {
	a, err := s.own(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(model.ApplicationSubmitted) {
		return nil, Conflict("application is " + string(a.Status))
	}
	f, err := s.store.GetOpportunity(ctx, a.OpportunityID)
	if err != nil {
		return nil, wrap(err, "funding opportunity")
	}
	if err := s.acceptsApplications(f); err != nil {
		return nil, err
	}
	if f.AmountMax > 0 && a.AmountRequested > f.AmountMax {
		return nil, InvalidField("amount_requested", fmt.Sprintf("must not exceed %.2f", f.AmountMax))
	}
	if a.AmountRequested < f.AmountMin {
		return nil, InvalidField("amount_requested", fmt.Sprintf("must be at least %.2f", f.AmountMin))
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.TransitionApplication(ctx, a, model.ApplicationSubmitted); err != nil {
			return err
		}
		return t.audit(ctx, "funding_application.submitted", "funding_application", a.ID, a.ProjectID,
			detail("opportunity_id", f.ID, "amount_requested", a.AmountRequested))
	})
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	return a, nil
}

// DecideApplication approves or rejects a submitted application
func (s *FundingService) DecideApplication(ctx context.Context, p *auth.Principal, id uuid.UUID, approve bool) (*model.FundingApplication, error) {
	if err := authorize(p, auth.FundingManage); err != nil {
		return nil, err
	}
	a, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	to := model.ApplicationRejected
	title := "Funding application rejected"
	if approve {
		to = model.ApplicationApproved
		title = "Funding application approved"
	}
	if !a.Status.CanTransitionTo(to) {
		return nil, Conflict("application is " + string(a.Status))
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		from := a.Status
		if err := t.st.TransitionApplication(ctx, a, to); err != nil {
			return err
		}
		if err := t.audit(ctx, "funding_application."+string(to), "funding_application", a.ID, a.ProjectID,
			detail("from", from, "to", to)); err != nil {
			return err
		}
		return t.notify(ctx, a.ApplicantID, "funding."+string(to), title,
			fmt.Sprintf("Requested amount %.2f", a.AmountRequested), "funding_application", a.ID)
	})
	if err != nil {
		return nil, wrap(err, "funding application")
	}
	return a, nil
}

// SendDeadlineReminders notifies applicants holding drafts against
// opportunities that close within days. Each application is reminded at most
// once per UTC day. It returns the number of reminders sent.
func (s *FundingService) SendDeadlineReminders(ctx context.Context, days int) (int, error) {
	now := s.now().UTC()
	drafts, err := s.store.DraftsClosingWithin(ctx, now, days)
	if err != nil {
		return 0, wrap(err, "funding application")
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	sent := 0
	for _, d := range drafts {
		already, err := s.store.NotificationSentSince(ctx, d.ApplicantID, KindFundingDeadline, d.ApplicationID, dayStart)
		if err != nil {
			return sent, wrap(err, "notification")
		}
		if already {
			continue
		}
		left := int(d.Deadline.Sub(now).Hours() / 24)
		body := fmt.Sprintf("%s closes on %s (%d days left)", d.OpportunityTitle, d.Deadline.UTC().Format("2006-01-02"), left)
		err = s.inTx(ctx, model.SystemActor, func(t *txn) error {
			return t.notify(ctx, d.ApplicantID, KindFundingDeadline, "Funding deadline approaching", body,
				"funding_application", d.ApplicationID)
		})
		if err != nil {
			return sent, wrap(err, "notification")
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("funding reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}

// KindFundingDeadline is the notification kind of deadline reminders
const KindFundingDeadline = "funding.deadline"

func (s *FundingService) acceptsApplications(f *model.FundingOpportunity) error {
	if f.Status != model.OpportunityOpen || !f.Deadline.After(s.now()) {
		return Conflict("funding opportunity is closed")
	}
	return nil
}

func (s *FundingService) checkProject(ctx context.Context, p *auth.Principal, projectID *uuid.UUID) error {
	if projectID == nil {
		return nil
	}
	pr, err := s.store.GetProject(ctx, *projectID)
	if err != nil {
		if store.IsNotFound(err) {
			return InvalidField("project_id", "does not exist")
		}
		return wrap(err, "project")
	}
	if !auth.CanManageProject(p, pr) {
		return InvalidField("project_id", "does not exist")
	}
	return nil
}

func (s *FundingService) own(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.FundingApplication, error) {
	if err := authorize(p, auth.FundingApply); err != nil {
		return nil, err
	}
	a, err := s.GetApplication(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if a.ApplicantID != p.ID {
		return nil, Forbidden("only the applicant may change an application")
	}
	return a, nil
}
