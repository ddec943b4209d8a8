package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// RFPService runs procurement: requests for proposal and their bids
type RFPService struct{ *base }

// RFPInput is a new draft RFP
type RFPInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	BudgetMin   float64        `json:"budget_min"`
	BudgetMax   float64        `json:"budget_max"`
	Deadline    time.Time      `json:"deadline"`
}

// RFPPatch changes a draft; nil fields are left alone
type RFPPatch struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Category    *model.Category `json:"category"`
	BudgetMin   *float64        `json:"budget_min"`
	BudgetMax   *float64        `json:"budget_max"`
	Deadline    *time.Time      `json:"deadline"`
}

// BidInput is a bid on an RFP
type BidInput struct {
	Amount       float64 `json:"amount"`
	Proposal     string  `json:"proposal"`
	TimelineDays int     `json:"timeline_days"`
}

// AwardInput selects the winning bid. With CreateProject set, a project is
// opened for the RFP owner with the winning bidder as integrator.
type AwardInput struct {
	BidID         uuid.UUID `json:"bid_id"`
	CreateProject bool      `json:"create_project"`
	ProjectName   string    `json:"project_name"`
}

// AwardResult is the outcome of an award
type AwardResult struct {
	RFP      *model.RFP     `json:"rfp"`
	Bid      *model.Bid     `json:"bid"`
	Rejected int            `json:"rejected_bids"`
	Project  *model.Project `json:"project,omitempty"`
}

// List returns RFPs visible to the caller
func (s *RFPService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.RFP, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	rfps, err := s.store.ListRFPs(ctx, p.ID, auth.IsAdmin(p), opts)
	return rfps, wrap(err, "rfp")
}

// Get returns an RFP when visible to the caller
func (s *RFPService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.RFP, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	r, err := s.store.GetRFP(ctx, id)
	if err != nil {
		return nil, wrap(err, "rfp")
	}
	if !auth.CanViewRFP(p, r) {
		return nil, NotFound("rfp")
	}
	return r, nil
}

// Create stores a draft RFP owned by the caller
func (s *RFPService) Create(ctx context.Context, p *auth.Principal, in RFPInput) (*model.RFP, error) {
	if err := authorize(p, auth.RFPsWrite); err != nil {
		return nil, err
	}
	r := &model.RFP{
		OwnerID:     p.ID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		BudgetMin:   in.BudgetMin,
		BudgetMax:   in.BudgetMax,
		Deadline:    in.Deadline,
		Status:      model.RFPDraft,
	}
	if err := r.Validate(); err != nil {
		return nil, wrap(err, "rfp")
	}
	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateRFP(ctx, r); err != nil {
			return err
		}
		return t.audit(ctx, "rfp.created", "rfp", r.ID, nil, detail("title", r.Title))
	})
	if err != nil {
		return nil, wrap(err, "rfp")
	}
	return r, nil
}

// Update edits a draft RFP
func (s *RFPService) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, patch RFPPatch) (*model.RFP, error) {
	r, err := s.managed(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.RFPDraft {
		return nil, Conflict("only draft RFPs can be edited")
	}
	setString(&r.Title, patch.Title)
	setString(&r.Description, patch.Description)
	if patch.Category != nil {
		r.Category = *patch.Category
	}
	if patch.BudgetMin != nil {
		r.BudgetMin = *patch.BudgetMin
	}
	if patch.BudgetMax != nil {
		r.BudgetMax = *patch.BudgetMax
	}
	if patch.Deadline != nil {
		r.Deadline = *patch.Deadline
	}
	if err := r.Validate(); err != nil {
		return nil, wrap(err, "rfp")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateRFP(ctx, r); err != nil {
			return err
		}
		return t.audit(ctx, "rfp.updated", "rfp", r.ID, nil, nil)
	})
	if err != nil {
		return nil, wrap(err, "rfp")
	}
	return r, nil
}

// Delete removes a draft RFP
func (s *RFPService) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	r, err := s.managed(ctx, p, id)
	if err != nil {
		return err
	}
	if r.Status != model.RFPDraft {
		return Conflict("only draft RFPs can be deleted")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteDraftRFP(ctx, r.ID); err != nil {
			if store.IsNotFound(err) {
				return Conflict("only draft RFPs can be deleted")
			}
			return err
		}
		return t.audit(ctx, "rfp.deleted", "rfp", r.ID, nil, detail("title", r.Title))
	})
	return wrap(err, "rfp")
}

// Publish opens a draft for bidding. The deadline must lie in the future
// and the budget range must be set.
func (s *RFPService) Publish(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.RFP, error) {
	r, err := s.managed(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(model.RFPPublished) {
		return nil, Conflict("rfp is " + string(r.Status))
	}
	if err := r.ValidateForPublish(s.now()); err != nil {
		return nil, wrap(err, "rfp")
	}
	return r, s.setStatus(ctx, p.ID, r, model.RFPPublished)
}

// Close stops bidding on a published RFP
func (s *RFPService) Close(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.RFP, error) {
	r, err := s.managed(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransitionTo(model.RFPClosed) {
		return nil, Conflict("rfp is " + string(r.Status))
	}
	return r, s.setStatus(ctx, p.ID, r, model.RFPClosed)
}

func (s *RFPService) setStatus(ctx context.Context, actor uuid.UUID, r *model.RFP, to model.RFPStatus) error {
	from := r.Status
	err := s.inTx(ctx, actor, func(t *txn) error {
		locked, err := t.st.GetRFPForUpdate(ctx, r.ID)
		if err != nil {
			return err
		}
		if locked.Status != from {
			return store.ErrStaleStatus
		}
		r.Status = to
		if err := t.st.UpdateRFP(ctx, r); err != nil {
			return err
		}
		return t.audit(ctx, "rfp."+string(to), "rfp", r.ID, nil, detail("from", from, "to", to))
	})
	if err != nil {
		r.Status = from
		return wrap(err, "rfp")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return nil
}

// Award accepts one submitted bid and rejects the rest in a single
// transaction, optionally opening a project for the winner.
func (s *RFPService) Award(ctx context.Context, p *auth.Principal, id uuid.UUID, in AwardInput) (*AwardResult, error) {
	if err := authorize(p, auth.RFPsWrite); err != nil {
		return nil, err
	}
	if in.BidID == uuid.Nil {
		return nil, InvalidField("bid_id", "is required")
	}

	res := &AwardResult{}
	err := s.inTx(ctx, p.ID, func(t *txn) error {
		r, err := t.st.GetRFPForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !auth.CanViewRFP(p, r) {
			return NotFound("rfp")
		}
		if !auth.CanManageRFP(p, r) {
			return Forbidden("only the rfp owner may award it")
		}
		if !r.Status.CanTransitionTo(model.RFPAwarded) {
			return Conflict("rfp is " + string(r.Status))
		}

		bid, err := t.st.GetBid(ctx, in.BidID)
		if err != nil {
			if store.IsNotFound(err) {
				return NotFound("bid")
			}
			return err
		}
		if bid.RFPID != r.ID {
			return NotFound("bid")
		}
		if bid.Status != model.BidSubmitted {
			return Conflict("bid is " + string(bid.Status))
		}
		if err := t.st.TransitionBid(ctx, bid, model.BidAccepted); err != nil {
			return err
		}
		rejected, err := t.st.RejectOtherBids(ctx, r.ID, bid.ID)
		if err != nil {
			return err
		}

		from := r.Status
		r.Status = model.RFPAwarded
		r.AwardedBidID = &bid.ID
		if err := t.st.UpdateRFP(ctx, r); err != nil {
			return err
		}

		var project *model.Project
		if in.CreateProject {
			project = &model.Project{
				OwnerID:      r.OwnerID,
				IntegratorID: &bid.BidderID,
				Name:         in.ProjectName,
				Description:  r.Description,
				Status:       model.ProjectPlanning,
				BudgetTotal:  bid.Amount,
			}
			if project.Name == "" {
				project.Name = r.Title
			}
			if err := project.Validate(); err != nil {
				return err
			}
			if err := t.st.CreateProject(ctx, project); err != nil {
				return err
			}
			if err := t.audit(ctx, "project.created", "project", project.ID, &project.ID,
				detail("name", project.Name, "rfp_id", r.ID)); err != nil {
				return err
			}
		}

		details := detail("from", from, "bid_id", bid.ID, "bidder_id", bid.BidderID, "amount", bid.Amount, "rejected", len(rejected))
		if project != nil {
			details["project_id"] = project.ID
		}
		if err := t.audit(ctx, "rfp.awarded", "rfp", r.ID, nil, details); err != nil {
			return err
		}

		if err := t.notify(ctx, bid.BidderID, "bid.accepted", "Your bid was accepted", r.Title, "bid", bid.ID); err != nil {
			return err
		}
		for _, b := range rejected {
			if err := t.notify(ctx, b.BidderID, "bid.rejected", "Your bid was not selected", r.Title, "bid", b.ID); err != nil {
				return err
			}
		}

		res.RFP, res.Bid, res.Rejected, res.Project = r, bid, len(rejected), project
		return nil
	})
	if err != nil {
		return nil, wrap(err, "rfp")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return res, nil
}

// CloseExpired closes every published RFP whose deadline has passed. It runs
// as the system actor and returns the number of RFPs closed.
func (s *RFPService) CloseExpired(ctx context.Context) (int, error) {
	var closed []model.RFP
	err := s.inTx(ctx, model.SystemActor, func(t *txn) error {
		var err error
		closed, err = t.st.CloseExpiredRFPs(ctx, s.now())
		if err != nil {
			return err
		}
		for _, r := range closed {
			if err := t.audit(ctx, "rfp.closed", "rfp", r.ID, nil, detail("reason", "deadline passed")); err != nil {
				return err
			}
			if err := t.notify(ctx, r.OwnerID, "rfp.closed", "RFP closed at its deadline", r.Title, "rfp", r.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrap(err, "rfp")
	}
	if len(closed) > 0 {
		s.invalidate(ctx, cache.BenchmarkPrefix)
	}
	return len(closed), nil
}

// Bids lists an RFP's bids. The owner and admins see every bid, others
// only their own.
func (s *RFPService) Bids(ctx context.Context, p *auth.Principal, rfpID uuid.UUID) ([]model.Bid, error) {
	r, err := s.Get(ctx, p, rfpID)
	if err != nil {
		return nil, err
	}
	var bidder *uuid.UUID
	if !auth.CanManageRFP(p, r) {
		bidder = &p.ID
	}
	bids, err := s.store.ListBids(ctx, r.ID, bidder)
	return bids, wrap(err, "bid")
}

// GetBid returns a bid visible to the caller
func (s *RFPService) GetBid(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Bid, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	b, err := s.store.GetBid(ctx, id)
	if err != nil {
		return nil, wrap(err, "bid")
	}
	r, err := s.store.GetRFP(ctx, b.RFPID)
	if err != nil {
		return nil, wrap(err, "rfp")
	}
	if !auth.CanViewBid(p, b, r) {
		return nil, NotFound("bid")
	}
	return b, nil
}

// SubmitBid places the caller's bid on a published RFP before its deadline.
// A bidder may hold one active bid per RFP.
func (s *RFPService) SubmitBid(ctx context.Context, p *auth.Principal, rfpID uuid.UUID, in BidInput) (*model.Bid, error) {
	if err := authorize(p, auth.BidsWrite); err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, p, rfpID)
	if err != nil {
		return nil, err
	}
	if r.OwnerID == p.ID {
		return nil, Forbidden("you cannot bid on your own rfp")
	}
	if !r.AcceptsBids(s.now()) {
		return nil, Conflict("rfp is not accepting bids")
	}

	b := &model.Bid{
		RFPID:        r.ID,
		BidderID:     p.ID,
		Amount:       in.Amount,
		Proposal:     in.Proposal,
		TimelineDays: in.TimelineDays,
		Status:       model.BidSubmitted,
	}
	if err := b.Validate(); err != nil {
		return nil, wrap(err, "bid")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateBid(ctx, b); err != nil {
			if store.IsUniqueViolation(err) {
				return Conflict("you already have an active bid on this rfp")
			}
			return err
		}
		if err := t.audit(ctx, "bid.submitted", "bid", b.ID, nil, detail("rfp_id", r.ID, "amount", b.Amount)); err != nil {
			return err
		}
		return t.notify(ctx, r.OwnerID, "bid.submitted", "New bid received",
			fmt.Sprintf("%s: %.2f", r.Title, b.Amount), "rfp", r.ID)
	})
	if err != nil {
		return nil, wrap(err, "bid")
	}
	return b, nil
}

// WithdrawBid retracts the caller's submitted bid
func (s *RFPService) WithdrawBid(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Bid, error) {
	if err := authorize(p, auth.BidsWrite); err != nil {
		return nil, err
	}
	b, err := s.GetBid(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if b.BidderID != p.ID {
		return nil, Forbidden("only the bidder may withdraw a bid")
	}
	if !b.Status.CanTransitionTo(model.BidWithdrawn) {
		return nil, Conflict("bid is " + string(b.Status))
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.TransitionBid(ctx, b, model.BidWithdrawn); err != nil {
			return err
		}
		return t.audit(ctx, "bid.withdrawn", "bid", b.ID, nil, detail("rfp_id", b.RFPID))
	})
	if err != nil {
		return nil, wrap(err, "bid")
	}
	return b, nil
}

func (s *RFPService) managed(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.RFP, error) {
	if err := authorize(p, auth.RFPsWrite); err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageRFP(p, r) {
		return nil, Forbidden("only the rfp owner may change it")
	}
	return r, nil
}
