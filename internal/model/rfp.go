package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// RFPStatus is the procurement state of a request for proposal
type RFPStatus string

const (
	RFPDraft     RFPStatus = "draft"
	RFPPublished RFPStatus = "published"
	RFPClosed    RFPStatus = "closed"
	RFPAwarded   RFPStatus = "awarded"
)

var rfpTransitions = transitions[RFPStatus]{
	RFPDraft:     {RFPPublished},
	RFPPublished: {RFPClosed, RFPAwarded},
	RFPClosed:    {RFPAwarded},
}

// CanTransitionTo reports whether s may move to next
func (s RFPStatus) CanTransitionTo(next RFPStatus) bool {
	return rfpTransitions.allows(s, next)
}

// IsPublic reports whether RFPs in this status are visible to every profile
func (s RFPStatus) IsPublic() bool {
	return s != RFPDraft
}

// RFP is a procurement posting by a municipality
type RFP struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	OwnerID      uuid.UUID  `db:"owner_id" json:"owner_id"`
	Title        string     `db:"title" json:"title"`
	Description  string     `db:"description" json:"description"`
	Category     Category   `db:"category" json:"category"`
	BudgetMin    float64    `db:"budget_min" json:"budget_min"`
	BudgetMax    float64    `db:"budget_max" json:"budget_max"`
	Deadline     time.Time  `db:"deadline" json:"deadline"`
	Status       RFPStatus  `db:"status" json:"status"`
	AwardedBidID *uuid.UUID `db:"awarded_bid_id" json:"awarded_bid_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks RFP fields
func (r *RFP) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("title", r.Title)
	ve.MaxLength("title", r.Title, 300)
	ve.MaxLength("description", r.Description, 20000)
	validation.OneOf(ve, "category", r.Category, Categories...)
	ve.NonNegative("budget_min", r.BudgetMin)
	ve.NonNegative("budget_max", r.BudgetMax)
	if r.BudgetMax < r.BudgetMin {
		ve.Add("budget_max", "must be greater than or equal to budget_min")
	}
	if r.Deadline.IsZero() {
		ve.Add("deadline", "is required")
	}
	return ve.ErrOrNil()
}

// ValidateForPublish checks the extra conditions needed before publishing
func (r *RFP) ValidateForPublish(now time.Time) error {
	ve := validation.NewValidationErrors()
	if err := r.Validate(); err != nil {
		return err
	}
	if !r.Deadline.After(now) {
		ve.Add("deadline", "must be in the future to publish")
	}
	if r.BudgetMax <= 0 {
		ve.Add("budget_max", "must be set to publish")
	}
	return ve.ErrOrNil()
}

// AcceptsBids reports whether bids may be submitted at now
func (r *RFP) AcceptsBids(now time.Time) bool {
	return r.Status == RFPPublished && now.Before(r.Deadline)
}

// BidStatus is the review state of a bid
type BidStatus string

const (
	BidSubmitted BidStatus = "submitted"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
)

var bidTransitions = transitions[BidStatus]{
	BidSubmitted: {BidAccepted, BidRejected, BidWithdrawn},
}

// CanTransitionTo reports whether s may move to next
func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	return bidTransitions.allows(s, next)
}

// Bid is a vendor response to an RFP
type Bid struct {
	ID           uuid.UUID `db:"id" json:"id"`
	RFPID        uuid.UUID `db:"rfp_id" json:"rfp_id"`
	BidderID     uuid.UUID `db:"bidder_id" json:"bidder_id"`
	Amount       float64   `db:"amount" json:"amount"`
	Proposal     string    `db:"proposal" json:"proposal"`
	TimelineDays int       `db:"timeline_days" json:"timeline_days"`
	Status       BidStatus `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks bid fields
func (b *Bid) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Positive("amount", b.Amount)
	ve.Required("proposal", b.Proposal)
	ve.MaxLength("proposal", b.Proposal, 20000)
	if b.TimelineDays <= 0 {
		ve.Add("timeline_days", "must be greater than 0")
	}
	return ve.ErrOrNil()
}
