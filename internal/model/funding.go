package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// FundingType classifies a funding opportunity
type FundingType string

const (
	FundingGrant       FundingType = "grant"
	FundingLoan        FundingType = "loan"
	FundingPartnership FundingType = "partnership"
	FundingIncentive   FundingType = "incentive"
)

// OpportunityStatus says whether an opportunity accepts applications
type OpportunityStatus string

const (
	OpportunityOpen   OpportunityStatus = "open"
	OpportunityClosed OpportunityStatus = "closed"
)

// FundingOpportunity is a grant, loan or incentive programme
type FundingOpportunity struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Provider    string            `db:"provider" json:"provider"`
	Type        FundingType       `db:"type" json:"type"`
	AmountMin   float64           `db:"amount_min" json:"amount_min"`
	AmountMax   float64           `db:"amount_max" json:"amount_max"`
	Deadline    time.Time         `db:"deadline" json:"deadline"`
	Eligibility string            `db:"eligibility" json:"eligibility"`
	Categories  []string          `db:"categories" json:"categories"`
	URL         string            `db:"url" json:"url"`
	Status      OpportunityStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Validate checks opportunity fields
func (f *FundingOpportunity) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("title", f.Title)
	ve.Required("provider", f.Provider)
	validation.OneOf(ve, "type", f.Type, FundingGrant, FundingLoan, FundingPartnership, FundingIncentive)
	validation.OneOf(ve, "status", f.Status, OpportunityOpen, OpportunityClosed)
	ve.NonNegative("amount_min", f.AmountMin)
	ve.NonNegative("amount_max", f.AmountMax)
	if f.AmountMax < f.AmountMin {
		ve.Add("amount_max", "must be greater than or equal to amount_min")
	}
	if f.Deadline.IsZero() {
		ve.Add("deadline", "is required")
	}
	ve.URL("url", f.URL)
	for _, c := range f.Categories {
		validation.OneOf(ve, "categories", Category(c), Categories...)
	}
	return ve.ErrOrNil()
}

// ApplicationStatus is the review state of a funding application
type ApplicationStatus string

const (
	ApplicationDraft     ApplicationStatus = "draft"
	ApplicationSubmitted ApplicationStatus = "submitted"
	ApplicationApproved  ApplicationStatus = "approved"
	ApplicationRejected  ApplicationStatus = "rejected"
)

var applicationTransitions = transitions[ApplicationStatus]{
	ApplicationDraft:     {ApplicationSubmitted},
	ApplicationSubmitted: {ApplicationApproved, ApplicationRejected},
}

// CanTransitionTo reports whether s may move to next
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return applicationTransitions.allows(s, next)
}

// FundingApplication is a municipality's request against an opportunity
type FundingApplication struct {
	ID              uuid.UUID         `db:"id" json:"id"`
	OpportunityID   uuid.UUID         `db:"opportunity_id" json:"opportunity_id"`
	ApplicantID     uuid.UUID         `db:"applicant_id" json:"applicant_id"`
	ProjectID       *uuid.UUID        `db:"project_id" json:"project_id,omitempty"`
	AmountRequested float64           `db:"amount_requested" json:"amount_requested"`
	Status          ApplicationStatus `db:"status" json:"status"`
	Notes           string            `db:"notes" json:"notes"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// Validate checks application fields
func (a *FundingApplication) Validate() error {
	ve := validation.NewValidationErrors()
	if a.OpportunityID == uuid.Nil {
		ve.Add("opportunity_id", "is required")
	}
	ve.Positive("amount_requested", a.AmountRequested)
	ve.MaxLength("notes", a.Notes, 10000)
	return ve.ErrOrNil()
}
