package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// Category is a smart-city technology domain shared by solutions and RFPs
type Category string

const (
	CategoryMobility     Category = "mobility"
	CategoryEnergy       Category = "energy"
	CategoryWater        Category = "water"
	CategoryWaste        Category = "waste"
	CategorySafety       Category = "safety"
	CategoryGovernance   Category = "governance"
	CategoryEnvironment  Category = "environment"
	CategoryConnectivity Category = "connectivity"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategoryMobility, CategoryEnergy, CategoryWater, CategoryWaste,
	CategorySafety, CategoryGovernance, CategoryEnvironment, CategoryConnectivity,
}

// SolutionStatus is the publication state of a marketplace listing
type SolutionStatus string

const (
	SolutionDraft     SolutionStatus = "draft"
	SolutionPublished SolutionStatus = "published"
	SolutionArchived  SolutionStatus = "archived"
)

var solutionTransitions = transitions[SolutionStatus]{
	SolutionDraft:     {SolutionPublished, SolutionArchived},
	SolutionPublished: {SolutionArchived, SolutionDraft},
	SolutionArchived:  {SolutionDraft},
}

// CanTransitionTo reports whether s may move to next
func (s SolutionStatus) CanTransitionTo(next SolutionStatus) bool {
	return solutionTransitions.allows(s, next)
}

// Solution is a vendor-offered smart-city technology listing
type Solution struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	DeveloperID uuid.UUID      `db:"developer_id" json:"developer_id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Category    Category       `db:"category" json:"category"`
	Tags        []string       `db:"tags" json:"tags"`
	PriceMin    float64        `db:"price_min" json:"price_min"`
	PriceMax    float64        `db:"price_max" json:"price_max"`
	Rating      float64        `db:"rating" json:"rating"`
	Deployments int            `db:"deployments" json:"deployments"`
	Status      SolutionStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks solution fields
func (s *Solution) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("name", s.Name)
	ve.MaxLength("name", s.Name, 200)
	ve.MaxLength("description", s.Description, 10000)
	validation.OneOf(ve, "category", s.Category, Categories...)
	validation.OneOf(ve, "status", s.Status, SolutionDraft, SolutionPublished, SolutionArchived)
	ve.NonNegative("price_min", s.PriceMin)
	ve.NonNegative("price_max", s.PriceMax)
	if s.PriceMax < s.PriceMin {
		ve.Add("price_max", "must be greater than or equal to price_min")
	}
	ve.Range("rating", s.Rating, 0, 5)
	if s.Deployments < 0 {
		ve.Add("deployments", "must not be negative")
	}
	if len(s.Tags) > 20 {
		ve.Add("tags", "must have at most 20 entries")
	}
	return ve.ErrOrNil()
}
