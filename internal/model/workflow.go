package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// WorkflowTemplate is a reusable, text-encoded project plan
type WorkflowTemplate struct {
	ID          uuid.UUID `db:"id" json:"id" yaml:"-"`
	CreatedBy   uuid.UUID `db:"created_by" json:"created_by" yaml:"-"`
	Name        string    `db:"name" json:"name" yaml:"name"`
	Description string    `db:"description" json:"description" yaml:"description"`
	Category    Category  `db:"category" json:"category" yaml:"category"`
	Phases      string    `db:"phases" json:"phases" yaml:"phases"`
	Milestones  string    `db:"milestones" json:"milestones" yaml:"milestones"`
	IsPublic    bool      `db:"is_public" json:"is_public" yaml:"public"`
	CreatedAt   time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}

// Validate checks template fields; the encoded plan is parsed separately
func (w *WorkflowTemplate) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("name", w.Name)
	ve.MaxLength("name", w.Name, 200)
	if w.Category != "" {
		validation.OneOf(ve, "category", w.Category, Categories...)
	}
	ve.Required("phases", w.Phases)
	ve.MaxLength("phases", w.Phases, 50000)
	ve.MaxLength("milestones", w.Milestones, 20000)
	return ve.ErrOrNil()
}
