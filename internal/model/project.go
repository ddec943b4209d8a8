package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// ProjectStatus is the lifecycle state of a municipal project
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// ProjectStatuses lists every project status
var ProjectStatuses = []ProjectStatus{ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled}

var projectTransitions = transitions[ProjectStatus]{
	ProjectPlanning: {ProjectActive, ProjectCancelled},
	ProjectActive:   {ProjectOnHold, ProjectCompleted, ProjectCancelled},
	ProjectOnHold:   {ProjectActive, ProjectCancelled},
}

// CanTransitionTo reports whether s may move to next
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	return projectTransitions.allows(s, next)
}

// Project is a municipality's technology adoption effort
type Project struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	OwnerID      uuid.UUID     `db:"owner_id" json:"owner_id"`
	IntegratorID *uuid.UUID    `db:"integrator_id" json:"integrator_id,omitempty"`
	SolutionID   *uuid.UUID    `db:"solution_id" json:"solution_id,omitempty"`
	Name         string        `db:"name" json:"name"`
	Description  string        `db:"description" json:"description"`
	Status       ProjectStatus `db:"status" json:"status"`
	BudgetTotal  float64       `db:"budget_total" json:"budget_total"`
	StartDate    *time.Time    `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time    `db:"end_date" json:"end_date,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// IsMember reports whether the profile owns or integrates the project
func (p *Project) IsMember(profileID uuid.UUID) bool {
	if p.OwnerID == profileID {
		return true
	}
	return p.IntegratorID != nil && *p.IntegratorID == profileID
}

// Validate checks project fields
func (p *Project) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("name", p.Name)
	ve.MaxLength("name", p.Name, 200)
	ve.MaxLength("description", p.Description, 10000)
	validation.OneOf(ve, "status", p.Status, ProjectStatuses...)
	ve.NonNegative("budget_total", p.BudgetTotal)
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		ve.Add("end_date", "must not be before start_date")
	}
	return ve.ErrOrNil()
}

// ProjectDetail is a project with its computed progress
type ProjectDetail struct {
	Project
	TasksTotal int     `json:"tasks_total"`
	TasksDone  int     `json:"tasks_done"`
	Progress   float64 `json:"progress"`
}

// Progress returns done / total × 100 rounded to one decimal, 0 when total is 0
func Progress(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round1(float64(done) / float64(total) * 100)
}

// Milestone is a dated checkpoint on a project
type Milestone struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`
	DueDate   time.Time `db:"due_date" json:"due_date"`
	Completed bool      `db:"completed" json:"completed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Validate checks milestone fields
func (m *Milestone) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("name", m.Name)
	ve.MaxLength("name", m.Name, 200)
	if m.DueDate.IsZero() {
		ve.Add("due_date", "is required")
	}
	return ve.ErrOrNil()
}
