package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// ComplianceStatus is the assessment state of a requirement
type ComplianceStatus string

const (
	ComplianceNotStarted   ComplianceStatus = "not_started"
	ComplianceInProgress   ComplianceStatus = "in_progress"
	ComplianceCompliant    ComplianceStatus = "compliant"
	ComplianceNonCompliant ComplianceStatus = "non_compliant"
)

// ComplianceStatuses lists every compliance status
var ComplianceStatuses = []ComplianceStatus{
	ComplianceNotStarted, ComplianceInProgress, ComplianceCompliant, ComplianceNonCompliant,
}

// ComplianceRequirement is a regulatory or standards obligation on a project
type ComplianceRequirement struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	ProjectID   uuid.UUID        `db:"project_id" json:"project_id"`
	Standard    string           `db:"standard" json:"standard"`
	Description string           `db:"description" json:"description"`
	Status      ComplianceStatus `db:"status" json:"status"`
	EvidenceURL string           `db:"evidence_url" json:"evidence_url"`
	ReviewedAt  *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// Validate checks requirement fields
func (c *ComplianceRequirement) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("standard", c.Standard)
	ve.MaxLength("standard", c.Standard, 100)
	ve.MaxLength("description", c.Description, 5000)
	validation.OneOf(ve, "status", c.Status, ComplianceStatuses...)
	ve.URL("evidence_url", c.EvidenceURL)
	return ve.ErrOrNil()
}

// ComplianceSummary counts requirements by status
type ComplianceSummary struct {
	Total    int                      `json:"total"`
	ByStatus map[ComplianceStatus]int `json:"by_status"`
	Score    float64                  `json:"score"`
}

// SummarizeCompliance computes status counts and the compliant share
func SummarizeCompliance(counts map[ComplianceStatus]int) ComplianceSummary {
	summary := ComplianceSummary{ByStatus: make(map[ComplianceStatus]int, len(ComplianceStatuses))}
	for _, s := range ComplianceStatuses {
		summary.ByStatus[s] = counts[s]
		summary.Total += counts[s]
	}
	if summary.Total > 0 {
		summary.Score = Round1(float64(summary.ByStatus[ComplianceCompliant]) / float64(summary.Total) * 100)
	}
	return summary
}
