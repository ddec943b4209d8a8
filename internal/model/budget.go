package model

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// BudgetCategory groups budget line items
type BudgetCategory string

const (
	BudgetHardware    BudgetCategory = "hardware"
	BudgetSoftware    BudgetCategory = "software"
	BudgetServices    BudgetCategory = "services"
	BudgetPersonnel   BudgetCategory = "personnel"
	BudgetMaintenance BudgetCategory = "maintenance"
	BudgetOther       BudgetCategory = "other"
)

// BudgetCategories lists every budget category
var BudgetCategories = []BudgetCategory{
	BudgetHardware, BudgetSoftware, BudgetServices, BudgetPersonnel, BudgetMaintenance, BudgetOther,
}

// BudgetItem is a planned and actual spend line on a project
type BudgetItem struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	ProjectID     uuid.UUID      `db:"project_id" json:"project_id"`
	Category      BudgetCategory `db:"category" json:"category"`
	Description   string         `db:"description" json:"description"`
	PlannedAmount float64        `db:"planned_amount" json:"planned_amount"`
	ActualAmount  float64        `db:"actual_amount" json:"actual_amount"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Validate checks budget item fields
func (b *BudgetItem) Validate() error {
	ve := validation.NewValidationErrors()
	validation.OneOf(ve, "category", b.Category, BudgetCategories...)
	ve.Required("description", b.Description)
	ve.MaxLength("description", b.Description, 500)
	ve.NonNegative("planned_amount", b.PlannedAmount)
	ve.NonNegative("actual_amount", b.ActualAmount)
	return ve.ErrOrNil()
}

// CategoryTotals is the planned and actual spend of one budget category
type CategoryTotals struct {
	Category BudgetCategory `json:"category"`
	Planned  float64        `json:"planned"`
	Actual   float64        `json:"actual"`
	Variance float64        `json:"variance"`
}

// BudgetSummary aggregates a project's budget items
type BudgetSummary struct {
	ProjectID          uuid.UUID        `json:"project_id"`
	BudgetTotal        float64          `json:"budget_total"`
	TotalPlanned       float64          `json:"total_planned"`
	TotalActual        float64          `json:"total_actual"`
	Variance           float64          `json:"variance"`
	UtilizationPercent float64          `json:"utilization_percent"`
	Remaining          float64          `json:"remaining"`
	OverBudget         bool             `json:"over_budget"`
	ByCategory         []CategoryTotals `json:"by_category"`
}

// SummarizeBudget computes totals, variance and per-category breakdown
func SummarizeBudget(projectID uuid.UUID, budgetTotal float64, items []BudgetItem) BudgetSummary {
	summary := BudgetSummary{
		ProjectID:   projectID,
		BudgetTotal: budgetTotal,
		ByCategory:  []CategoryTotals{},
	}

	byCategory := make(map[BudgetCategory]*CategoryTotals)
	for _, item := range items {
		summary.TotalPlanned += item.PlannedAmount
		summary.TotalActual += item.ActualAmount

		ct, ok := byCategory[item.Category]
		if !ok {
			ct = &CategoryTotals{Category: item.Category}
			byCategory[item.Category] = ct
		}
		ct.Planned += item.PlannedAmount
		ct.Actual += item.ActualAmount
	}

	for _, ct := range byCategory {
		ct.Planned = Round2(ct.Planned)
		ct.Actual = Round2(ct.Actual)
		ct.Variance = Round2(ct.Planned - ct.Actual)
		summary.ByCategory = append(summary.ByCategory, *ct)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		return summary.ByCategory[i].Category < summary.ByCategory[j].Category
	})

	summary.TotalPlanned = Round2(summary.TotalPlanned)
	summary.TotalActual = Round2(summary.TotalActual)
	summary.Variance = Round2(summary.TotalPlanned - summary.TotalActual)
	if summary.TotalPlanned > 0 {
		summary.UtilizationPercent = Round1(summary.TotalActual / summary.TotalPlanned * 100)
	}
	summary.Remaining = Round2(budgetTotal - summary.TotalActual)
	// a zero budget_total means no overall cap has been set
	summary.OverBudget = summary.TotalActual > summary.TotalPlanned ||
		(budgetTotal > 0 && summary.TotalActual > budgetTotal)

	return summary
}
