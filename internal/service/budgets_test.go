package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
)

var budgetItemCols = []string{"id", "project_id", "category", "description", "planned_amount", "actual_amount",
	"created_at", "updated_at"}

func TestBudgetSummary(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID := uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM budget_items WHERE project_id = \$1`).
		WithArgs(projectID).
		WillReturnRows(sqlmock.NewRows(budgetItemCols).
			AddRow(uuid.NewString(), projectID.String(), "hardware", "Sensors", 60000.0, 45000.0, testNow, testNow).
			AddRow(uuid.NewString(), projectID.String(), "software", "Licences", 20000.0, 27000.0, testNow, testNow))

	s, err := h.svcs.Budgets.Summary(context.Background(), owner, projectID)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, s.BudgetTotal)
	assert.Equal(t, 80000.0, s.TotalPlanned)
	assert.Equal(t, 72000.0, s.TotalActual)
	assert.Equal(t, 8000.0, s.Variance)
	assert.Equal(t, 90.0, s.UtilizationPercent)
	assert.Equal(t, 28000.0, s.Remaining)
	assert.False(t, s.OverBudget)
	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, model.CategoryTotals{Category: model.BudgetSoftware, Planned: 20000, Actual: 27000, Variance: -7000}, s.ByCategory[1])
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestBudgetSummaryHiddenFromOutsider(t *testing.T) {
	h := newHarness(t)
	projectID := uuid.New()
	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, uuid.New()))

	_, err := h.svcs.Budgets.Summary(context.Background(), principal(model.RoleIntegrator), projectID)
	assertKind(t, err, KindNotFound)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestCreateBudgetItem(t *testing.T) {
	ctx := context.Background()
	owner := principal(model.RoleMunicipality)
	projectID := uuid.New()

	t.Run("stored", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`INSERT INTO budget_items`).WillReturnRows(twoCols())
		h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
		h.mock.ExpectCommit()

		item, err := h.svcs.Budgets.Create(ctx, owner, projectID, BudgetItemInput{
			Category: model.BudgetHardware, Description: "Gateways", PlannedAmount: 12000,
		})
		require.NoError(t, err)
		assert.Equal(t, projectID, item.ProjectID)
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("invalid", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))

		_, err := h.svcs.Budgets.Create(ctx, owner, projectID, BudgetItemInput{
			Category: "travel", Description: "Site visits", PlannedAmount: -5,
		})
		var se *Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, KindInvalid, se.Kind)
		assert.Contains(t, se.Fields, "category")
		assert.Contains(t, se.Fields, "planned_amount")
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})
}
