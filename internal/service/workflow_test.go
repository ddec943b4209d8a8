package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
)

var (
	projectCols = []string{"id", "owner_id", "integrator_id", "solution_id", "name", "description", "status",
		"budget_total", "start_date", "end_date", "created_at", "updated_at"}
	templateCols = []string{"id", "created_by", "name", "description", "category", "phases", "milestones",
		"is_public", "created_at", "updated_at"}
)

const (
	testPhases     = "# delivery plan\nDiscovery [5]: survey; interviews\n\nBuild [10]: install"
	testMilestones = "Kickoff @ 0\nLaunch @ 20"
)

func projectRow(id, owner uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows(projectCols).AddRow(id.String(), owner.String(), nil, nil, "Sensors", "", "active",
		100000.0, nil, nil, testNow, testNow)
}

func templateRow(id, creator uuid.UUID, public bool) *sqlmock.Rows {
	return sqlmock.NewRows(templateCols).AddRow(id.String(), creator.String(), "Sensor rollout", "", "environment",
		testPhases, testMilestones, public, testNow, testNow)
}

func twoCols() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow)
}

func TestApplyTemplate(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID, templateID := uuid.New(), uuid.New()
	start := time.Date(2026, 4, 1, 15, 30, 0, 0, time.UTC)

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM workflow_templates WHERE id = \$1`).WillReturnRows(templateRow(templateID, uuid.New(), true))
	h.mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		h.mock.ExpectQuery(`INSERT INTO tasks`).WillReturnRows(twoCols())
	}
	for i := 0; i < 2; i++ {
		h.mock.ExpectQuery(`INSERT INTO milestones`).WillReturnRows(twoCols())
	}
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	res, err := h.svcs.Workflows.Apply(context.Background(), owner, projectID, ApplyInput{TemplateID: templateID, StartDate: start})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TasksCreated)
	assert.Equal(t, 2, res.MilestonesCreated)
	assert.Equal(t, time.Date(2026, 4, 21, 0, 0, 0, 0, time.UTC), res.EndDate)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestApplyTemplateRollsBack(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID, templateID := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM workflow_templates WHERE id = \$1`).WillReturnRows(templateRow(templateID, owner.ID, false))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`INSERT INTO tasks`).WillReturnRows(twoCols())
	h.mock.ExpectQuery(`INSERT INTO tasks`).WillReturnError(errors.New("connection reset"))
	h.mock.ExpectRollback()

	_, err := h.svcs.Workflows.Apply(context.Background(), owner, projectID, ApplyInput{TemplateID: templateID})
	assertKind(t, err, KindInternal)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestApplyTemplateHiddenFromOutsider(t *testing.T) {
	h := newHarness(t)
	projectID := uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, uuid.New()))

	_, err := h.svcs.Workflows.Apply(context.Background(), principal(model.RoleMunicipality), projectID, ApplyInput{TemplateID: uuid.New()})
	assertKind(t, err, KindNotFound)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestPreviewInline(t *testing.T) {
	h := newHarness(t)

	s, err := h.svcs.Workflows.Preview(context.Background(), principal(model.RoleDeveloper), PreviewInput{
		Phases:     testPhases,
		Milestones: testMilestones,
		StartDate:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, s.Tasks, 3)
	assert.Equal(t, "Discovery", s.Tasks[0].Phase)
	assert.Equal(t, time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC), s.Tasks[0].DueDate)
	assert.Equal(t, time.Date(2026, 4, 16, 0, 0, 0, 0, time.UTC), s.Tasks[2].DueDate)
	assert.Equal(t, 20, s.TotalDays)
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name       string
		phases     string
		milestones string
		field      string
	}{
		{"no phases", "# nothing yet\n", "", "phases"},
		{"bad milestone", "Build: install", "Launch on day 5", "milestones"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePlan(tt.phases, tt.milestones)
			var se *Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, KindInvalid, se.Kind)
			assert.Contains(t, se.Fields, tt.field)
		})
	}
}

func TestCreateTemplateRejectsBadPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.svcs.Workflows.Create(context.Background(), principal(model.RoleIntegrator), TemplateInput{
		Name:       "Broken",
		Phases:     "Build: install",
		Milestones: "Launch @ -1",
	})
	assertKind(t, err, KindInvalid)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}
