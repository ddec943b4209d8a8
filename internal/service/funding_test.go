package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/web/auth"
)

var (
	opportunityCols = []string{"id", "title", "provider", "type", "amount_min", "amount_max", "deadline", "eligibility",
		"categories", "url", "status", "created_at", "updated_at"}
	applicationCols = []string{"id", "opportunity_id", "applicant_id", "project_id", "amount_requested", "status",
		"notes", "created_at", "updated_at"}
)

func TestSendDeadlineReminders(t *testing.T) {
	h := newHarness(t)
	reminded, pending := uuid.New(), uuid.New()
	dayStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	drafts := sqlmock.NewRows([]string{"id", "applicant_id", "opp_id", "title", "deadline"}).
		AddRow(uuid.New().String(), reminded.String(), uuid.New().String(), "Green fund", testNow.Add(48*time.Hour)).
		AddRow(uuid.New().String(), pending.String(), uuid.New().String(), "Mobility grant", testNow.Add(72*time.Hour))

	h.mock.ExpectQuery(`FROM funding_applications a`).
		WithArgs(testNow, testNow.AddDate(0, 0, 7)).
		WillReturnRows(drafts)
	h.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(reminded, KindFundingDeadline, sqlmock.AnyArg(), dayStart).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	h.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(pending, KindFundingDeadline, sqlmock.AnyArg(), dayStart).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	n, err := h.svcs.Funding.SendDeadlineReminders(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{pending}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func opportunityRow(id uuid.UUID, status model.OpportunityStatus, deadline time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(opportunityCols).AddRow(id.String(), "Green fund", "EU", "grant", 1000.0, 50000.0, deadline,
		"municipalities", "{energy}", "https://example.eu/green", string(status), testNow, testNow)
}

func TestCreateApplication(t *testing.T) {
	ctx := context.Background()
	oppID := uuid.New()

	t.Run("closed opportunity", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM funding_opportunities WHERE id = \$1`).
			WillReturnRows(opportunityRow(oppID, model.OpportunityOpen, testNow.Add(-time.Hour)))

		_, err := h.svcs.Funding.CreateApplication(ctx, principal(model.RoleMunicipality),
			ApplicationInput{OpportunityID: oppID, AmountRequested: 5000})
		assertKind(t, err, KindConflict)
	})

	t.Run("draft created", func(t *testing.T) {
		h := newHarness(t)
		me := principal(model.RoleMunicipality)
		h.mock.ExpectQuery(`FROM funding_opportunities WHERE id = \$1`).
			WillReturnRows(opportunityRow(oppID, model.OpportunityOpen, testNow.Add(30*24*time.Hour)))
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`INSERT INTO funding_applications`).WillReturnRows(twoCols())
		h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
		h.mock.ExpectCommit()

		a, err := h.svcs.Funding.CreateApplication(ctx, me, ApplicationInput{OpportunityID: oppID, AmountRequested: 5000})
		require.NoError(t, err)
		assert.Equal(t, model.ApplicationDraft, a.Status)
		assert.Equal(t, me.ID, a.ApplicantID)
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("developers cannot apply", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svcs.Funding.CreateApplication(ctx, principal(model.RoleDeveloper),
			ApplicationInput{OpportunityID: oppID, AmountRequested: 5000})
		assertKind(t, err, KindForbidden)
	})
}

func TestSubmitApplicationChecksAmount(t *testing.T) {
	h := newHarness(t)
	me := principal(model.RoleMunicipality)
	appID, oppID := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM funding_applications WHERE id = \$1`).WillReturnRows(
		sqlmock.NewRows(applicationCols).AddRow(appID.String(), oppID.String(), me.ID.String(), nil, 80000.0, "draft", "", testNow, testNow))
	h.mock.ExpectQuery(`FROM funding_opportunities WHERE id = \$1`).
		WillReturnRows(opportunityRow(oppID, model.OpportunityOpen, testNow.Add(24*time.Hour)))

	_, err := h.svcs.Funding.SubmitApplication(context.Background(), me, appID)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindInvalid, se.Kind)
	assert.Equal(t, []string{"must not exceed 50000.00"}, se.Fields["amount_requested"])
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestDecideApplicationNotifiesApplicant(t *testing.T) {
	h := newHarness(t)
	admin := principal(model.RoleAdmin)
	appID, applicant := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM funding_applications WHERE id = \$1`).WillReturnRows(
		sqlmock.NewRows(applicationCols).AddRow(appID.String(), uuid.New().String(), applicant.String(), nil, 8000.0, "submitted", "", testNow, testNow))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`UPDATE funding_applications SET status = \$3`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	a, err := h.svcs.Funding.DecideApplication(context.Background(), admin, appID, true)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationApproved, a.Status)
	assert.Equal(t, []uuid.UUID{applicant}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestApplicationChangesNeedApplicant(t *testing.T) {
	tests := []struct {
		name   string
		caller *auth.Principal
		loads  bool
		want   Kind
	}{
		{"other municipality", principal(model.RoleMunicipality), true, KindNotFound},
		{"admin", principal(model.RoleAdmin), true, KindForbidden},
		{"developer", principal(model.RoleDeveloper), false, KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			appID := uuid.New()
			if tt.loads {
				h.mock.ExpectQuery(`FROM funding_applications WHERE id = \$1`).WillReturnRows(
					sqlmock.NewRows(applicationCols).AddRow(appID.String(), uuid.New().String(), uuid.New().String(), nil, 8000.0, "draft", "", testNow, testNow))
			}

			_, err := h.svcs.Funding.SubmitApplication(context.Background(), tt.caller, appID)
			assertKind(t, err, tt.want)
			assert.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}
