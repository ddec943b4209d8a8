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
	rfpCols = []string{"id", "owner_id", "title", "description", "category", "budget_min", "budget_max",
		"deadline", "status", "awarded_bid_id", "created_at", "updated_at"}
	bidCols = []string{"id", "rfp_id", "bidder_id", "amount", "proposal", "timeline_days", "status",
		"created_at", "updated_at"}
)

func rfpRow(id, owner uuid.UUID, status model.RFPStatus, deadline time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(rfpCols).AddRow(id.String(), owner.String(), "Smart lighting", "Citywide LED retrofit",
		"energy", 50000.0, 150000.0, deadline, string(status), nil, testNow, testNow)
}

func bidRows(rows ...[3]uuid.UUID) *sqlmock.Rows {
	r := sqlmock.NewRows(bidCols)
	for _, ids := range rows {
		r.AddRow(ids[0].String(), ids[1].String(), ids[2].String(), 90000.0, "proposal", 90, "submitted", testNow, testNow)
	}
	return r
}

func TestAwardAcceptsBidAndRejectsOthers(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	rfpID, winBid, loseBid := uuid.New(), uuid.New(), uuid.New()
	winner, loser := uuid.New(), uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM rfps WHERE id = \$1 FOR UPDATE`).
		WillReturnRows(rfpRow(rfpID, owner.ID, model.RFPClosed, testNow.Add(-time.Hour)))
	h.mock.ExpectQuery(`FROM bids WHERE id = \$1`).WillReturnRows(bidRows([3]uuid.UUID{winBid, rfpID, winner}))
	h.mock.ExpectQuery(`UPDATE bids SET status = \$3`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`UPDATE bids SET status = 'rejected'`).WillReturnRows(bidRows([3]uuid.UUID{loseBid, rfpID, loser}))
	h.mock.ExpectQuery(`UPDATE rfps`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	res, err := h.svcs.RFPs.Award(context.Background(), owner, rfpID, AwardInput{BidID: winBid})
	require.NoError(t, err)

	assert.Equal(t, model.RFPAwarded, res.RFP.Status)
	require.NotNil(t, res.RFP.AwardedBidID)
	assert.Equal(t, winBid, *res.RFP.AwardedBidID)
	assert.Equal(t, model.BidAccepted, res.Bid.Status)
	assert.Equal(t, 1, res.Rejected)
	assert.Nil(t, res.Project)
	assert.Equal(t, []uuid.UUID{winner, loser}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAwardCreatesProjectForWinner(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	rfpID, winBid, winner := uuid.New(), uuid.New(), uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rfpRow(rfpID, owner.ID, model.RFPPublished, testNow.Add(time.Hour)))
	h.mock.ExpectQuery(`FROM bids WHERE id = \$1`).WillReturnRows(bidRows([3]uuid.UUID{winBid, rfpID, winner}))
	h.mock.ExpectQuery(`UPDATE bids SET status = \$3`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`UPDATE bids SET status = 'rejected'`).WillReturnRows(sqlmock.NewRows(bidCols))
	h.mock.ExpectQuery(`UPDATE rfps`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`INSERT INTO projects`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	res, err := h.svcs.RFPs.Award(context.Background(), owner, rfpID, AwardInput{BidID: winBid, CreateProject: true})
	require.NoError(t, err)

	require.NotNil(t, res.Project)
	assert.Equal(t, "Smart lighting", res.Project.Name)
	assert.Equal(t, owner.ID, res.Project.OwnerID)
	require.NotNil(t, res.Project.IntegratorID)
	assert.Equal(t, winner, *res.Project.IntegratorID)
	assert.Equal(t, 90000.0, res.Project.BudgetTotal)
	assert.Equal(t, model.ProjectPlanning, res.Project.Status)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAwardRejectsBidFromAnotherRFP(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	rfpID := uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rfpRow(rfpID, owner.ID, model.RFPPublished, testNow.Add(time.Hour)))
	h.mock.ExpectQuery(`FROM bids WHERE id = \$1`).WillReturnRows(bidRows([3]uuid.UUID{uuid.New(), uuid.New(), uuid.New()}))
	h.mock.ExpectRollback()

	_, err := h.svcs.RFPs.Award(context.Background(), owner, rfpID, AwardInput{BidID: uuid.New()})
	assertKind(t, err, KindNotFound)
	assert.Empty(t, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAwardRequiresOwner(t *testing.T) {
	h := newHarness(t)
	other := principal(model.RoleMunicipality)
	rfpID := uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rfpRow(rfpID, uuid.New(), model.RFPPublished, testNow.Add(time.Hour)))
	h.mock.ExpectRollback()

	_, err := h.svcs.RFPs.Award(context.Background(), other, rfpID, AwardInput{BidID: uuid.New()})
	assertKind(t, err, KindForbidden)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestAwardDraftConflicts(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	rfpID := uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rfpRow(rfpID, owner.ID, model.RFPDraft, testNow.Add(time.Hour)))
	h.mock.ExpectRollback()

	_, err := h.svcs.RFPs.Award(context.Background(), owner, rfpID, AwardInput{BidID: uuid.New()})
	assertKind(t, err, KindConflict)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestSubmitBid(t *testing.T) {
	ctx := context.Background()
	rfpID := uuid.New()

	t.Run("owner cannot bid", func(t *testing.T) {
		h := newHarness(t)
		dev := principal(model.RoleDeveloper)
		h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(rfpRow(rfpID, dev.ID, model.RFPPublished, testNow.Add(time.Hour)))

		_, err := h.svcs.RFPs.SubmitBid(ctx, dev, rfpID, BidInput{Amount: 1000, Proposal: "p", TimelineDays: 10})
		assertKind(t, err, KindForbidden)
	})

	t.Run("past deadline", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(rfpRow(rfpID, uuid.New(), model.RFPPublished, testNow.Add(-time.Minute)))

		_, err := h.svcs.RFPs.SubmitBid(ctx, principal(model.RoleIntegrator), rfpID, BidInput{Amount: 1000, Proposal: "p", TimelineDays: 10})
		assertKind(t, err, KindConflict)
	})

	t.Run("draft is invisible", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(rfpRow(rfpID, uuid.New(), model.RFPDraft, testNow.Add(time.Hour)))

		_, err := h.svcs.RFPs.SubmitBid(ctx, principal(model.RoleIntegrator), rfpID, BidInput{Amount: 1000, Proposal: "p", TimelineDays: 10})
		assertKind(t, err, KindNotFound)
	})

	t.Run("municipality cannot bid", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svcs.RFPs.SubmitBid(ctx, principal(model.RoleMunicipality), rfpID, BidInput{Amount: 1000})
		assertKind(t, err, KindForbidden)
	})

	t.Run("accepted", func(t *testing.T) {
		h := newHarness(t)
		owner := uuid.New()
		bidder := principal(model.RoleIntegrator)
		h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(rfpRow(rfpID, owner, model.RFPPublished, testNow.Add(time.Hour)))
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`INSERT INTO bids`).WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(testNow, testNow))
		h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
		h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
		h.mock.ExpectCommit()

		b, err := h.svcs.RFPs.SubmitBid(ctx, bidder, rfpID, BidInput{Amount: 1000, Proposal: "p", TimelineDays: 10})
		require.NoError(t, err)
		assert.Equal(t, model.BidSubmitted, b.Status)
		assert.Equal(t, []uuid.UUID{owner}, h.notifier.recipients())
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})
}

func TestCloseExpired(t *testing.T) {
	h := newHarness(t)
	ownerA, ownerB := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(rfpCols).
		AddRow(uuid.New().String(), ownerA.String(), "A", "", "mobility", 0.0, 10.0, testNow.Add(-time.Hour), "closed", nil, testNow, testNow).
		AddRow(uuid.New().String(), ownerB.String(), "B", "", "water", 0.0, 10.0, testNow.Add(-time.Minute), "closed", nil, testNow, testNow)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`UPDATE rfps SET status = 'closed'`).WillReturnRows(rows)
	for i := 0; i < 2; i++ {
		h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
		h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	}
	h.mock.ExpectCommit()

	n, err := h.svcs.RFPs.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{ownerA, ownerB}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestPublishAndCloseRFP(t *testing.T) {
	owner := principal(model.RoleMunicipality)
	future, past := testNow.Add(14*24*time.Hour), testNow.Add(-time.Hour)

	tests := []struct {
		name     string
		caller   *auth.Principal
		status   model.RFPStatus
		deadline time.Time
		close    bool
		locked   model.RFPStatus // status seen under lock; empty when no write is attempted
		want     Kind
	}{
		{name: "publish draft", caller: owner, status: model.RFPDraft, deadline: future, locked: model.RFPDraft},
		{name: "publish past deadline", caller: owner, status: model.RFPDraft, deadline: past, want: KindInvalid},
		{name: "publish twice", caller: owner, status: model.RFPPublished, deadline: future, want: KindConflict},
		{name: "draft hidden from others", caller: principal(model.RoleMunicipality), status: model.RFPDraft, deadline: future, want: KindNotFound},
		{name: "close by non-owner", caller: principal(model.RoleMunicipality), status: model.RFPPublished, deadline: future, close: true, want: KindForbidden},
		{name: "close published", caller: owner, status: model.RFPPublished, deadline: future, close: true, locked: model.RFPPublished},
		{name: "close draft", caller: owner, status: model.RFPDraft, deadline: future, close: true, want: KindConflict},
		{name: "closed concurrently", caller: owner, status: model.RFPPublished, deadline: future, close: true, locked: model.RFPClosed, want: KindConflict},
		{name: "developer", caller: principal(model.RoleDeveloper), status: model.RFPPublished, deadline: future, close: true, want: KindForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rfpID := uuid.New()
			if auth.Can(tt.caller, auth.RFPsWrite) {
				h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).WillReturnRows(rfpRow(rfpID, owner.ID, tt.status, tt.deadline))
			}
			if tt.locked != "" {
				h.mock.ExpectBegin()
				h.mock.ExpectQuery(`FROM rfps WHERE id = \$1 FOR UPDATE`).
					WillReturnRows(rfpRow(rfpID, owner.ID, tt.locked, tt.deadline))
				if tt.locked == tt.status {
					h.mock.ExpectQuery(`UPDATE rfps`).WillReturnRows(updatedRow())
					h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
					h.mock.ExpectCommit()
				} else {
					h.mock.ExpectRollback()
				}
			}

			op := h.svcs.RFPs.Publish
			next := model.RFPPublished
			if tt.close {
				op, next = h.svcs.RFPs.Close, model.RFPClosed
			}
			r, err := op(context.Background(), tt.caller, rfpID)
			if tt.want != "" {
				assertKind(t, err, tt.want)
			} else {
				require.NoError(t, err)
				assert.Equal(t, next, r.Status)
			}
			assert.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}

func TestWithdrawBid(t *testing.T) {
	owner, bidder := principal(model.RoleMunicipality), principal(model.RoleIntegrator)

	tests := []struct {
		name   string
		caller *auth.Principal
		status model.BidStatus
		want   Kind
	}{
		{"bidder withdraws", bidder, model.BidSubmitted, ""},
		{"owner may not withdraw", owner, model.BidSubmitted, KindForbidden},
		{"accepted bid stays", bidder, model.BidAccepted, KindConflict},
		{"other bidder sees nothing", principal(model.RoleDeveloper), model.BidSubmitted, KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			bidID, rfpID := uuid.New(), uuid.New()

			if auth.Can(tt.caller, auth.BidsWrite) {
				h.mock.ExpectQuery(`FROM bids WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(bidCols).
					AddRow(bidID.String(), rfpID.String(), bidder.ID.String(), 90000.0, "proposal", 90, string(tt.status), testNow, testNow))
				h.mock.ExpectQuery(`FROM rfps WHERE id = \$1`).
					WillReturnRows(rfpRow(rfpID, owner.ID, model.RFPPublished, testNow.Add(24*time.Hour)))
			}
			if tt.want == "" {
				h.mock.ExpectBegin()
				h.mock.ExpectQuery(`UPDATE bids SET status = \$3`).
					WithArgs(bidID, model.BidSubmitted, model.BidWithdrawn).
					WillReturnRows(updatedRow())
				h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
				h.mock.ExpectCommit()
			}

			b, err := h.svcs.RFPs.WithdrawBid(context.Background(), tt.caller, bidID)
			if tt.want != "" {
				assertKind(t, err, tt.want)
			} else {
				require.NoError(t, err)
				assert.Equal(t, model.BidWithdrawn, b.Status)
			}
			assert.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}
