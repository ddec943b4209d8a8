package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu  sync.Mutex
	got []uuid.UUID
}

func (r *recordingNotifier) Notify(profileID uuid.UUID, _ interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, profileID)
	return true
}

func (r *recordingNotifier) recipients() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.got...)
}

type harness struct {
	svcs     *Services
	mock     sqlmock.Sqlmock
	cache    *cache.MemoryCache
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-that-is-at-least-32-bytes", time.Hour)
	require.NoError(t, err)

	h := &harness{
		mock:     mock,
		cache:    cache.NewMemoryCache(cache.DefaultCacheConfig()),
		notifier: &recordingNotifier{},
	}
	h.svcs = New(Deps{
		Store:    store.New(db),
		Cache:    h.cache,
		Notifier: h.notifier,
		Tokens:   tokens,
		Now:      func() time.Time { return testNow },
	})
	return h
}

func principal(role model.Role) *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Email: string(role) + "@example.com", Roles: []string{string(role)}}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, KindOf(err), "error: %v", err)
}

func createdRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"created_at"}).AddRow(testNow)
}

func updatedRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"updated_at"}).AddRow(testNow)
}

func TestAuthorize(t *testing.T) {
	assertKind(t, authorize(nil, auth.ProjectsWrite), KindUnauthorized)
	assertKind(t, authorize(principal(model.RoleDeveloper), auth.ProjectsWrite), KindForbidden)
	assert.NoError(t, authorize(principal(model.RoleMunicipality), auth.ProjectsWrite))
	assert.NoError(t, authorize(SystemPrincipal(), auth.FundingManage))
}

func TestTxnNotifySkipsActor(t *testing.T) {
	h := newHarness(t)
	actor := uuid.New()
	other := uuid.New()

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	b := h.svcs.Tasks.base
	err := b.inTx(context.Background(), actor, func(tx *txn) error {
		if err := tx.notify(context.Background(), actor, "k", "t", "b", "task", uuid.New()); err != nil {
			return err
		}
		if err := tx.notify(context.Background(), uuid.Nil, "k", "t", "b", "task", uuid.New()); err != nil {
			return err
		}
		return tx.notify(context.Background(), other, "k", "t", "b", "task", uuid.New())
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{other}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestInTxRollbackSkipsFanOut(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(createdRow())
	h.mock.ExpectRollback()

	b := h.svcs.Tasks.base
	err := b.inTx(context.Background(), uuid.New(), func(tx *txn) error {
		if err := tx.notify(context.Background(), uuid.New(), "k", "t", "b", "task", uuid.New()); err != nil {
			return err
		}
		return Conflict("stop")
	})
	assertKind(t, err, KindConflict)
	assert.Empty(t, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestDetail(t *testing.T) {
	d := detail("a", 1, "b", "two", 3, "ignored", "dangling")
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "two"}, d)
}
