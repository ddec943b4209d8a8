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

func TestUpdateProjectStatus(t *testing.T) {
	tests := []struct {
		name string
		to   model.ProjectStatus
		ok   bool
	}{
		{"pause", model.ProjectOnHold, true},
		{"finish", model.ProjectCompleted, true},
		{"back to planning", model.ProjectPlanning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			owner := principal(model.RoleMunicipality)
			projectID := uuid.New()

			h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
			if tt.ok {
				h.mock.ExpectBegin()
				h.mock.ExpectQuery(`UPDATE projects`).WillReturnRows(updatedRow())
				h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
				h.mock.ExpectCommit()
			}

			to := tt.to
			pr, err := h.svcs.Projects.Update(context.Background(), owner, projectID, ProjectPatch{Status: &to})
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, pr.Status)
			} else {
				assertKind(t, err, KindConflict)
			}
			assert.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}

func TestProjectHiddenFromOutsider(t *testing.T) {
	h := newHarness(t)
	projectID := uuid.New()
	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, uuid.New()))

	name := "Renamed"
	_, err := h.svcs.Projects.Update(context.Background(), principal(model.RoleMunicipality), projectID, ProjectPatch{Name: &name})
	assertKind(t, err, KindNotFound)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestProjectVisibleToAdmin(t *testing.T) {
	h := newHarness(t)
	projectID := uuid.New()
	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, uuid.New()))

	pr, err := h.svcs.Projects.loadProject(context.Background(), principal(model.RoleAdmin), projectID)
	require.NoError(t, err)
	assert.Equal(t, projectID, pr.ID)
}

var documentCols = []string{"id", "project_id", "uploaded_by", "name", "doc_type", "url", "size_bytes", "version", "created_at", "updated_at"}

func TestReplaceDocumentBumpsVersion(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID, docID := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM documents WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(documentCols).
		AddRow(docID.String(), projectID.String(), owner.ID.String(), "Permit", "permit", "https://files.example.com/p1.pdf", 1024, 1, testNow, testNow))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`UPDATE documents`).
		WithArgs(docID, "https://files.example.com/p2.pdf", int64(2048), owner.ID).
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(2, testNow))
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	d, err := h.svcs.Documents.Replace(context.Background(), owner, projectID, docID, ReplaceInput{
		URL:       "https://files.example.com/p2.pdf",
		SizeBytes: 2048,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Version)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestDocumentFromAnotherProject(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID, docID := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM documents WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(documentCols).
		AddRow(docID.String(), uuid.NewString(), owner.ID.String(), "Permit", "permit", "https://files.example.com/p1.pdf", 1024, 1, testNow, testNow))

	err := h.svcs.Documents.Delete(context.Background(), owner, projectID, docID)
	assertKind(t, err, KindNotFound)
	assert.NoError(t, h.mock.ExpectationsWereMet())
}
