package service

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
)

var taskCols = []string{"id", "project_id", "assignee_id", "title", "description", "phase", "status", "priority",
	"due_date", "created_at", "updated_at"}

func TestListTasksOverdueFilter(t *testing.T) {
	ctx := context.Background()
	owner := principal(model.RoleMunicipality)
	projectID := uuid.New()

	t.Run("overdue", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
		h.mock.ExpectQuery(regexp.QuoteMeta(`FROM tasks WHERE project_id = $1 AND (due_date < CURRENT_DATE AND status <> 'done') ORDER BY`)).
			WithArgs(projectID, store.DefaultLimit, 0).
			WillReturnRows(sqlmock.NewRows(taskCols).AddRow(uuid.NewString(), projectID.String(), nil, "Mount sensors", "",
				"Install", "in_progress", "high", testNow.AddDate(0, 0, -3), testNow, testNow))

		tasks, err := h.svcs.Tasks.List(ctx, owner, projectID, store.ListOptions{Filters: map[string]string{"overdue": "true"}})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.True(t, tasks[0].IsOverdue(testNow))
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("bad flag", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))

		_, err := h.svcs.Tasks.List(ctx, owner, projectID, store.ListOptions{Filters: map[string]string{"overdue": "soon"}})
		assertKind(t, err, KindInvalid)
		assert.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("unknown filter", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))

		_, err := h.svcs.Tasks.List(ctx, owner, projectID, store.ListOptions{Filters: map[string]string{"colour": "red"}})
		assertKind(t, err, KindInvalid)
	})
}

func TestCreateTaskDefaults(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	assignee := uuid.New()
	projectID := uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`INSERT INTO tasks`).WillReturnRows(twoCols())
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectQuery(`INSERT INTO notifications`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	task, err := h.svcs.Tasks.Create(context.Background(), owner, projectID, TaskInput{Title: "Survey poles", AssigneeID: &assignee})
	require.NoError(t, err)
	assert.Equal(t, model.TaskTodo, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, []uuid.UUID{assignee}, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}

func TestUpdateTaskMovesFreely(t *testing.T) {
	h := newHarness(t)
	owner := principal(model.RoleMunicipality)
	projectID, taskID := uuid.New(), uuid.New()

	h.mock.ExpectQuery(`FROM projects WHERE id = \$1`).WillReturnRows(projectRow(projectID, owner.ID))
	h.mock.ExpectQuery(`FROM tasks WHERE id = \$1`).WillReturnRows(sqlmock.NewRows(taskCols).AddRow(taskID.String(),
		projectID.String(), nil, "Mount sensors", "", "Install", "done", "high", nil, testNow, testNow))
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`UPDATE tasks`).WillReturnRows(updatedRow())
	h.mock.ExpectQuery(`INSERT INTO audit_logs`).WillReturnRows(createdRow())
	h.mock.ExpectCommit()

	todo := model.TaskTodo
	task, err := h.svcs.Tasks.Update(context.Background(), owner, projectID, taskID, TaskPatch{Status: &todo})
	require.NoError(t, err)
	assert.Equal(t, model.TaskTodo, task.Status)
	assert.Empty(t, h.notifier.recipients())
	assert.NoError(t, h.mock.ExpectationsWereMet())
}
