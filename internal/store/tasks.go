package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const taskColumns = `id, project_id, assignee_id, title, description, phase, status, priority, due_date, created_at, updated_at`

const priorityRank = `CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 WHEN 'high' THEN 3 WHEN 'critical' THEN 4 END`

var taskList = listSpec{
	filters: map[string]filterFunc{
		"status":      eqString("status"),
		"priority":    eqString("priority"),
		"assignee_id": eqUUID("assignee_id"),
		"phase":       eqString("phase"),
		"overdue":     overdueFilter,
	},
	sorts: map[string]string{
		"due_date":   "due_date",
		"priority":   priorityRank,
		"created_at": "created_at",
		"title":      "title",
	},
	search:      []string{"title", "description"},
	defaultSort: "due_date ASC NULLS LAST, created_at ASC, id ASC",
}

func overdueFilter(q *listQuery, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("must be true or false")
	}
	if b {
		q.where("(due_date < CURRENT_DATE AND status <> 'done')")
	} else {
		q.where("(due_date IS NULL OR due_date >= CURRENT_DATE OR status = 'done')")
	}
	return nil
}

func scanTask(row scanner) (*model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.ProjectID, &t.AssigneeID, &t.Title, &t.Description, &t.Phase,
		&t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO tasks (id, project_id, assignee_id, title, description, phase, status, priority, due_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING created_at, updated_at`,
		t.ID, t.ProjectID, t.AssigneeID, t.Title, t.Description, t.Phase, t.Status, t.Priority, t.DueDate,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", ConvertDBError(err))
	}
	return nil
}

// GetTask loads a task by id
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	t, err := scanTask(s.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return t, nil
}

// UpdateTask writes every mutable task column
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE tasks
SET assignee_id = $2, title = $3, description = $4, phase = $5, status = $6, priority = $7, due_date = $8, updated_at = NOW()
WHERE id = $1
RETURNING updated_at`,
		t.ID, t.AssigneeID, t.Title, t.Description, t.Phase, t.Status, t.Priority, t.DueDate,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update task: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteTask removes a task
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id))
}

// ListTasks returns a project's tasks matching opts
func (s *Store) ListTasks(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]model.Task, error) {
	var lq listQuery
	lq.where("project_id = ?", projectID)
	query, args, err := lq.build(`SELECT `+taskColumns+` FROM tasks`, taskList, opts)
	if err != nil {
		return nil, err
	}
	return s.queryTasks(ctx, query, args...)
}

// ProjectTasks returns every task of a project ordered by due date
func (s *Store) ProjectTasks(ctx context.Context, projectID uuid.UUID) ([]model.Task, error) {
	return s.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY due_date ASC NULLS LAST, created_at ASC`, projectID)
}

// CountOpenTasksAssigned counts unfinished tasks assigned to a profile
func (s *Store) CountOpenTasksAssigned(ctx context.Context, profileID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE assignee_id = $1 AND status <> 'done'`, profileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", ConvertDBError(err))
	}
	return n, nil
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...interface{}) ([]model.Task, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", ConvertDBError(err))
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}
