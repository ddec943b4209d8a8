package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// TaskService manages the task board of a project
type TaskService struct{ *base }

// TaskInput is a new task
type TaskInput struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Phase       string           `json:"phase"`
	Status      model.TaskStatus `json:"status"`
	Priority    model.Priority   `json:"priority"`
	AssigneeID  *uuid.UUID       `json:"assignee_id"`
	DueDate     *time.Time       `json:"due_date"`
}

// TaskPatch changes a task; nil fields are left alone. ClearAssignee and
// ClearDueDate unset the corresponding column.
type TaskPatch struct {
	Title         *string           `json:"title"`
	Description   *string           `json:"description"`
	Phase         *string           `json:"phase"`
	Status        *model.TaskStatus `json:"status"`
	Priority      *model.Priority   `json:"priority"`
	AssigneeID    *uuid.UUID        `json:"assignee_id"`
	ClearAssignee bool              `json:"clear_assignee"`
	DueDate       *time.Time        `json:"due_date"`
	ClearDueDate  bool              `json:"clear_due_date"`
}

// List returns a project's tasks matching opts
func (s *TaskService) List(ctx context.Context, p *auth.Principal, projectID uuid.UUID, opts store.ListOptions) ([]model.Task, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, pr.ID, opts)
	return tasks, wrap(err, "task")
}

// Get returns one task of the project
func (s *TaskService) Get(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Task, error) {
	_, t, err := s.task(ctx, p, projectID, id)
	return t, err
}

// Create adds a task to the project
func (s *TaskService) Create(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in TaskInput) (*model.Task, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	task := &model.Task{
		ProjectID:   pr.ID,
		AssigneeID:  in.AssigneeID,
		Title:       in.Title,
		Description: in.Description,
		Phase:       in.Phase,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
	if task.Status == "" {
		task.Status = model.TaskTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if err := task.Validate(); err != nil {
		return nil, wrap(err, "task")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateTask(ctx, task); err != nil {
			return err
		}
		if err := t.audit(ctx, "task.created", "task", task.ID, &pr.ID, detail("title", task.Title)); err != nil {
			return err
		}
		return notifyAssignee(ctx, t, task)
	})
	if err != nil {
		return nil, wrap(err, "task")
	}
	return task, nil
}

// Update applies patch to a task. Status may move freely between the board
// columns.
func (s *TaskService) Update(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID, patch TaskPatch) (*model.Task, error) {
	pr, task, err := s.task(ctx, p, projectID, id)
	if err != nil {
		return nil, err
	}
	from := task.Status
	previousAssignee := task.AssigneeID

	setString(&task.Title, patch.Title)
	setString(&task.Description, patch.Description)
	setString(&task.Phase, patch.Phase)
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	switch {
	case patch.ClearAssignee:
		task.AssigneeID = nil
	case patch.AssigneeID != nil:
		task.AssigneeID = patch.AssigneeID
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
	case patch.DueDate != nil:
		task.DueDate = patch.DueDate
	}
	if err := task.Validate(); err != nil {
		return nil, wrap(err, "task")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateTask(ctx, task); err != nil {
			return err
		}
		if err := t.audit(ctx, "task.updated", "task", task.ID, &pr.ID, detail("from", from, "to", task.Status)); err != nil {
			return err
		}
		if task.AssigneeID != nil && (previousAssignee == nil || *previousAssignee != *task.AssigneeID) {
			return notifyAssignee(ctx, t, task)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "task")
	}
	return task, nil
}

// Delete removes a task from the project
func (s *TaskService) Delete(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) error {
	pr, task, err := s.task(ctx, p, projectID, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteTask(ctx, task.ID); err != nil {
			return err
		}
		return t.audit(ctx, "task.deleted", "task", task.ID, &pr.ID, detail("title", task.Title))
	})
	return wrap(err, "task")
}

func (s *TaskService) task(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Project, *model.Task, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, nil, err
	}
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, wrap(err, "task")
	}
	if task.ProjectID != pr.ID {
		return nil, nil, NotFound("task")
	}
	return pr, task, nil
}

func notifyAssignee(ctx context.Context, t *txn, task *model.Task) error {
	if task.AssigneeID == nil {
		return nil
	}
	return t.notify(ctx, *task.AssigneeID, "task.assigned", "A task was assigned to you", task.Title, "task", task.ID)
}
