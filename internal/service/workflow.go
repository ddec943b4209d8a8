package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/domain/workflow"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// WorkflowService manages workflow templates and lays them onto projects
type WorkflowService struct{ *base }

// TemplateInput is a new or replaced template
type TemplateInput struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	Phases      string         `json:"phases"`
	Milestones  string         `json:"milestones"`
	IsPublic    bool           `json:"is_public"`
}

// PreviewInput schedules either a stored template or inline text
type PreviewInput struct {
	TemplateID *uuid.UUID `json:"template_id"`
	Phases     string     `json:"phases"`
	Milestones string     `json:"milestones"`
	StartDate  time.Time  `json:"start_date"`
}

// ApplyInput lays a template onto a project from StartDate
type ApplyInput struct {
	TemplateID uuid.UUID `json:"template_id"`
	StartDate  time.Time `json:"start_date"`
}

// ApplyResult counts what Apply created
type ApplyResult struct {
	TasksCreated      int       `json:"tasks_created"`
	MilestonesCreated int       `json:"milestones_created"`
	EndDate           time.Time `json:"end_date"`
}

// List returns public templates and the caller's own
func (s *WorkflowService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.WorkflowTemplate, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	ws, err := s.store.ListWorkflowTemplates(ctx, p.ID, auth.IsAdmin(p), opts)
	return ws, wrap(err, "workflow template")
}

// Get returns a template visible to the caller
func (s *WorkflowService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.WorkflowTemplate, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	w, err := s.store.GetWorkflowTemplate(ctx, id)
	if err != nil {
		return nil, wrap(err, "workflow template")
	}
	if !auth.CanViewTemplate(p, w) {
		return nil, NotFound("workflow template")
	}
	return w, nil
}

// Create stores a template after checking that its plan parses
func (s *WorkflowService) Create(ctx context.Context, p *auth.Principal, in TemplateInput) (*model.WorkflowTemplate, error) {
	if err := authorize(p, auth.TemplatesWrite); err != nil {
		return nil, err
	}
	w := &model.WorkflowTemplate{CreatedBy: p.ID}
	applyTemplate(w, in)
	if err := checkTemplate(w); err != nil {
		return nil, err
	}
	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateWorkflowTemplate(ctx, w); err != nil {
			return err
		}
		return t.audit(ctx, "workflow_template.created", "workflow_template", w.ID, nil, detail("name", w.Name))
	})
	if err != nil {
		return nil, wrap(err, "workflow template")
	}
	return w, nil
}

// Update replaces a template's fields
func (s *WorkflowService) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, in TemplateInput) (*model.WorkflowTemplate, error) {
	w, err := s.editable(ctx, p, id)
	if err != nil {
		return nil, err
	}
	applyTemplate(w, in)
	if err := checkTemplate(w); err != nil {
		return nil, err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateWorkflowTemplate(ctx, w); err != nil {
			return err
		}
		return t.audit(ctx, "workflow_template.updated", "workflow_template", w.ID, nil, detail("name", w.Name))
	})
	if err != nil {
		return nil, wrap(err, "workflow template")
	}
	return w, nil
}

// Delete removes a template
func (s *WorkflowService) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	w, err := s.editable(ctx, p, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteWorkflowTemplate(ctx, w.ID); err != nil {
			return err
		}
		return t.audit(ctx, "workflow_template.deleted", "workflow_template", w.ID, nil, detail("name", w.Name))
	})
	return wrap(err, "workflow template")
}

// Import stores templates read from a file on behalf of creator. Every
// template is checked before any is written.
func (s *WorkflowService) Import(ctx context.Context, creator uuid.UUID, templates []model.WorkflowTemplate) (int, error) {
	for i := range templates {
		templates[i].ID = uuid.Nil
		templates[i].CreatedBy = creator
		if err := checkTemplate(&templates[i]); err != nil {
			var se *Error
			if errors.As(err, &se) {
				se.Message = templates[i].Name + ": " + se.Message
			}
			return 0, err
		}
	}
	err := s.inTx(ctx, creator, func(t *txn) error {
		for i := range templates {
			w := &templates[i]
			if err := t.st.CreateWorkflowTemplate(ctx, w); err != nil {
				return err
			}
			if err := t.audit(ctx, "workflow_template.imported", "workflow_template", w.ID, nil, detail("name", w.Name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, wrap(err, "workflow template")
	}
	return len(templates), nil
}

// Preview schedules a template without writing anything
func (s *WorkflowService) Preview(ctx context.Context, p *auth.Principal, in PreviewInput) (*workflow.Schedule, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	phases, milestones := in.Phases, in.Milestones
	if in.TemplateID != nil {
		w, err := s.Get(ctx, p, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		phases, milestones = w.Phases, w.Milestones
	}
	plan, err := parsePlan(phases, milestones)
	if err != nil {
		return nil, err
	}
	start := in.StartDate
	if start.IsZero() {
		start = s.now()
	}
	schedule := plan.Schedule(start)
	return &schedule, nil
}

// Apply creates a project's tasks and milestones from a template in one
// transaction. Nothing is written when any insert fails.
func (s *WorkflowService) Apply(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in ApplyInput) (*ApplyResult, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	if in.TemplateID == uuid.Nil {
		return nil, InvalidField("template_id", "is required")
	}
	w, err := s.Get(ctx, p, in.TemplateID)
	if err != nil {
		return nil, err
	}
	plan, err := parsePlan(w.Phases, w.Milestones)
	if err != nil {
		return nil, err
	}
	start := in.StartDate
	if start.IsZero() {
		start = s.now()
	}
	schedule := plan.Schedule(start)

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		for _, st := range schedule.Tasks {
			due := st.DueDate
			task := &model.Task{
				ProjectID: pr.ID,
				Title:     st.Title,
				Phase:     st.Phase,
				Status:    model.TaskTodo,
				Priority:  model.PriorityMedium,
				DueDate:   &due,
			}
			if err := t.st.CreateTask(ctx, task); err != nil {
				return err
			}
		}
		for _, sm := range schedule.Milestones {
			m := &model.Milestone{ProjectID: pr.ID, Name: sm.Name, DueDate: sm.DueDate}
			if err := t.st.CreateMilestone(ctx, m); err != nil {
				return err
			}
		}
		return t.audit(ctx, "workflow.applied", "project", pr.ID, &pr.ID, detail(
			"template_id", w.ID,
			"tasks_created", len(schedule.Tasks),
			"milestones_created", len(schedule.Milestones),
			"start_date", schedule.StartDate.Format("2006-01-02"),
		))
	})
	if err != nil {
		return nil, wrap(err, "project")
	}
	return &ApplyResult{
		TasksCreated:      len(schedule.Tasks),
		MilestonesCreated: len(schedule.Milestones),
		EndDate:           schedule.EndDate,
	}, nil
}

func (s *WorkflowService) editable(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.WorkflowTemplate, error) {
	if err := authorize(p, auth.TemplatesWrite); err != nil {
		return nil, err
	}
	w, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditTemplate(p, w) {
		return nil, Forbidden("only the creator may change this template")
	}
	return w, nil
}

func applyTemplate(w *model.WorkflowTemplate, in TemplateInput) {
	w.Name = in.Name
	w.Description = in.Description
	w.Category = in.Category
	w.Phases = in.Phases
	w.Milestones = in.Milestones
	w.IsPublic = in.IsPublic
}

func checkTemplate(w *model.WorkflowTemplate) error {
	if err := w.Validate(); err != nil {
		return wrap(err, "workflow template")
	}
	_, err := parsePlan(w.Phases, w.Milestones)
	return err
}

// parsePlan maps parser failures onto the field they came from
func parsePlan(phases, milestones string) (*workflow.Plan, error) {
	plan, err := workflow.Parse(phases, milestones)
	if err == nil {
		return plan, nil
	}
	var pe *workflow.ParseError
	switch {
	case errors.As(err, &pe):
		return nil, InvalidField(pe.Section, pe.Error())
	case errors.Is(err, workflow.ErrNoPhases):
		return nil, InvalidField("phases", err.Error())
	default:
		return nil, Invalid("%s", err.Error())
	}
}
