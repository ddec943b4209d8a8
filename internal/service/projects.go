package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/report"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
)

// ProjectService manages projects and their milestones
type ProjectService struct{ *base }

// ProjectInput is a new project
type ProjectInput struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Status       model.ProjectStatus `json:"status"`
	BudgetTotal  float64             `json:"budget_total"`
	SolutionID   *uuid.UUID          `json:"solution_id"`
	IntegratorID *uuid.UUID          `json:"integrator_id"`
	StartDate    *time.Time          `json:"start_date"`
	EndDate      *time.Time          `json:"end_date"`
}

// ProjectPatch changes a project; nil fields are left alone
type ProjectPatch struct {
	Name        *string              `json:"name"`
	Description *string              `json:"description"`
	Status      *model.ProjectStatus `json:"status"`
	BudgetTotal *float64             `json:"budget_total"`
	SolutionID  *uuid.UUID           `json:"solution_id"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
}

// MilestoneInput is a new milestone
type MilestoneInput struct {
	Name      string    `json:"name"`
	DueDate   time.Time `json:"due_date"`
	Completed bool      `json:"completed"`
}

// MilestonePatch changes a milestone; nil fields are left alone
type MilestonePatch struct {
	Name      *string    `json:"name"`
	DueDate   *time.Time `json:"due_date"`
	Completed *bool      `json:"completed"`
}

// loadProject returns the project when the caller is a member or an admin.
// Projects outside the caller's reach are reported as missing.
func (b *base) loadProject(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.Project, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	pr, err := b.store.GetProject(ctx, id)
	if err != nil {
		return nil, wrap(err, "project")
	}
	if !auth.CanAccessProject(p, pr) {
		return nil, NotFound("project")
	}
	return pr, nil
}

// List returns the projects the caller owns or integrates
func (s *ProjectService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.Project, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, p.ID, auth.IsAdmin(p), opts)
	return projects, wrap(err, "project")
}

// Get returns a project with its task progress
func (s *ProjectService) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*model.ProjectDetail, error) {
	pr, err := s.loadProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	done, total, err := s.store.ProjectProgress(ctx, pr.ID)
	if err != nil {
		return nil, wrap(err, "project")
	}
	return &model.ProjectDetail{
		Project:    *pr,
		TasksTotal: total,
		TasksDone:  done,
		Progress:   model.Progress(done, total),
	}, nil
}

// Create stores a project owned by the caller
func (s *ProjectService) Create(ctx context.Context, p *auth.Principal, in ProjectInput) (*model.Project, error) {
	if err := authorize(p, auth.ProjectsWrite); err != nil {
		return nil, err
	}
	pr := &model.Project{
		OwnerID:     p.ID,
		SolutionID:  in.SolutionID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		BudgetTotal: in.BudgetTotal,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
	}
	if pr.Status == "" {
		pr.Status = model.ProjectPlanning
	}
	if err := pr.Validate(); err != nil {
		return nil, wrap(err, "project")
	}
	if in.IntegratorID != nil {
		if err := s.checkIntegrator(ctx, *in.IntegratorID); err != nil {
			return nil, err
		}
		pr.IntegratorID = in.IntegratorID
	}

	err := s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateProject(ctx, pr); err != nil {
			return err
		}
		if err := t.audit(ctx, "project.created", "project", pr.ID, &pr.ID, detail("name", pr.Name)); err != nil {
			return err
		}
		if pr.IntegratorID != nil {
			return t.notify(ctx, *pr.IntegratorID, "project.assigned",
				"You were assigned to a project", pr.Name, "project", pr.ID)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "project")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return pr, nil
}

// Update applies patch to a project the caller is a member of. Status moves
// follow the project lifecycle.
func (s *ProjectService) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, patch ProjectPatch) (*model.Project, error) {
	pr, err := s.loadProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	from := pr.Status

	setString(&pr.Name, patch.Name)
	setString(&pr.Description, patch.Description)
	if patch.BudgetTotal != nil {
		pr.BudgetTotal = *patch.BudgetTotal
	}
	if patch.SolutionID != nil {
		pr.SolutionID = patch.SolutionID
	}
	if patch.StartDate != nil {
		pr.StartDate = patch.StartDate
	}
	if patch.EndDate != nil {
		pr.EndDate = patch.EndDate
	}
	if patch.Status != nil && *patch.Status != from {
		if !from.CanTransitionTo(*patch.Status) {
			return nil, Conflict("project cannot move from " + string(from) + " to " + string(*patch.Status))
		}
		pr.Status = *patch.Status
	}
	if err := pr.Validate(); err != nil {
		return nil, wrap(err, "project")
	}

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateProject(ctx, pr); err != nil {
			return err
		}
		if pr.Status != from {
			return t.audit(ctx, "project.status_changed", "project", pr.ID, &pr.ID, detail("from", from, "to", pr.Status))
		}
		return t.audit(ctx, "project.updated", "project", pr.ID, &pr.ID, nil)
	})
	if err != nil {
		return nil, wrap(err, "project")
	}
	return pr, nil
}

// AssignIntegrator sets or clears the project's integrator. Only the owner
// or an admin may do this.
func (s *ProjectService) AssignIntegrator(ctx context.Context, p *auth.Principal, id uuid.UUID, integratorID *uuid.UUID) (*model.Project, error) {
	pr, err := s.loadProject(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !auth.CanManageProject(p, pr) {
		return nil, Forbidden("only the project owner may assign an integrator")
	}
	if integratorID != nil {
		if err := s.checkIntegrator(ctx, *integratorID); err != nil {
			return nil, err
		}
	}
	previous := pr.IntegratorID
	pr.IntegratorID = integratorID

	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateProject(ctx, pr); err != nil {
			return err
		}
		if err := t.audit(ctx, "project.integrator_assigned", "project", pr.ID, &pr.ID,
			detail("from", previous, "to", integratorID)); err != nil {
			return err
		}
		if integratorID != nil {
			return t.notify(ctx, *integratorID, "project.assigned",
				"You were assigned to a project", pr.Name, "project", pr.ID)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "project")
	}
	return pr, nil
}

// Delete removes a project and its child rows
func (s *ProjectService) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	pr, err := s.loadProject(ctx, p, id)
	if err != nil {
		return err
	}
	if !auth.CanManageProject(p, pr) {
		return Forbidden("only the project owner may delete it")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteProject(ctx, pr.ID); err != nil {
			return err
		}
		return t.audit(ctx, "project.deleted", "project", pr.ID, nil, detail("name", pr.Name))
	})
	if err != nil {
		return wrap(err, "project")
	}
	s.invalidate(ctx, cache.BenchmarkPrefix)
	return nil
}

// checkIntegrator ensures the profile can deliver projects
func (s *ProjectService) checkIntegrator(ctx context.Context, id uuid.UUID) error {
	profile, err := s.store.GetProfile(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return InvalidField("integrator_id", "does not exist")
		}
		return wrap(err, "profile")
	}
	if profile.Role != model.RoleIntegrator && profile.Role != model.RoleDeveloper {
		return InvalidField("integrator_id", "must be an integrator or developer")
	}
	return nil
}

// Milestones returns a project's milestones by due date
func (s *ProjectService) Milestones(ctx context.Context, p *auth.Principal, projectID uuid.UUID) ([]model.Milestone, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.store.ListMilestones(ctx, pr.ID)
	return milestones, wrap(err, "milestone")
}

// CreateMilestone adds a milestone to a project
func (s *ProjectService) CreateMilestone(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in MilestoneInput) (*model.Milestone, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	m := &model.Milestone{ProjectID: pr.ID, Name: in.Name, DueDate: in.DueDate, Completed: in.Completed}
	if err := m.Validate(); err != nil {
		return nil, wrap(err, "milestone")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateMilestone(ctx, m); err != nil {
			return err
		}
		return t.audit(ctx, "milestone.created", "milestone", m.ID, &pr.ID, detail("name", m.Name))
	})
	if err != nil {
		return nil, wrap(err, "milestone")
	}
	return m, nil
}

// UpdateMilestone applies patch to a milestone of the project
func (s *ProjectService) UpdateMilestone(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID, patch MilestonePatch) (*model.Milestone, error) {
	pr, m, err := s.milestone(ctx, p, projectID, id)
	if err != nil {
		return nil, err
	}
	setString(&m.Name, patch.Name)
	if patch.DueDate != nil {
		m.DueDate = *patch.DueDate
	}
	if patch.Completed != nil {
		m.Completed = *patch.Completed
	}
	if err := m.Validate(); err != nil {
		return nil, wrap(err, "milestone")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.UpdateMilestone(ctx, m); err != nil {
			return err
		}
		return t.audit(ctx, "milestone.updated", "milestone", m.ID, &pr.ID, detail("completed", m.Completed))
	})
	if err != nil {
		return nil, wrap(err, "milestone")
	}
	return m, nil
}

// DeleteMilestone removes a milestone of the project
func (s *ProjectService) DeleteMilestone(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) error {
	pr, m, err := s.milestone(ctx, p, projectID, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteMilestone(ctx, m.ID); err != nil {
			return err
		}
		return t.audit(ctx, "milestone.deleted", "milestone", m.ID, &pr.ID, detail("name", m.Name))
	})
	return wrap(err, "milestone")
}

func (s *ProjectService) milestone(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Project, *model.Milestone, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.store.GetMilestone(ctx, id)
	if err != nil {
		return nil, nil, wrap(err, "milestone")
	}
	if m.ProjectID != pr.ID {
		return nil, nil, NotFound("milestone")
	}
	return pr, m, nil
}

// Report gathers everything the project status report prints
func (s *ProjectService) Report(ctx context.Context, p *auth.Principal, id uuid.UUID) (*report.ProjectData, error) {
	pd, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ProjectTasks(ctx, id)
	if err != nil {
		return nil, wrap(err, "task")
	}
	items, err := s.store.ListBudgetItems(ctx, id)
	if err != nil {
		return nil, wrap(err, "budget item")
	}
	counts, err := s.store.ComplianceCounts(ctx, id)
	if err != nil {
		return nil, wrap(err, "compliance requirement")
	}
	milestones, err := s.store.ListMilestones(ctx, id)
	if err != nil {
		return nil, wrap(err, "milestone")
	}

	return &report.ProjectData{
		Project:     *pd,
		Budget:      model.SummarizeBudget(id, pd.BudgetTotal, items),
		Tasks:       tasks,
		Compliance:  model.SummarizeCompliance(counts),
		Milestones:  milestones,
		GeneratedAt: s.now().UTC(),
	}, nil
}
