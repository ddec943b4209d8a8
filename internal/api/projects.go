package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/domain/roi"
	"github.com/citymind/urbanlink/internal/report"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/response"
)

func (h *handler) projectRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", h.getProject)
			r.Patch("/", h.updateProject)
			r.Delete("/", h.deleteProject)
			r.Put("/integrator", h.assignIntegrator)
			r.Get("/report", h.projectReport)
			r.Post("/roi", h.projectROI)
			r.Post("/apply-template", h.applyTemplate)

			r.Get("/tasks", h.listTasks)
			r.Post("/tasks", h.createTask)
			r.Get("/tasks/{taskID}", h.getTask)
			r.Patch("/tasks/{taskID}", h.updateTask)
			r.Delete("/tasks/{taskID}", h.deleteTask)

			r.Get("/milestones", h.listMilestones)
			r.Post("/milestones", h.createMilestone)
			r.Patch("/milestones/{milestoneID}", h.updateMilestone)
			r.Delete("/milestones/{milestoneID}", h.deleteMilestone)

			r.Get("/budget", h.listBudget)
			r.Get("/budget/summary", h.budgetSummary)
			r.Post("/budget", h.createBudgetItem)
			r.Patch("/budget/{itemID}", h.updateBudgetItem)
			r.Delete("/budget/{itemID}", h.deleteBudgetItem)

			r.Get("/documents", h.listDocuments)
			r.Post("/documents", h.createDocument)
			r.Get("/documents/{documentID}", h.getDocument)
			r.Put("/documents/{documentID}", h.replaceDocument)
			r.Delete("/documents/{documentID}", h.deleteDocument)

			r.Get("/compliance", h.listRequirements)
			r.Get("/compliance/summary", h.complianceSummary)
			r.Post("/compliance", h.createRequirement)
			r.Patch("/compliance/{requirementID}", h.updateRequirement)
			r.Delete("/compliance/{requirementID}", h.deleteRequirement)
		})
	})
}

// childIDs parses the project id and one child id from the path
func childIDs(w http.ResponseWriter, r *http.Request, child string) (uuid.UUID, uuid.UUID, bool) {
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := pathID(w, r, child)
	return projectID, id, ok
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ps, err := h.svc.Projects.List(r.Context(), principal(r), opts)
	h.replyList(w, r, ps, opts, err)
}

func (h *handler) createProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.svc.Projects.Create(r.Context(), principal(r), in)
	h.replyCreated(w, r, p, err)
}

func (h *handler) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	p, err := h.svc.Projects.Get(r.Context(), principal(r), id)
	h.reply(w, r, p, err)
}

func (h *handler) updateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var patch service.ProjectPatch
	if !h.decode(w, r, &patch) {
		return
	}
	p, err := h.svc.Projects.Update(r.Context(), principal(r), id, patch)
	h.reply(w, r, p, err)
}

func (h *handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Projects.Delete(r.Context(), principal(r), id))
}

type integratorRequest struct {
	IntegratorID *uuid.UUID `json:"integrator_id"`
}

func (h *handler) assignIntegrator(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in integratorRequest
	if !h.decode(w, r, &in) {
		return
	}
	p, err := h.svc.Projects.AssignIntegrator(r.Context(), principal(r), id, in.IntegratorID)
	h.reply(w, r, p, err)
}

func (h *handler) projectReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	data, err := h.svc.Projects.Report(r.Context(), principal(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.ProjectStatus(&buf, data); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = response.TextAttachment(w, report.ProjectFilename(data), &buf)
}

func (h *handler) projectROI(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in roi.Input
	if !h.decodeOptional(w, r, &in) {
		return
	}
	res, err := h.svc.ROI.ForProject(r.Context(), principal(r), id, in)
	h.replyROI(w, r, res, err)
}

// replyROI renders JSON, or the plain-text report when format=text
func (h *handler) replyROI(w http.ResponseWriter, r *http.Request, res *roi.Result, err error) {
	if err != nil || r.URL.Query().Get("format") != "text" {
		h.reply(w, r, res, err)
		return
	}
	var buf bytes.Buffer
	if err := report.ROI(&buf, res); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = response.TextAttachment(w, report.ROIFilename(h.now()), &buf)
}

func (h *handler) applyTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.ApplyInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.Workflows.Apply(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, res, err)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ts, err := h.svc.Tasks.List(r.Context(), principal(r), id, opts)
	h.replyList(w, r, ts, opts, err)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.TaskInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.svc.Tasks.Create(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, t, err)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "taskID")
	if !ok {
		return
	}
	t, err := h.svc.Tasks.Get(r.Context(), principal(r), projectID, id)
	h.reply(w, r, t, err)
}

func (h *handler) updateTask(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "taskID")
	if !ok {
		return
	}
	var patch service.TaskPatch
	if !h.decode(w, r, &patch) {
		return
	}
	t, err := h.svc.Tasks.Update(r.Context(), principal(r), projectID, id, patch)
	h.reply(w, r, t, err)
}

func (h *handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "taskID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Tasks.Delete(r.Context(), principal(r), projectID, id))
}

func (h *handler) listMilestones(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	ms, err := h.svc.Projects.Milestones(r.Context(), principal(r), id)
	h.reply(w, r, ms, err)
}

func (h *handler) createMilestone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.MilestoneInput
	if !h.decode(w, r, &in) {
		return
	}
	m, err := h.svc.Projects.CreateMilestone(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, m, err)
}

func (h *handler) updateMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "milestoneID")
	if !ok {
		return
	}
	var patch service.MilestonePatch
	if !h.decode(w, r, &patch) {
		return
	}
	m, err := h.svc.Projects.UpdateMilestone(r.Context(), principal(r), projectID, id, patch)
	h.reply(w, r, m, err)
}

func (h *handler) deleteMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "milestoneID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Projects.DeleteMilestone(r.Context(), principal(r), projectID, id))
}

func (h *handler) listBudget(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	items, err := h.svc.Budgets.List(r.Context(), principal(r), id)
	h.reply(w, r, items, err)
}

func (h *handler) budgetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	s, err := h.svc.Budgets.Summary(r.Context(), principal(r), id)
	h.reply(w, r, s, err)
}

func (h *handler) createBudgetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.BudgetItemInput
	if !h.decode(w, r, &in) {
		return
	}
	item, err := h.svc.Budgets.Create(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, item, err)
}

func (h *handler) updateBudgetItem(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "itemID")
	if !ok {
		return
	}
	var patch service.BudgetItemPatch
	if !h.decode(w, r, &patch) {
		return
	}
	item, err := h.svc.Budgets.Update(r.Context(), principal(r), projectID, id, patch)
	h.reply(w, r, item, err)
}

func (h *handler) deleteBudgetItem(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "itemID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Budgets.Delete(r.Context(), principal(r), projectID, id))
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	docs, err := h.svc.Documents.List(r.Context(), principal(r), id, opts)
	h.replyList(w, r, docs, opts, err)
}

func (h *handler) createDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.DocumentInput
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.svc.Documents.Create(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, d, err)
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "documentID")
	if !ok {
		return
	}
	d, err := h.svc.Documents.Get(r.Context(), principal(r), projectID, id)
	h.reply(w, r, d, err)
}

func (h *handler) replaceDocument(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "documentID")
	if !ok {
		return
	}
	var in service.ReplaceInput
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.svc.Documents.Replace(r.Context(), principal(r), projectID, id, in)
	h.reply(w, r, d, err)
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "documentID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Documents.Delete(r.Context(), principal(r), projectID, id))
}

func (h *handler) listRequirements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	reqs, err := h.svc.Compliance.List(r.Context(), principal(r), id, opts)
	h.replyList(w, r, reqs, opts, err)
}

func (h *handler) complianceSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	s, err := h.svc.Compliance.Summary(r.Context(), principal(r), id)
	h.reply(w, r, s, err)
}

func (h *handler) createRequirement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	var in service.RequirementInput
	if !h.decode(w, r, &in) {
		return
	}
	req, err := h.svc.Compliance.Create(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, req, err)
}

func (h *handler) updateRequirement(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "requirementID")
	if !ok {
		return
	}
	var patch service.RequirementPatch
	if !h.decode(w, r, &patch) {
		return
	}
	req, err := h.svc.Compliance.Update(r.Context(), principal(r), projectID, id, patch)
	h.reply(w, r, req, err)
}

func (h *handler) deleteRequirement(w http.ResponseWriter, r *http.Request) {
	projectID, id, ok := childIDs(w, r, "requirementID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Compliance.Delete(r.Context(), principal(r), projectID, id))
}
