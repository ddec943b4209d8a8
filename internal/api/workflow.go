package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citymind/urbanlink/internal/service"
)

func (h *handler) workflowRoutes(r chi.Router) {
	r.Route("/workflow-templates", func(r chi.Router) {
		r.Get("/", h.listTemplates)
		r.Post("/", h.createTemplate)
		r.Post("/preview", h.previewTemplate)
		r.Get("/{templateID}", h.getTemplate)
		r.Put("/{templateID}", h.updateTemplate)
		r.Delete("/{templateID}", h.deleteTemplate)
	})
}

func (h *handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ts, err := h.svc.Workflows.List(r.Context(), principal(r), opts)
	h.replyList(w, r, ts, opts, err)
}

func (h *handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.TemplateInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.svc.Workflows.Create(r.Context(), principal(r), in)
	h.replyCreated(w, r, t, err)
}

func (h *handler) previewTemplate(w http.ResponseWriter, r *http.Request) {
	var in service.PreviewInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.svc.Workflows.Preview(r.Context(), principal(r), in)
	h.reply(w, r, s, err)
}

func (h *handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	t, err := h.svc.Workflows.Get(r.Context(), principal(r), id)
	h.reply(w, r, t, err)
}

func (h *handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	var in service.TemplateInput
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.svc.Workflows.Update(r.Context(), principal(r), id, in)
	h.reply(w, r, t, err)
}

func (h *handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "templateID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Workflows.Delete(r.Context(), principal(r), id))
}
