package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/auth"
)

func (h *handler) fundingRoutes(r chi.Router) {
	r.Route("/funding/opportunities", func(r chi.Router) {
		r.Get("/", h.listOpportunities)
		r.Get("/{opportunityID}", h.getOpportunity)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePermission(auth.FundingManage))
			r.Post("/", h.createOpportunity)
			r.Put("/{opportunityID}", h.updateOpportunity)
			r.Delete("/{opportunityID}", h.deleteOpportunity)
		})
	})
	r.Route("/funding/applications", func(r chi.Router) {
		r.Get("/", h.listApplications)
		r.Post("/", h.createApplication)
		r.Route("/{applicationID}", func(r chi.Router) {
			r.Get("/", h.getApplication)
			r.Patch("/", h.updateApplication)
			r.Post("/submit", h.submitApplication)
			r.Post("/approve", h.decideApplication(true))
			r.Post("/reject", h.decideApplication(false))
		})
	})
}

func (h *handler) listOpportunities(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	os, err := h.svc.Funding.ListOpportunities(r.Context(), principal(r), opts)
	h.replyList(w, r, os, opts, err)
}

func (h *handler) createOpportunity(w http.ResponseWriter, r *http.Request) {
	var in service.OpportunityInput
	if !h.decode(w, r, &in) {
		return
	}
	o, err := h.svc.Funding.CreateOpportunity(r.Context(), principal(r), in)
	h.replyCreated(w, r, o, err)
}

func (h *handler) getOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "opportunityID")
	if !ok {
		return
	}
	o, err := h.svc.Funding.GetOpportunity(r.Context(), principal(r), id)
	h.reply(w, r, o, err)
}

func (h *handler) updateOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "opportunityID")
	if !ok {
		return
	}
	var in service.OpportunityInput
	if !h.decode(w, r, &in) {
		return
	}
	o, err := h.svc.Funding.UpdateOpportunity(r.Context(), principal(r), id, in)
	h.reply(w, r, o, err)
}

func (h *handler) deleteOpportunity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "opportunityID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Funding.DeleteOpportunity(r.Context(), principal(r), id))
}

func (h *handler) listApplications(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	as, err := h.svc.Funding.ListApplications(r.Context(), principal(r), opts)
	h.replyList(w, r, as, opts, err)
}

func (h *handler) createApplication(w http.ResponseWriter, r *http.Request) {
	var in service.ApplicationInput
	if !h.decode(w, r, &in) {
		return
	}
	a, err := h.svc.Funding.CreateApplication(r.Context(), principal(r), in)
	h.replyCreated(w, r, a, err)
}

func (h *handler) getApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	a, err := h.svc.Funding.GetApplication(r.Context(), principal(r), id)
	h.reply(w, r, a, err)
}

func (h *handler) updateApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	var patch service.ApplicationPatch
	if !h.decode(w, r, &patch) {
		return
	}
	a, err := h.svc.Funding.UpdateApplication(r.Context(), principal(r), id, patch)
	h.reply(w, r, a, err)
}

func (h *handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "applicationID")
	if !ok {
		return
	}
	a, err := h.svc.Funding.SubmitApplication(r.Context(), principal(r), id)
	h.reply(w, r, a, err)
}

func (h *handler) decideApplication(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "applicationID")
		if !ok {
			return
		}
		a, err := h.svc.Funding.DecideApplication(r.Context(), principal(r), id, approve)
		h.reply(w, r, a, err)
	}
}
