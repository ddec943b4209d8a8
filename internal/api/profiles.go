package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/response"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	sess, err := h.svc.Auth.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, sess)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !h.decode(w, r, &in) {
		return
	}
	sess, err := h.svc.Auth.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, sess)
}

func (h *handler) profileRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.Patch("/me", h.updateMe)
	r.Get("/profiles", h.listProfiles)
	r.Get("/profiles/{profileID}", h.getProfile)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profiles.Me(r.Context(), principal(r))
	h.reply(w, r, p, err)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var patch service.ProfilePatch
	if !h.decode(w, r, &patch) {
		return
	}
	p, err := h.svc.Profiles.UpdateMe(r.Context(), principal(r), patch)
	h.reply(w, r, p, err)
}

func (h *handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ps, err := h.svc.Profiles.List(r.Context(), principal(r), opts)
	h.replyList(w, r, ps, opts, err)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "profileID")
	if !ok {
		return
	}
	p, err := h.svc.Profiles.Get(r.Context(), principal(r), id)
	h.reply(w, r, p, err)
}

func (h *handler) solutionRoutes(r chi.Router) {
	r.Route("/solutions", func(r chi.Router) {
		r.Get("/", h.listSolutions)
		r.Post("/", h.createSolution)
		r.Get("/categories", h.solutionCategories)
		r.Route("/{solutionID}", func(r chi.Router) {
			r.Get("/", h.getSolution)
			r.Patch("/", h.updateSolution)
			r.Delete("/", h.deleteSolution)
			r.Post("/publish", h.solutionStatus(model.SolutionPublished))
			r.Post("/archive", h.solutionStatus(model.SolutionArchived))
		})
	})
}

func (h *handler) listSolutions(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ss, err := h.svc.Marketplace.List(r.Context(), principal(r), opts)
	h.replyList(w, r, ss, opts, err)
}

func (h *handler) createSolution(w http.ResponseWriter, r *http.Request) {
	var in service.SolutionInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.svc.Marketplace.Create(r.Context(), principal(r), in)
	h.replyCreated(w, r, s, err)
}

func (h *handler) solutionCategories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Marketplace.CategoryCounts(r.Context())
	h.replyTagged(w, r, counts, err)
}

func (h *handler) getSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solutionID")
	if !ok {
		return
	}
	s, err := h.svc.Marketplace.Get(r.Context(), principal(r), id)
	h.replyTagged(w, r, s, err)
}

func (h *handler) updateSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solutionID")
	if !ok {
		return
	}
	var patch service.SolutionPatch
	if !h.decode(w, r, &patch) {
		return
	}
	s, err := h.svc.Marketplace.Update(r.Context(), principal(r), id, patch)
	h.reply(w, r, s, err)
}

func (h *handler) deleteSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "solutionID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Marketplace.Delete(r.Context(), principal(r), id))
}

func (h *handler) solutionStatus(status model.SolutionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "solutionID")
		if !ok {
			return
		}
		s, err := h.svc.Marketplace.SetStatus(r.Context(), principal(r), id, status)
		h.reply(w, r, s, err)
	}
}

func (h *handler) connectionRoutes(r chi.Router) {
	r.Route("/connections", func(r chi.Router) {
		r.Get("/", h.listConnections)
		r.Post("/", h.requestConnection)
		r.Route("/{connectionID}", func(r chi.Router) {
			r.Get("/", h.getConnection)
			r.Post("/accept", h.respondConnection(true))
			r.Post("/reject", h.respondConnection(false))
			r.Post("/withdraw", h.withdrawConnection)
		})
	})
}

func (h *handler) listConnections(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	cs, err := h.svc.Connections.List(r.Context(), principal(r), r.URL.Query().Get("direction"), opts)
	h.replyList(w, r, cs, opts, err)
}

func (h *handler) requestConnection(w http.ResponseWriter, r *http.Request) {
	var in service.ConnectionInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.svc.Connections.Request(r.Context(), principal(r), in)
	h.replyCreated(w, r, c, err)
}

func (h *handler) getConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "connectionID")
	if !ok {
		return
	}
	c, err := h.svc.Connections.Get(r.Context(), principal(r), id)
	h.reply(w, r, c, err)
}

func (h *handler) respondConnection(accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "connectionID")
		if !ok {
			return
		}
		c, err := h.svc.Connections.Respond(r.Context(), principal(r), id, accept)
		h.reply(w, r, c, err)
	}
}

func (h *handler) withdrawConnection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "connectionID")
	if !ok {
		return
	}
	c, err := h.svc.Connections.Withdraw(r.Context(), principal(r), id)
	h.reply(w, r, c, err)
}
