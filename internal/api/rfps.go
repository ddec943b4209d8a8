package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citymind/urbanlink/internal/service"
)

func (h *handler) rfpRoutes(r chi.Router) {
	r.Route("/rfps", func(r chi.Router) {
		r.Get("/", h.listRFPs)
		r.Post("/", h.createRFP)
		r.Route("/{rfpID}", func(r chi.Router) {
			r.Get("/", h.getRFP)
			r.Patch("/", h.updateRFP)
			r.Delete("/", h.deleteRFP)
			r.Post("/publish", h.publishRFP)
			r.Post("/close", h.closeRFP)
			r.Post("/award", h.awardRFP)
			r.Get("/bids", h.listBids)
			r.Post("/bids", h.submitBid)
		})
	})
	r.Get("/bids/{bidID}", h.getBid)
	r.Post("/bids/{bidID}/withdraw", h.withdrawBid)
}

func (h *handler) listRFPs(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	rs, err := h.svc.RFPs.List(r.Context(), principal(r), opts)
	h.replyList(w, r, rs, opts, err)
}

func (h *handler) createRFP(w http.ResponseWriter, r *http.Request) {
	var in service.RFPInput
	if !h.decode(w, r, &in) {
		return
	}
	rfp, err := h.svc.RFPs.Create(r.Context(), principal(r), in)
	h.replyCreated(w, r, rfp, err)
}

func (h *handler) getRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	rfp, err := h.svc.RFPs.Get(r.Context(), principal(r), id)
	h.reply(w, r, rfp, err)
}

func (h *handler) updateRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	var patch service.RFPPatch
	if !h.decode(w, r, &patch) {
		return
	}
	rfp, err := h.svc.RFPs.Update(r.Context(), principal(r), id, patch)
	h.reply(w, r, rfp, err)
}

func (h *handler) deleteRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.RFPs.Delete(r.Context(), principal(r), id))
}

func (h *handler) publishRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	rfp, err := h.svc.RFPs.Publish(r.Context(), principal(r), id)
	h.reply(w, r, rfp, err)
}

func (h *handler) closeRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	rfp, err := h.svc.RFPs.Close(r.Context(), principal(r), id)
	h.reply(w, r, rfp, err)
}

func (h *handler) awardRFP(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	var in service.AwardInput
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.RFPs.Award(r.Context(), principal(r), id, in)
	h.reply(w, r, res, err)
}

func (h *handler) listBids(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	bids, err := h.svc.RFPs.Bids(r.Context(), principal(r), id)
	h.reply(w, r, bids, err)
}

func (h *handler) submitBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "rfpID")
	if !ok {
		return
	}
	var in service.BidInput
	if !h.decode(w, r, &in) {
		return
	}
	bid, err := h.svc.RFPs.SubmitBid(r.Context(), principal(r), id, in)
	h.replyCreated(w, r, bid, err)
}

func (h *handler) getBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bidID")
	if !ok {
		return
	}
	bid, err := h.svc.RFPs.GetBid(r.Context(), principal(r), id)
	h.reply(w, r, bid, err)
}

func (h *handler) withdrawBid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bidID")
	if !ok {
		return
	}
	bid, err := h.svc.RFPs.WithdrawBid(r.Context(), principal(r), id)
	h.reply(w, r, bid, err)
}
