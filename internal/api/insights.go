package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/citymind/urbanlink/internal/domain/roi"
	"github.com/citymind/urbanlink/internal/report"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/request"
	"github.com/citymind/urbanlink/internal/web/response"
)

func (h *handler) insightRoutes(r chi.Router) {
	r.Get("/audit-logs", h.listAuditLogs)
	r.Get("/benchmark", h.benchmark)
	r.Post("/roi/calculate", h.calculateROI)
	r.Get("/dashboard", h.dashboard)
}

// listAuditLogs returns JSON, or a plain-text export when format=text
func (h *handler) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.Audit.List(r.Context(), principal(r), opts)
	if err != nil || r.URL.Query().Get("format") != "text" {
		h.replyList(w, r, logs, opts, err)
		return
	}
	var buf bytes.Buffer
	if err := report.AuditLog(&buf, logs); err != nil {
		h.fail(w, r, err)
		return
	}
	_ = response.TextAttachment(w, "audit-"+h.now().UTC().Format("2006-01-02")+".txt", &buf)
}

func (h *handler) benchmark(w http.ResponseWriter, r *http.Request) {
	q := service.BenchmarkQuery{Band: r.URL.Query().Get("band")}
	if raw := r.URL.Query().Get("profile_id"); raw != "" {
		id, err := request.UUIDParam("profile_id", raw)
		if err != nil {
			response.RenderError(w, response.BadRequest("%s", err.Error()))
			return
		}
		q.ProfileID = &id
	}
	res, err := h.svc.Benchmark.Get(r.Context(), principal(r), q)
	h.replyTagged(w, r, res, err)
}

func (h *handler) calculateROI(w http.ResponseWriter, r *http.Request) {
	var in roi.Input
	if !h.decode(w, r, &in) {
		return
	}
	res, err := h.svc.ROI.Calculate(r.Context(), principal(r), in)
	h.replyROI(w, r, res, err)
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard.Get(r.Context(), principal(r))
	h.reply(w, r, d, err)
}

func (h *handler) notificationRoutes(r chi.Router) {
	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/read-all", h.markAllRead)
	r.Post("/notifications/{notificationID}/read", h.markRead)
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	opts, ok := listOptions(w, r)
	if !ok {
		return
	}
	ns, err := h.svc.Notifications.List(r.Context(), principal(r), opts)
	h.replyList(w, r, ns, opts, err)
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "notificationID")
	if !ok {
		return
	}
	h.replyEmpty(w, r, h.svc.Notifications.MarkRead(r.Context(), principal(r), id))
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), principal(r))
	h.reply(w, r, map[string]int64{"updated": n}, err)
}

