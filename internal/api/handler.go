package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
	webcontext "github.com/citymind/urbanlink/internal/web/context"
	"github.com/citymind/urbanlink/internal/web/request"
	"github.com/citymind/urbanlink/internal/web/response"
)

type handler struct {
	svc    *service.Services
	parser *request.Parser
	health Pinger
	logger *zap.Logger
	now    func() time.Time
}

func principal(r *http.Request) *auth.Principal {
	return auth.GetPrincipal(r.Context())
}

// decode reads a JSON body into v, replying and returning false on failure
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := h.parser.DecodeJSON(w, r, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, request.ErrBodyTooLarge):
		response.RenderError(w, response.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error()))
	case errors.Is(err, request.ErrUnsupportedMediaType):
		response.RenderError(w, response.NewHTTPError(http.StatusUnsupportedMediaType, err.Error()))
	default:
		response.RenderError(w, response.BadRequest("%s", err.Error()))
	}
	return false
}

// decodeOptional is decode for endpoints whose body may be omitted
func (h *handler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	return h.decode(w, r, v)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := request.UUIDParam(name, chi.URLParam(r, name))
	if err != nil {
		response.RenderError(w, response.BadRequest("%s", err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

func listOptions(w http.ResponseWriter, r *http.Request) (store.ListOptions, bool) {
	opts, err := request.ParseList(r)
	if err != nil {
		response.RenderError(w, response.BadRequest("%s", err.Error()))
		return opts, false
	}
	return opts, true
}

// fail renders err. Internal causes are logged and replaced with a generic
// message.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	he := httpError(err)
	if he.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", webcontext.GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	response.RenderError(w, he)
}

func httpError(err error) *response.HTTPError {
	var se *service.Error
	if !errors.As(err, &se) {
		return response.Internal()
	}
	switch se.Kind {
	case service.KindInvalid:
		if len(se.Fields) > 0 {
			return response.Validation(se.Message, se.Fields)
		}
		return response.BadRequest("%s", se.Message)
	case service.KindUnauthorized:
		return response.Unauthorized(se.Message)
	case service.KindForbidden:
		return response.Forbidden(se.Message)
	case service.KindNotFound:
		return response.NotFound(se.Message)
	case service.KindConflict:
		return response.Conflict(se.Message)
	default:
		return response.Internal()
	}
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	response.RenderError(w, response.NotFound("no route for "+r.URL.Path))
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	response.RenderError(w, response.NewHTTPError(http.StatusMethodNotAllowed, r.Method+" is not allowed here"))
}

func (h *handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			response.RenderError(w, response.ServiceUnavailable("database unreachable"))
			return
		}
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) reply(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, v)
}

// replyTagged is reply with an ETag; a matching If-None-Match gets 304
func (h *handler) replyTagged(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := json.Marshal(response.Envelope{Data: v})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cache.NotModified(w, r, cache.GenerateETag(body)) {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n'))
}

func (h *handler) replyCreated(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.JSON(w, http.StatusCreated, v)
}

func (h *handler) replyList(w http.ResponseWriter, r *http.Request, items interface{}, opts store.ListOptions, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.List(w, items, opts.Limit, opts.Offset)
}

func (h *handler) replyEmpty(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.NoContent(w)
}
