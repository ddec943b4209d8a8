package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderError(t *testing.T) {
	tests := []struct {
		name       string
		err        *HTTPError
		wantStatus int
		wantCode   string
	}{
		{"not found", NotFound(""), http.StatusNotFound, "not_found"},
		{"forbidden", Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{"unauthorized", Unauthorized(""), http.StatusUnauthorized, "unauthorized"},
		{"conflict", Conflict("taken"), http.StatusConflict, "conflict"},
		{"internal", Internal(), http.StatusInternalServerError, "internal_error"},
		{"custom code", BadRequest("bad %s", "id").WithCode("invalid_id"), http.StatusBadRequest, "invalid_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RenderError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.err.Message, body.Message)
			assert.Equal(t, http.StatusText(tt.wantStatus), body.Error)
		})
	}
}

func TestRenderError_ValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderError(rec, Validation("", map[string][]string{"name": {"is required"}}))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Code)
	assert.Equal(t, []string{"is required"}, body.Fields["name"])
}

func TestRenderTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderTooManyRequests(rec, 12)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "12", rec.Header().Get("Retry-After"))
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":"abc"}}`, rec.Body.String())
}

func TestList(t *testing.T) {
	t.Run("with items", func(t *testing.T) {
		rec := httptest.NewRecorder()
		List(rec, []int{1, 2, 3}, 50, 10)
		assert.JSONEq(t, `{"data":[1,2,3],"meta":{"limit":50,"offset":10,"count":3}}`, rec.Body.String())
	})

	t.Run("nil slice renders empty array", func(t *testing.T) {
		rec := httptest.NewRecorder()
		var items []string
		List(rec, items, 50, 0)
		assert.JSONEq(t, `{"data":[],"meta":{"limit":50,"offset":0,"count":0}}`, rec.Body.String())
	})
}

func TestTextAttachment(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, TextAttachment(rec, "report.txt", strings.NewReader("hello")))

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="report.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "hello", rec.Body.String())
}
