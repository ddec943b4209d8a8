package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
)

// Envelope wraps every successful JSON reply
type Envelope struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta describes the page a list reply was cut from
type Meta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// JSON writes v inside a data envelope
func JSON(w http.ResponseWriter, status int, v interface{}) {
	write(w, status, Envelope{Data: v})
}

// List writes items with pagination metadata. A nil slice is sent as [].
func List(w http.ResponseWriter, items interface{}, limit, offset int) {
	count := 0
	rv := reflect.ValueOf(items)
	if rv.Kind() == reflect.Slice {
		count = rv.Len()
		if rv.IsNil() {
			items = []struct{}{}
		}
	}
	write(w, http.StatusOK, Envelope{
		Data: items,
		Meta: &Meta{Limit: limit, Offset: offset, Count: count},
	})
}

// NoContent writes a 204
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// TextAttachment streams a plain-text document as a download
func TextAttachment(w http.ResponseWriter, filename string, body io.Reader) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, err := io.Copy(w, body)
	return err
}

func write(w http.ResponseWriter, status int, body interface{}) {
	// Marshal first so a failure never leaves a half-written reply
	data, err := json.Marshal(body)
	if err != nil {
		RenderError(w, Internal())
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}
