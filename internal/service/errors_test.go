package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/validation"
)

func TestWrap(t *testing.T) {
	ve := validation.NewValidationErrors()
	ve.Add("name", "is required")

	tests := []struct {
		name    string
		in      error
		kind    Kind
		message string
	}{
		{"not found", store.ErrNotFound, KindNotFound, "task not found"},
		{"wrapped unique", fmt.Errorf("create task: %w", store.ErrUniqueViolation), KindConflict, "task already exists"},
		{"stale", store.ErrStaleStatus, KindConflict, "task was modified concurrently"},
		{"foreign key", store.ErrForeignKeyViolation, KindInvalid, "referenced record does not exist"},
		{"check", store.ErrCheckViolation, KindInvalid, "value violates a constraint"},
		{"query", fmt.Errorf("%w: unknown sort field \"x\"", store.ErrInvalidQuery), KindInvalid, `unknown sort field "x"`},
		{"validation", ve, KindInvalid, "validation failed"},
		{"cancelled", context.Canceled, KindInternal, "request cancelled: context canceled"},
		{"service error", Forbidden("nope"), KindForbidden, "nope"},
		{"other", errors.New("disk on fire"), KindInternal, "internal error: disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrap(tt.in, "task")
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}

	assert.NoError(t, wrap(nil, "task"))
}

func TestWrapKeepsValidationFields(t *testing.T) {
	ve := validation.NewValidationErrors()
	ve.Add("title", "is required")

	var se *Error
	assert.True(t, errors.As(wrap(ve, "task"), &se))
	assert.Equal(t, []string{"is required"}, se.Fields["title"])
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("outer: %w", NotFound("rfp"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
