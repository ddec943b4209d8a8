package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/validation"
)

// Kind classifies a service failure for the transport layer
type Kind string

const (
	KindInvalid      Kind = "invalid"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is returned by every service operation. Message is safe to show to
// the caller; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid reports bad input
func Invalid(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// InvalidField reports bad input on a single field
func InvalidField(field, message string) *Error {
	return &Error{
		Kind:    KindInvalid,
		Message: "validation failed",
		Fields:  map[string][]string{field: {message}},
	}
}

// Unauthorized reports missing or wrong credentials
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports an authenticated caller lacking access
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports a missing or invisible entity
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Conflict reports a state clash such as a duplicate or a stale status
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Internal wraps an unexpected failure
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// wrap converts store and validation errors into service errors. entity
// names the record type for not-found and conflict messages.
func wrap(err error, entity string) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return se
	}

	var ve *validation.ValidationErrors
	if errors.As(err, &ve) {
		return &Error{Kind: KindInvalid, Message: "validation failed", Fields: ve.Fields, Err: err}
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: entity + " not found", Err: err}
	case errors.Is(err, store.ErrUniqueViolation):
		return &Error{Kind: KindConflict, Message: entity + " already exists", Err: err}
	case errors.Is(err, store.ErrStaleStatus):
		return &Error{Kind: KindConflict, Message: entity + " was modified concurrently", Err: err}
	case errors.Is(err, store.ErrForeignKeyViolation):
		return &Error{Kind: KindInvalid, Message: "referenced record does not exist", Err: err}
	case errors.Is(err, store.ErrCheckViolation), errors.Is(err, store.ErrNotNullViolation):
		return &Error{Kind: KindInvalid, Message: "value violates a constraint", Err: err}
	case errors.Is(err, store.ErrInvalidQuery):
		return &Error{Kind: KindInvalid, Message: queryMessage(err), Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindInternal, Message: "request cancelled", Err: err}
	}
	return Internal(err)
}

// queryMessage strips wrapping context from an invalid query error, leaving
// the part that names the offending fields
func queryMessage(err error) string {
	msg := err.Error()
	marker := store.ErrInvalidQuery.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}
