package response

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Code    string              `json:"code"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string][]string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       errorCodeFromStatus(statusCode),
	}
}

// WithCode sets a custom error code
func (e *HTTPError) WithCode(code string) *HTTPError {
	e.Code = code
	return e
}

// WithFields attaches per-field validation messages
func (e *HTTPError) WithFields(fields map[string][]string) *HTTPError {
	e.Fields = fields
	return e
}

// BadRequest builds a 400 error
func BadRequest(format string, args ...interface{}) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Unauthorized builds a 401 error
func Unauthorized(message string) *HTTPError {
	if message == "" {
		message = "authentication required"
	}
	return NewHTTPError(http.StatusUnauthorized, message)
}

// Forbidden builds a 403 error
func Forbidden(message string) *HTTPError {
	if message == "" {
		message = "access denied"
	}
	return NewHTTPError(http.StatusForbidden, message)
}

// NotFound builds a 404 error
func NotFound(message string) *HTTPError {
	if message == "" {
		message = "resource not found"
	}
	return NewHTTPError(http.StatusNotFound, message)
}

// Conflict builds a 409 error
func Conflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, message)
}

// Validation builds a 422 error carrying field messages
func Validation(message string, fields map[string][]string) *HTTPError {
	if message == "" {
		message = "the request contains invalid data"
	}
	return NewHTTPError(http.StatusUnprocessableEntity, message).
		WithCode("validation_error").
		WithFields(fields)
}

// TooManyRequests builds a 429 error
func TooManyRequests() *HTTPError {
	return NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
}

// Internal builds a 500 error; the cause is never sent to the client
func Internal() *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, "internal server error")
}

// ServiceUnavailable builds a 503 error
func ServiceUnavailable(message string) *HTTPError {
	if message == "" {
		message = "service temporarily unavailable"
	}
	return NewHTTPError(http.StatusServiceUnavailable, message)
}

// RenderError writes e as a JSON error body
func RenderError(w http.ResponseWriter, e *HTTPError) {
	body := &ErrorResponse{
		Error:   http.StatusText(e.StatusCode),
		Message: e.Message,
		Code:    e.Code,
		Fields:  e.Fields,
	}
	if body.Code == "" {
		body.Code = errorCodeFromStatus(e.StatusCode)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(body)
}

// RenderTooManyRequests renders a 429 with a Retry-After header
func RenderTooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	RenderError(w, TooManyRequests())
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusInternalServerError:
		return "internal_error"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusGatewayTimeout:
		return "gateway_timeout"
	default:
		return "error"
	}
}
