// Package apperr provides the domain error taxonomy shared by services and
// the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for callers. Callers branch on Kind, never on
// message text.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindConflict    Kind = "conflict"
	KindBadRequest  Kind = "bad_request"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// HTTPStatus maps a Kind to its HTTP status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Kind    Kind   // classification
	Code    string // stable machine-readable code, e.g. "sold_out"
	Message string // advisory, human readable
	Cause   error  // wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New constructs an Error.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// NotFound builds a NotFound error.
func NotFound(code, msg string) *Error { return New(KindNotFound, code, msg) }

// Forbidden builds a Forbidden error.
func Forbidden(code, msg string) *Error { return New(KindForbidden, code, msg) }

// Conflict builds a Conflict error.
func Conflict(code, msg string) *Error { return New(KindConflict, code, msg) }

// BadRequest builds a BadRequest error.
func BadRequest(code, msg string) *Error { return New(KindBadRequest, code, msg) }

// Unavailable builds an error for a disabled or unreachable dependency.
func Unavailable(code, msg string) *Error { return New(KindUnavailable, code, msg) }

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: msg, Cause: cause}
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine code of err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "internal"
}
