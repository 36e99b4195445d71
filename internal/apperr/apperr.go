// Package apperr classifies failures so every transport answers with the
// same {message, statusCode} body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalid
	KindUnauthorized
	KindForbidden
	KindConflict
)

// InternalMessage is the only text an unclassified failure ever exposes.
const InternalMessage = "An unexpected error occurred"

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalid:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string
	// Details carries individual violations for aggregated failures.
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Invalid(format string, args ...any) *Error {
	return newf(KindInvalid, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// Wrap attaches a kind and a client-safe message to a lower level error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetails returns e carrying the given violations.
func (e *Error) WithDetails(details []string) *Error {
	e.Details = details
	return e
}

func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Response is the wire shape of every failure.
type Response struct {
	Message    string   `json:"message"`
	StatusCode int      `json:"statusCode"`
	Errors     []string `json:"errors,omitempty"`
}

func NewResponse(status int, message string) Response {
	return Response{Message: message, StatusCode: status}
}

// ResponseFor translates err. Internal failures never leak their cause.
func ResponseFor(err error) Response {
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return NewResponse(http.StatusInternalServerError, InternalMessage)
	}

	return Response{
		Message:    appErr.Message,
		StatusCode: appErr.Kind.HTTPStatus(),
		Errors:     appErr.Details,
	}
}
