// Package errs defines the outcome taxonomy for entity operations.
// Precondition, conflict, and not-found values are expected request-level
// outcomes, not system faults; only unclassified I/O errors are treated as
// failures by the caller.
package errs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not-found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition-failed"
	KindNotModified        Kind = "not-modified"
	KindPayloadTooLarge    Kind = "payload-too-large"
)

// Error carries a machine-readable kind plus the context a client needs to
// recover: the offending field for validation failures, the etag pair for
// precondition mismatches, and the matched etag for not-modified reads.
type Error struct {
	Kind     Kind
	Field    string
	ETag     string
	Expected string
	Actual   string
	Message  string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

// NewValidation reports malformed input before any I/O is attempted.
func NewValidation(field, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func NewNotFound(id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("entity '%s' does not exist", id),
	}
}

func NewConflict(id string) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("entity '%s' already exists", id),
	}
}

func NewPreconditionFailed(expected, actual string) *Error {
	return &Error{
		Kind:     KindPreconditionFailed,
		Expected: expected,
		Actual:   actual,
		ETag:     actual,
		Message:  fmt.Sprintf("etag precondition failed: expected '%s', stored '%s'", expected, actual),
	}
}

// NewNotModified is a valid branch of a conditional read, not a failure.
// It travels as an error so it can cross the repository/service boundary
// without a second return value.
func NewNotModified(etag string) *Error {
	return &Error{
		Kind:    KindNotModified,
		ETag:    etag,
		Message: fmt.Sprintf("entity version '%s' not modified", etag),
	}
}

func NewPayloadTooLarge(size, limit int64) *Error {
	return &Error{
		Kind:    KindPayloadTooLarge,
		Message: fmt.Sprintf("payload of %d bytes exceeds the %d byte limit", size, limit),
	}
}

// GetKind returns the kind of err, or "" when err is not a domain error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool         { return GetKind(err) == KindValidation }
func IsNotFound(err error) bool           { return GetKind(err) == KindNotFound }
func IsConflict(err error) bool           { return GetKind(err) == KindConflict }
func IsPreconditionFailed(err error) bool { return GetKind(err) == KindPreconditionFailed }
func IsNotModified(err error) bool        { return GetKind(err) == KindNotModified }
func IsPayloadTooLarge(err error) bool    { return GetKind(err) == KindPayloadTooLarge }

// StatusCode maps the kind onto its HTTP equivalent.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case KindNotModified:
		return http.StatusNotModified
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTPError converts the domain error for handlers that return httperror values.
func (e *Error) ToHTTPError() *httperror.HTTPError {
	httpErr := httperror.NewHTTPError(e.StatusCode(), e.Error()).AddMetaValue("kind", string(e.Kind))
	if e.Field != "" {
		httpErr = httpErr.AddMetaValue("field", e.Field)
	}
	if e.ETag != "" {
		httpErr = httpErr.AddMetaValue("etag", e.ETag)
	}
	return httpErr
}
