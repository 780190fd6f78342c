// Package fault defines the error taxonomy shared by every Maestro layer.
//
// Each domain operation fails with exactly one Kind. The HTTP layer and the
// CLI map the same Kind to the same status code and exit code, so an error
// means the same thing no matter which surface reported it.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport and exit-code mapping.
type Kind string

const (
	KindInvalidArgument   Kind = "InvalidArgument"
	KindNotFound          Kind = "NotFound"
	KindConflict          Kind = "Conflict"
	KindCorrupt           Kind = "Corrupt"
	KindForbidden         Kind = "Forbidden"
	KindUnsupportedAction Kind = "UnsupportedAction"
	KindInternal          Kind = "Internal"
)

// Error is the one error type domain code returns across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	// Detail carries structured context for the response envelope,
	// e.g. the candidate list on a failed page resolution.
	Detail any
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message, preserving the cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetail attaches structured detail and returns the same error.
func (e *Error) WithDetail(detail any) *Error {
	e.Detail = detail
	return e
}

// KindOf extracts the Kind from err. Errors without a Kind are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// DetailOf extracts the structured detail from err, if any.
func DetailOf(err error) any {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Detail
	}
	return nil
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument, KindUnsupportedAction:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindCorrupt, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps an error to the CLI exit code contract:
// 0 success, 2 bad-arg, 3 not-found, 4 conflict, 5 corrupt-store, 1 other.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindInvalidArgument, KindUnsupportedAction:
		return 2
	case KindNotFound:
		return 3
	case KindConflict:
		return 4
	case KindCorrupt:
		return 5
	default:
		return 1
	}
}
