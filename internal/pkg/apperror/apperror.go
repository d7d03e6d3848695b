package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError. The set is closed; every failure the engine
// reports to a caller belongs to exactly one kind.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindInvalidTransition  Kind = "invalid_transition"
	KindForbidden          Kind = "forbidden"
	KindInvariantViolation Kind = "invariant_violation"
	KindNotAvailable       Kind = "not_available"
)

// Status maps the kind to the HTTP status code used by the transport layer.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case KindForbidden:
		return http.StatusForbidden
	case KindInvariantViolation:
		return http.StatusConflict
	case KindNotAvailable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// AppError is a custom error type that carries its kind, the HTTP status code
// derived from it and, when relevant, the offending input field.
type AppError struct {
	Kind    Kind   // Error taxonomy kind
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Message string // User-facing error message
	Field   string // Offending field or state, if any
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    kind.Status(),
		Message: message,
	}
}

// NewField creates a new AppError that names the offending field.
func NewField(kind Kind, field, message string) *AppError {
	e := New(kind, message)
	e.Field = field
	return e
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, kind Kind, message string) *AppError {
	e := New(kind, message)
	e.Err = err
	return e
}

// Detail derives an error from a sentinel AppError with a more specific message.
// errors.Is(result, sentinel) holds.
func Detail(sentinel *AppError, format string, args ...any) *AppError {
	return &AppError{
		Kind:    sentinel.Kind,
		Code:    sentinel.Code,
		Message: fmt.Sprintf(format, args...),
		Field:   sentinel.Field,
		Err:     sentinel,
	}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) (Kind, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
