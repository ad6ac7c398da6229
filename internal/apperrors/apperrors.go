package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Exception is the error type carried across service boundaries. Code is a
// stable machine-readable identifier; handlers must switch on it (or on the
// sentinel values below), never on message text.
type Exception struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Exception) Error() string {
	return e.Message
}

// WithMessage returns a copy of e carrying a different message. errors.Is
// still matches the original sentinel through the Code comparison.
func (e *Exception) WithMessage(format string, args ...interface{}) *Exception {
	return &Exception{
		Code:       e.Code,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: e.StatusCode,
	}
}

func (e *Exception) Is(target error) bool {
	var other *Exception
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

var (
	// ErrValidation covers client-side precondition failures: empty required
	// fields, rejection without comments, zero-field change sets.
	ErrValidation = &Exception{
		Code:       "validation_failed",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
	}

	// ErrConflict covers uniqueness violations such as a duplicate pending
	// edit request for a task.
	ErrConflict = &Exception{
		Code:       "conflict",
		Message:    "conflict with existing state",
		StatusCode: http.StatusConflict,
	}

	ErrNotFound = &Exception{
		Code:       "not_found",
		Message:    "record not found",
		StatusCode: http.StatusNotFound,
	}

	ErrForbidden = &Exception{
		Code:       "forbidden",
		Message:    "operation not permitted for this user",
		StatusCode: http.StatusForbidden,
	}

	// ErrTransitionRejected is the guard rejection for an illegal lifecycle
	// transition. The message is surfaced to the caller verbatim.
	ErrTransitionRejected = &Exception{
		Code:       "transition_rejected",
		Message:    "transition not allowed from current status",
		StatusCode: http.StatusUnprocessableEntity,
	}

	// ErrRemoteFailure marks an operation that executed but reported failure.
	ErrRemoteFailure = &Exception{
		Code:       "remote_failure",
		Message:    "operation reported failure",
		StatusCode: http.StatusBadGateway,
	}

	// ErrTransportFailure marks an unreachable dependency (redis, storage).
	ErrTransportFailure = &Exception{
		Code:       "transport_failure",
		Message:    "dependency unreachable",
		StatusCode: http.StatusServiceUnavailable,
	}

	// ErrPartialFailure marks a multi-step sequence that completed some but
	// not all steps, e.g. an attachment row written without its file.
	ErrPartialFailure = &Exception{
		Code:       "partial_failure",
		Message:    "operation partially completed",
		StatusCode: http.StatusInternalServerError,
	}
)

// StatusCode resolves the HTTP status for any error, defaulting to 500.
func StatusCode(err error) int {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Code resolves the stable error code, empty for untyped errors.
func Code(err error) string {
	var appErr *Exception
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
