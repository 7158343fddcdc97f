package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones and wraps compare equal to their template.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Academic core errors.
var (
	ErrSessionBusy                = New("SESSION_BUSY", http.StatusConflict, "session is busy, retry later")
	ErrNoveltyRequired            = New("NOVELTY_REQUIRED", http.StatusUnprocessableEntity, "a novelty type is required to close a session without attendance")
	ErrNoveltyAttachmentMissing   = New("NOVELTY_ATTACHMENT_MISSING", http.StatusUnprocessableEntity, "material novelties require at least one attachment")
	ErrNotEligible                = New("NOT_ELIGIBLE", http.StatusUnprocessableEntity, "student has not completed the prerequisites")
	ErrNotApplicable              = New("SESSION_NOT_APPLICABLE", http.StatusUnprocessableEntity, "session is not applicable to the student")
	ErrOutsideAudience            = New("OUTSIDE_AUDIENCE", http.StatusUnprocessableEntity, "student unit is outside the session audience")
	ErrCatalogMissingPrerequisite = New("CATALOG_MISSING_PREREQUISITE", http.StatusUnprocessableEntity, "prerequisite references a subject outside the catalog")
	ErrCatalogInconsistentProgram = New("CATALOG_INCONSISTENT_PROGRAM", http.StatusUnprocessableEntity, "subject program differs from its level program")
	ErrInvalidTransition          = New("INVALID_TRANSITION", http.StatusConflict, "state transition not allowed")
	ErrIntegrity                  = New("INTEGRITY_ERROR", http.StatusInternalServerError, "integrity violation")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Internal wraps an unexpected failure with a caller-facing message.
func Internal(err error, message string) *Error {
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, message)
}
