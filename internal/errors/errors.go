package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Failure taxonomy of the document workflow. Every failure leaves the document unchanged.
var (
	ErrInvalidTransition  = new(ErrCodeInvalidTransition, "action not eligible for role and status")
	ErrValidation         = new(ErrCodeValidation, "validation error")
	ErrPreconditionFailed = new(ErrCodePreconditionFailed, "precondition failed")
	ErrNotFound           = new(ErrCodeNotFound, "resource not found")
	ErrPermissionDenied   = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase           = new(ErrCodeDatabase, "database error")
	ErrSystem             = new(ErrCodeSystemError, "system error")

	statusCodeMap = map[error]int{
		ErrInvalidTransition:  http.StatusConflict,
		ErrValidation:         http.StatusBadRequest,
		ErrPreconditionFailed: http.StatusUnprocessableEntity,
		ErrNotFound:           http.StatusNotFound,
		ErrPermissionDenied:   http.StatusForbidden,
		ErrDatabase:           http.StatusInternalServerError,
		ErrSystem:             http.StatusInternalServerError,
	}
)

const (
	ErrCodeInvalidTransition  = "invalid_transition"
	ErrCodeValidation         = "validation_error"
	ErrCodePreconditionFailed = "precondition_failed"
	ErrCodeNotFound           = "not_found"
	ErrCodePermissionDenied   = "permission_denied"
	ErrCodeDatabase           = "database_error"
	ErrCodeSystemError        = "system_error"
)

// InternalError is a sentinel carrying a machine readable code.
type InternalError struct {
	Code    string
	Message string
	Err     error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is matches on code so wrapped copies of a sentinel still compare equal.
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsPreconditionFailed(err error) bool {
	return errors.Is(err, ErrPreconditionFailed)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}

// HTTPStatusFromErr maps an error to the response status of the first matching sentinel.
func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the code of the first matching sentinel, or system_error.
func CodeFromErr(err error) string {
	for e := range statusCodeMap {
		if errors.Is(err, e) {
			return e.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}
