// Package apperr provides the application error taxonomy.
//
// Every AppError wraps one of the sentinels below, so callers branch with
// errors.Is and handlers render Code/Message/FieldErrors with HTTPStatus.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")
)

// AppError is a structured application error with HTTP status and error code.
type AppError struct {
	// Code is a machine-readable error code (e.g., "COMPLAINT_NOT_FOUND").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// HTTPStatus is the corresponding HTTP status code.
	HTTPStatus int `json:"-"`

	// FieldErrors carries field-level validation details.
	FieldErrors []FieldError `json:"field_errors,omitempty"`

	// Err is the wrapped underlying error.
	Err error `json:"-"`
}

// FieldError describes a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Validation creates a 400 error. No state has been mutated when it is returned.
func Validation(code, message string, fields ...FieldError) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		HTTPStatus:  http.StatusBadRequest,
		FieldErrors: fields,
		Err:         ErrValidation,
	}
}

// NotFound creates a 404 error.
func NotFound(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusNotFound, Err: ErrNotFound}
}

// Forbidden creates a 403 error.
func Forbidden(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusForbidden, Err: ErrForbidden}
}

// Conflict creates a 409 error.
func Conflict(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: http.StatusConflict, Err: ErrConflict}
}

// Internal wraps a storage or infrastructure failure into a 500 error.
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        fmt.Errorf("%w: %w", ErrInternal, err),
	}
}

// As returns the AppError inside err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Status maps any error to an HTTP status. Unknown errors are 500.
func Status(err error) int {
	if appErr, ok := As(err); ok && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
