// Package errors maps service failures to structured API errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/maruel/localcrm/internal/storage"
	"github.com/maruel/localcrm/internal/validate"
	"github.com/maruel/localcrm/internal/xlsxdb"
)

// ErrorCode is a machine-readable error classification.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation.
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrNotFound is returned when a customer is not found.
	ErrNotFound ErrorCode = "NOT_FOUND"
	// ErrStorageUnavailable is returned when the table file can't be read or written.
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	// ErrTooManyRequests is returned when the client exceeded its rate limit.
	ErrTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	// ErrInternal is returned when an unexpected server error occurs.
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetails is the error object of an error response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// APIError is an error with an HTTP status code, an error code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{statusCode: statusCode, code: code, message: message}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Message returns the client facing message, without the wrapped error.
func (e *APIError) Message() string {
	return e.message
}

// Details returns a copy of the additional error details.
func (e *APIError) Details() map[string]any {
	return maps.Clone(e.details)
}

func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Response returns the JSON body for the error.
func (e *APIError) Response() *ErrorResponse {
	return &ErrorResponse{
		Error:   ErrorDetails{Code: e.code, Message: e.message},
		Details: e.Details(),
	}
}

// NotFound creates a 404 error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrNotFound, resource+" not found")
}

// BadRequest creates a 400 error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// Internal creates a 500 error wrapping err.
func Internal(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, "internal error").Wrap(err)
}

// From converts err returned by a service to an APIError. A nil error returns nil.
func From(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	var verr *validate.ValidationError
	if stderrors.As(err, &verr) {
		return BadRequest(verr.Message).WithDetail("field", verr.Field).Wrap(err)
	}
	if stderrors.Is(err, storage.ErrNotFound) {
		return NotFound("customer").Wrap(err)
	}
	if stderrors.Is(err, xlsxdb.ErrStorageUnavailable) {
		return NewAPIError(http.StatusServiceUnavailable, ErrStorageUnavailable, "customer table unavailable").Wrap(err)
	}
	return Internal(err)
}
