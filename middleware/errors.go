package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kolah/veritas/schema"
)

// ValidationError carries the structural errors found while validating a
// request or response.
type ValidationError struct {
	StatusCode int
	Message    string
	Errors     []schema.Error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Errors[0])
}

// HTTPStatus returns the status the error is reported with.
func (e *ValidationError) HTTPStatus() int {
	return e.StatusCode
}

// RequestValidationError reports a request that does not match its operation's
// query, params or body schema.
type RequestValidationError struct {
	ValidationError
}

// NewRequestValidationError creates a 400 error for errs.
func NewRequestValidationError(errs []schema.Error) *RequestValidationError {
	return &RequestValidationError{ValidationError{
		StatusCode: http.StatusBadRequest,
		Message:    "RequestValidationError",
		Errors:     errs,
	}}
}

// ResponseValidationError reports a handler response that does not match its
// operation's response schema.
type ResponseValidationError struct {
	ValidationError
}

func NewResponseValidationError(errs []schema.Error) *ResponseValidationError {
	return &ResponseValidationError{ValidationError{
		StatusCode: http.StatusBadRequest,
		Message:    "ResponseValidationError",
		Errors:     errs,
	}}
}

// AsValidationError unwraps a request or response validation error.
func AsValidationError(err error) (*ValidationError, bool) {
	var reqErr *RequestValidationError
	if errors.As(err, &reqErr) {
		return &reqErr.ValidationError, true
	}
	var respErr *ResponseValidationError
	if errors.As(err, &respErr) {
		return &respErr.ValidationError, true
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

// AuthError represents authentication/authorization failures.
type AuthError struct {
	StatusCode int
	Scheme     string
	Message    string
	Scopes     []string
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) HTTPStatus() int {
	return e.StatusCode
}

// IsUnauthorized returns true if error is 401 (missing/invalid credentials).
func (e *AuthError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsForbidden returns true if error is 403 (valid credentials, insufficient permissions).
func (e *AuthError) IsForbidden() bool {
	return e.StatusCode == http.StatusForbidden
}

// NewUnauthorizedError creates a 401 error.
func NewUnauthorizedError(scheme, message string) *AuthError {
	return &AuthError{
		StatusCode: http.StatusUnauthorized,
		Scheme:     scheme,
		Message:    message,
	}
}

// NewForbiddenError creates a 403 error.
func NewForbiddenError(scheme, message string, scopes []string) *AuthError {
	return &AuthError{
		StatusCode: http.StatusForbidden,
		Scheme:     scheme,
		Message:    message,
		Scopes:     scopes,
	}
}

// MalformedBodyError reports a request body that could not be read or decoded.
type MalformedBodyError struct {
	StatusCode int
	Err        error
}

func (e *MalformedBodyError) Error() string {
	return "malformed request body: " + e.Err.Error()
}

func (e *MalformedBodyError) Unwrap() error {
	return e.Err
}

func (e *MalformedBodyError) HTTPStatus() int {
	if e.StatusCode == 0 {
		return http.StatusBadRequest
	}
	return e.StatusCode
}

// DoubleInvocationError is returned when a handler calls next more than once.
type DoubleInvocationError struct {
	// Index is the chain position of the offending handler.
	Index int
}

func (e *DoubleInvocationError) Error() string {
	return "next() called multiple times"
}

type statusError interface {
	error
	HTTPStatus() int
}

// StatusOf returns the HTTP status err should be reported with: the error's
// own status when it carries one, 500 otherwise.
func StatusOf(err error) int {
	var se statusError
	if errors.As(err, &se) && se.HTTPStatus() != 0 {
		return se.HTTPStatus()
	}
	return http.StatusInternalServerError
}
