// Package apperr defines the failure kinds the service reports to callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	NameBadRequest       = "BadRequestError"
	NameUnauthorized     = "UnauthorizedError"
	NameMethodNotAllowed = "MethodNotAllowedError"
	NamePayloadTooLarge  = "PayloadTooLargeError"
	NameValidation       = "ValidationError"
	NameTooManyRequests  = "TooManyRequestsError"
	NameInternal         = "InternalServerError"
	NameGatewayTimeout   = "GatewayTimeoutError"
)

// Error is a failure that knows its HTTP status and machine-readable name.
type Error struct {
	Name    string
	Status  int
	Message string
	// Details is serialized as the envelope's "errors" field when set.
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Name, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(name string, status int, message string, err error) *Error {
	return &Error{Name: name, Status: status, Message: message, Err: err}
}

func BadRequest(message string, err error) *Error {
	return New(NameBadRequest, http.StatusBadRequest, message, err)
}

func Unauthorized(message string) *Error {
	return New(NameUnauthorized, http.StatusUnauthorized, message, nil)
}

func MethodNotAllowed(message string) *Error {
	return New(NameMethodNotAllowed, http.StatusMethodNotAllowed, message, nil)
}

func PayloadTooLarge(message string, err error) *Error {
	return New(NamePayloadTooLarge, http.StatusRequestEntityTooLarge, message, err)
}

// Validation carries the list of schema violations in Details.
func Validation(message string, details interface{}) *Error {
	e := New(NameValidation, http.StatusUnprocessableEntity, message, nil)
	e.Details = details
	return e
}

func TooManyRequests(message string) *Error {
	return New(NameTooManyRequests, http.StatusTooManyRequests, message, nil)
}

func Internal(message string, err error) *Error {
	return New(NameInternal, http.StatusInternalServerError, message, err)
}

func GatewayTimeout(message string, err error) *Error {
	return New(NameGatewayTimeout, http.StatusGatewayTimeout, message, err)
}

// From returns the *Error inside err's chain, or wraps err as an
// InternalServerError when there is none.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("internal server error", err)
}
