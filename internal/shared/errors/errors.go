// Package errors provides application-level error types and utilities.
// It defines the protocol error taxonomy shared by the REST surface, the
// socket transport, and the command handler.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an error for clients.
type ErrorKind string

const (
	KindAuthFailed        ErrorKind = "AUTH_FAILED"
	KindServerUnreachable ErrorKind = "SERVER_UNREACHABLE"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindDataService       ErrorKind = "DATA_SERVICE_ERROR"
	KindInternal          ErrorKind = "INTERNAL"
)

// AppError represents an application error with additional context.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewAuthFailedError creates an error for rejected credentials.
func NewAuthFailedError(message string, details ...string) *AppError {
	return newAppError(KindAuthFailed, message, http.StatusUnauthorized, details)
}

// NewServerUnreachableError creates an error for an unreachable remote database.
func NewServerUnreachableError(message string, details ...string) *AppError {
	return newAppError(KindServerUnreachable, message, http.StatusBadGateway, details)
}

// NewTimeoutError creates an error for a timed-out remote operation.
func NewTimeoutError(message string, details ...string) *AppError {
	return newAppError(KindTimeout, message, http.StatusGatewayTimeout, details)
}

// NewValidationError creates an error for a malformed command payload.
func NewValidationError(message string, details ...string) *AppError {
	return newAppError(KindValidation, message, http.StatusBadRequest, details)
}

// NewDataServiceError creates an error for an opaque data-service failure.
// The message is forwarded to clients; raw connection details must not be
// embedded in it.
func NewDataServiceError(message string, details ...string) *AppError {
	return newAppError(KindDataService, message, http.StatusBadGateway, details)
}

// NewInternalError creates an error for a programming fault. Clients only see
// a generic message; the details stay in the server log.
func NewInternalError(message string, details ...string) *AppError {
	return newAppError(KindInternal, message, http.StatusInternalServerError, details)
}

func newAppError(kind ErrorKind, message string, code int, details []string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Kind:    kind,
		Message: message,
		Code:    code,
		Details: detail,
	}
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Classify converts an arbitrary error into an AppError. Errors that are
// already AppErrors pass through unchanged; everything else becomes INTERNAL.
func Classify(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("internal error", err.Error())
}

// GetStatusCode returns the HTTP status code for an error, defaulting to 500.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
