// Package apperr defines the error taxonomy shared by all services.
//
// Handlers rely on errors.As against these types to pick the HTTP status
// and whether the caller should retry, fix its input, or re-fetch state.
package apperr

import "fmt"

// ValidationError indicates malformed or out-of-range input. Retrying
// without changing the input will fail again.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation creates a ValidationError with a formatted message.
func Validation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError indicates the acting user is not permitted to perform
// the requested transition.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// Authorization creates an AuthorizationError with a formatted message.
func Authorization(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError indicates the operation lost against the currently
// persisted state (offer no longer pending, duplicate review, listing
// already sold). The caller should re-fetch and decide.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// Conflict creates a ConflictError with a formatted message.
func Conflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates the referenced entity does not exist or is not
// visible to the caller.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// NotFound creates a NotFoundError with a formatted message.
func NotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// DependencyError indicates a collaborator (MongoDB, Redis, SMTP) was
// unreachable or failed. The whole operation is safe to retry.
type DependencyError struct {
	Message string
	Cause   error
}

func (e *DependencyError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DependencyError) Unwrap() error { return e.Cause }

// Dependency wraps a collaborator failure.
func Dependency(cause error, format string, args ...interface{}) *DependencyError {
	return &DependencyError{Message: fmt.Sprintf(format, args...), Cause: cause}
}
