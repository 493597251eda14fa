package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AppError is the base interface for all application errors
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError represents a resource that was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "NOT_FOUND" }

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents invalid step input. FieldErrors carries every
// violated field so the caller can highlight all of them at once, not just
// the first encountered.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.FieldErrors) == 0 {
		return "validation error"
	}
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	if len(fields) == 1 {
		return fmt.Sprintf("validation error on field '%s': %s", fields[0], e.FieldErrors[fields[0]])
	}
	return fmt.Sprintf("validation error on fields: %s", strings.Join(fields, ", "))
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string    { return "VALIDATION_ERROR" }

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{FieldErrors: map[string]string{field: message}}
}

// NewValidationErrors creates a ValidationError from a full field-error map
func NewValidationErrors(fieldErrors map[string]string) *ValidationError {
	return &ValidationError{FieldErrors: fieldErrors}
}

// SessionExpiredError signals that the addressed session passed its expiry
// and a fresh session was started in its place. It is surfaced distinctly
// from generic client errors so the UI can explain why progress was reset.
type SessionExpiredError struct {
	SessionID    string
	NewSessionID string
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("onboarding session '%s' has expired", e.SessionID)
}

func (e *SessionExpiredError) HTTPStatus() int { return http.StatusGone }
func (e *SessionExpiredError) Code() string    { return "SESSION_EXPIRED" }

// NewSessionExpiredError creates a new SessionExpiredError
func NewSessionExpiredError(sessionID, newSessionID string) *SessionExpiredError {
	return &SessionExpiredError{SessionID: sessionID, NewSessionID: newSessionID}
}

// DependencyViolationError signals a step submitted out of order relative to
// the catalog's depends-on graph. This is a client programming error, not
// user-facing field validation.
type DependencyViolationError struct {
	Step    string
	Missing []string
	Reason  string
}

func (e *DependencyViolationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("step '%s' submitted before required steps: %s", e.Step, strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		return fmt.Sprintf("step '%s' cannot be submitted: %s", e.Step, e.Reason)
	}
	return fmt.Sprintf("step '%s' cannot be submitted in the current state", e.Step)
}

func (e *DependencyViolationError) HTTPStatus() int { return http.StatusConflict }
func (e *DependencyViolationError) Code() string    { return "DEPENDENCY_VIOLATION" }

// NewDependencyViolationError creates a new DependencyViolationError
func NewDependencyViolationError(step string, missing []string) *DependencyViolationError {
	return &DependencyViolationError{Step: step, Missing: missing}
}

// PersistenceError represents a session store failure. Fatal for the request
// but retryable by the caller because step submission is idempotent.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session store %s failed: %v", e.Op, e.Cause)
}

func (e *PersistenceError) HTTPStatus() int { return http.StatusServiceUnavailable }
func (e *PersistenceError) Code() string    { return "PERSISTENCE_ERROR" }
func (e *PersistenceError) Unwrap() error   { return e.Cause }

// NewPersistenceError creates a new PersistenceError
func NewPersistenceError(op string, cause error) *PersistenceError {
	return &PersistenceError{Op: op, Cause: cause}
}

// CollaboratorError represents a failure from an external collaborator
// (directory/ORM, billing) during finalization. Completion is aborted and
// the session stays active at its last completed step, so the UI can offer
// a "retry completion" action instead of restarting the wizard.
type CollaboratorError struct {
	Collaborator string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("collaborator '%s' failed: %v", e.Collaborator, e.Cause)
}

func (e *CollaboratorError) HTTPStatus() int { return http.StatusBadGateway }
func (e *CollaboratorError) Code() string    { return "COLLABORATOR_ERROR" }
func (e *CollaboratorError) Unwrap() error   { return e.Cause }

// NewCollaboratorError creates a new CollaboratorError
func NewCollaboratorError(collaborator string, cause error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Cause: cause}
}

// UnauthorizedError represents authentication failures
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *UnauthorizedError) HTTPStatus() int { return http.StatusUnauthorized }
func (e *UnauthorizedError) Code() string    { return "UNAUTHORIZED" }

// NewUnauthorizedError creates a new UnauthorizedError
func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// InternalError represents unexpected server errors
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *InternalError) Code() string    { return "INTERNAL_ERROR" }
func (e *InternalError) Unwrap() error   { return e.Cause }

// NewInternalError creates a new InternalError
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}

// Helper functions for error checking

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError
func IsValidation(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation)
}

// IsSessionExpired checks if an error is a SessionExpiredError
func IsSessionExpired(err error) bool {
	var expired *SessionExpiredError
	return errors.As(err, &expired)
}

// IsDependencyViolation checks if an error is a DependencyViolationError
func IsDependencyViolation(err error) bool {
	var dep *DependencyViolationError
	return errors.As(err, &dep)
}

// IsPersistence checks if an error is a PersistenceError
func IsPersistence(err error) bool {
	var persistence *PersistenceError
	return errors.As(err, &persistence)
}

// IsCollaborator checks if an error is a CollaboratorError
func IsCollaborator(err error) bool {
	var collaborator *CollaboratorError
	return errors.As(err, &collaborator)
}

// GetHTTPStatus returns the HTTP status code for an error.
// Returns 500 if the error doesn't implement AppError.
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the error code for an error.
// Returns "UNKNOWN_ERROR" if the error doesn't implement AppError.
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// FieldErrorsOf returns the field-error map when err is a ValidationError
func FieldErrorsOf(err error) map[string]string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.FieldErrors
	}
	return nil
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToResponse converts an error to an ErrorResponse
func ToResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}
	if fe := FieldErrorsOf(err); fe != nil {
		resp.Details = fe
	}

	var expired *SessionExpiredError
	if errors.As(err, &expired) {
		details := map[string]string{"session_id": expired.SessionID}
		if expired.NewSessionID != "" {
			details["new_session_id"] = expired.NewSessionID
		}
		resp.Details = details
	}

	var dependency *DependencyViolationError
	if errors.As(err, &dependency) && len(dependency.Missing) > 0 {
		resp.Details = map[string]any{"missing_steps": dependency.Missing}
	}

	return resp
}
