package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeAuthenticationRequired indicates the caller carries no identity
	ErrorTypeAuthenticationRequired ErrorType = "AUTHENTICATION_REQUIRED"

	// ErrorTypePermissionDenied indicates the caller lacks a required permission
	ErrorTypePermissionDenied ErrorType = "PERMISSION_DENIED"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeCodeAlreadyExists indicates a code clash among currently valid rows
	ErrorTypeCodeAlreadyExists ErrorType = "CODE_ALREADY_EXISTS"

	// ErrorTypeNotFound indicates a uuid or id does not resolve to any row
	ErrorTypeNotFound ErrorType = "ID_NOT_FOUND"

	// ErrorTypeReferenceNotFound indicates a child relation points at a missing item or service
	ErrorTypeReferenceNotFound ErrorType = "REFERENCE_NOT_FOUND"

	// ErrorTypePersistence indicates the underlying store failed
	ErrorTypePersistence ErrorType = "PERSISTENCE_FAILURE"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Detail returns the text shown to API callers as the error detail.
func (e *AppError) Detail() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewAuthenticationRequiredError creates a new authentication error
func NewAuthenticationRequiredError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeAuthenticationRequired,
		Message: message,
	}
}

// NewPermissionDeniedError creates a new permission error
func NewPermissionDeniedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypePermissionDenied,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewCodeAlreadyExistsError creates a new uniqueness error
func NewCodeAlreadyExistsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeCodeAlreadyExists,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewReferenceNotFoundError creates a new dangling reference error
func NewReferenceNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeReferenceNotFound,
		Message: message,
	}
}

// NewPersistenceError creates a new store failure error
func NewPersistenceError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePersistence,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err's chain holds an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// IsNotFound is shorthand for IsType(err, ErrorTypeNotFound).
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// TypeOf returns the AppError type of err, or ErrorTypePersistence for
// anything that is not an AppError.
func TypeOf(err error) ErrorType {
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrorTypePersistence
}
