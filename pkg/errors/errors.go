package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeParse indicates model output that could not be decoded; fatal to a search
	ErrorTypeParse ErrorType = "PARSE"

	// ErrorTypeDegraded indicates a pipeline stage failed and fell back
	ErrorTypeDegraded ErrorType = "DEGRADED"

	// ErrorTypeSink indicates trace persistence failed
	ErrorTypeSink ErrorType = "SINK"
)

const parseSnippetLength = 100

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Step    string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Step != "" {
		prefix += "(" + e.Step + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
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

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
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

// NewParseError creates a fatal parse error carrying the first 100
// characters of the text that failed to decode.
func NewParseError(text string, err error) *AppError {
	runes := []rune(text)
	if len(runes) > parseSnippetLength {
		runes = runes[:parseSnippetLength]
	}
	return &AppError{
		Type:    ErrorTypeParse,
		Message: fmt.Sprintf("could not parse model output %q", string(runes)),
		Err:     err,
	}
}

// NewDegradedError creates an error for a stage that fell back.
func NewDegradedError(step, message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeDegraded,
		Message: message,
		Step:    step,
		Err:     err,
	}
}

// NewSinkError creates a trace persistence error
func NewSinkError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeSink,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}
