package errors

import (
	"fmt"
	"runtime"
)

// Error types for different categories of failures
type ErrorType string

const (
	// ErrorTypeContract marks a caller precondition violation
	// (sparsity > dims, a zero packet size, a rate outside [0,1]).
	ErrorTypeContract      ErrorType = "contract"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTransport     ErrorType = "transport"
)

// StructuredError provides rich error context
type StructuredError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Context   map[string]interface{}
	Stack     []uintptr
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Operation, e.Message)
}

// Unwrap returns the underlying cause
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new structured error
func New(errType ErrorType, operation, message string) *StructuredError {
	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, operation, message string) *StructuredError {
	if err == nil {
		return nil
	}

	return &StructuredError{
		Type:      errType,
		Operation: operation,
		Message:   message,
		Cause:     err,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
	}
}

// WithContext adds context information to an error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// captureStack captures the current stack trace
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, this function and the constructor
	return pcs[:n]
}

// Contract wraps a sentinel cause as a contract violation so callers can
// match it with errors.Is while still getting operation context.
func Contract(cause error, operation, message string) *StructuredError {
	return Wrap(cause, ErrorTypeContract, operation, message)
}

// NewValidationError creates a validation error
func NewValidationError(operation, message string) *StructuredError {
	return New(ErrorTypeValidation, operation, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string) *StructuredError {
	return New(ErrorTypeConfiguration, operation, message)
}

// WrapConfigurationError wraps an error as a configuration error
func WrapConfigurationError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeConfiguration, operation, message)
}

// WrapTransportError wraps an error raised while encoding or decoding a payload
func WrapTransportError(err error, operation, message string) *StructuredError {
	return Wrap(err, ErrorTypeTransport, operation, message)
}
