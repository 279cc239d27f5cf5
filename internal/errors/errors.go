package errors

import (
	"fmt"
	"strings"
)

// GatewayError is the structured error type for stacfan.
// It provides rich context for error handling, logging, and response mapping.
type GatewayError struct {
	// Code is the unique error code (e.g., "ERR_401_INVALID_REQUEST").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Backend, Validation, Internal).
	Category Category

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with GatewayError.
func (e *GatewayError) Is(target error) bool {
	if t, ok := target.(*GatewayError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *GatewayError) WithDetail(key, value string) *GatewayError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the response status code for this error.
func (e *GatewayError) HTTPStatus() int {
	return httpStatusFromCategory(e.Category)
}

// New creates a new GatewayError with the given code and message.
// The category is derived from the code.
func New(code string, message string, cause error) *GatewayError {
	return &GatewayError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a GatewayError from an existing error.
// The error's message becomes the GatewayError message.
func Wrap(code string, err error) *GatewayError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidRequest creates a request validation error.
func InvalidRequest(message string) *GatewayError {
	return New(ErrCodeInvalidRequest, message, nil)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *GatewayError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// BackendFailure creates an error for a single failed backend invocation.
// The datasource name is recorded as a detail so the caller can report
// which slot failed.
func BackendFailure(datasource string, cause error) *GatewayError {
	e := New(ErrCodeBackendFailure,
		fmt.Sprintf("datasource %q failed: %v", datasource, cause), cause)
	return e.WithDetail("datasource", datasource)
}

// Datasource returns the datasource name attached to a backend error,
// or empty string if none was recorded.
func (e *GatewayError) Datasource() string {
	return e.Details["datasource"]
}

// PartialFailure aggregates one or more backend failures that occurred
// during a fan-out. All failed slots are listed in the message; the
// first failure is kept as the cause for unwrapping.
type PartialFailure struct {
	Failures []*GatewayError
	Total    int // total datasources dispatched
}

// Error implements the error interface.
func (e *PartialFailure) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Datasource()
	}
	return fmt.Sprintf("[%s] %d of %d datasources failed: %s",
		ErrCodePartialFailure, len(e.Failures), e.Total,
		strings.Join(names, ", "))
}

// Unwrap returns the first underlying backend failure.
func (e *PartialFailure) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[0]
}

// HTTPStatus returns the response status code for a partial failure.
func (e *PartialFailure) HTTPStatus() int {
	return httpStatusFromCategory(CategoryBackend)
}

// GetCode extracts the error code from a GatewayError.
// Returns empty string if not a GatewayError.
func GetCode(err error) string {
	if ge, ok := err.(*GatewayError); ok {
		return ge.Code
	}
	return ""
}

// GetCategory extracts the category from a GatewayError.
// Returns empty string if not a GatewayError.
func GetCategory(err error) Category {
	if ge, ok := err.(*GatewayError); ok {
		return ge.Category
	}
	return ""
}
