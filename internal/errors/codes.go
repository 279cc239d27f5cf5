// Package errors provides structured error handling for stacfan.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Backend/network errors
//   - 4XX: Request validation errors
//   - 5XX: Internal errors
package errors

import "net/http"

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryBackend indicates datasource backend invocation errors.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates request validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeSourcesInvalid = "ERR_103_SOURCES_INVALID"

	// Backend errors (300-399)
	ErrCodeBackendFailure     = "ERR_301_BACKEND_FAILURE"
	ErrCodeBackendUnknown     = "ERR_302_BACKEND_UNKNOWN"
	ErrCodeBackendBadResponse = "ERR_303_BACKEND_BAD_RESPONSE"
	ErrCodePartialFailure     = "ERR_304_PARTIAL_FAILURE"

	// Validation errors (400-499)
	ErrCodeInvalidRequest = "ERR_401_INVALID_REQUEST"
	ErrCodeMissingSpatial = "ERR_402_MISSING_SPATIAL"
	ErrCodeNoDatasources  = "ERR_403_NO_DATASOURCES"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the error category from the code prefix.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// httpStatusFromCategory maps an error category to the response status
// the gateway returns for it: validation errors are the caller's fault,
// backend errors are upstream failures.
func httpStatusFromCategory(c Category) int {
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
