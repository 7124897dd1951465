// Package errors provides structured error handling for the role engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodePersistenceFailed Code = "PERSISTENCE_FAILED"
	CodeNotFound          Code = "NOT_FOUND"

	// Platform boundary errors
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeRoleHierarchy    Code = "ROLE_HIERARCHY_VIOLATION"
	CodeRoleUnmanageable Code = "ROLE_UNMANAGEABLE"

	// Configuration errors
	CodeConfigurationMissing Code = "CONFIGURATION_MISSING"
	CodeConfigurationInvalid Code = "CONFIGURATION_INVALID"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// HTTPStatus maps domain codes to HTTP status codes for the ops API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeConfigurationInvalid:
		return http.StatusBadRequest
	case CodePermissionDenied, CodeRoleHierarchy, CodeRoleUnmanageable:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConfigurationMissing:
		return http.StatusPreconditionFailed
	case CodePersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
