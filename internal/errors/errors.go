package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ValidationError represents validation errors
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined errors for request-shape failures that carry no per-file detail
var (
	ErrMissingFile  = New(http.StatusBadRequest, "MISSING_FILE", "No file part found in the request")
	ErrTooManyFiles = New(http.StatusBadRequest, "TOO_MANY_FILES", "Too many files in a single request")
)

// InvalidRequestWithError creates an invalid request error with details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// ErrValidation creates a validation error with field details
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed", ValidationError{
		Field:   field,
		Message: message,
	})
}

// ReportNotFoundError creates a report not found error for the given report ID
func ReportNotFoundError(reportID string) *APIError {
	return NewWithDetails(http.StatusNotFound, "REPORT_NOT_FOUND", "Report not found or expired", reportID)
}

// UnsupportedFormatError creates an unsupported format error naming the offending file
func UnsupportedFormatError(filename string) *APIError {
	return NewWithDetails(http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT",
		fmt.Sprintf("%s: only .csv, .xlsx and .xls documents are supported", filename), filename)
}

// OversizeInputError creates a payload too large error with the configured limit
func OversizeInputError(filename string, limit int64) *APIError {
	return NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
		fmt.Sprintf("%s exceeds the %d byte upload limit", filename, limit), filename)
}

// MalformedDocumentError creates a malformed document error with parser details
func MalformedDocumentError(filename string, err error) *APIError {
	return NewWithDetails(http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT",
		fmt.Sprintf("%s could not be parsed into a table", filename), err.Error())
}

// DecodeFailedError creates a decode failure error with details
func DecodeFailedError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "DECODE_FAILED", "Document decoding failed", err.Error())
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// NewValidationErrors creates validation errors from multiple fields
func NewValidationErrors(errors []ValidationError) *APIError {
	return NewWithDetails(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		ValidationErrors{Errors: errors},
	)
}
