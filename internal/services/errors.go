package services

import "errors"

// Request-level errors returned before the decode pipeline starts.
var (
	// ErrNoFilesProvided indicates a decode request without any upload.
	ErrNoFilesProvided = errors.New("no files provided")

	// ErrTooManyFiles indicates a decode request exceeding the per-request
	// upload limit.
	ErrTooManyFiles = errors.New("too many files")
)
