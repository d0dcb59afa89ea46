package services

import "errors"

// Service-level errors surfaced to the transport layer.
var (
	// Upload errors
	ErrMissingFile     = errors.New("no file provided")
	ErrInvalidFileType = errors.New("file must be a CSV or XLSX")

	// Auth errors
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
