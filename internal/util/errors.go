package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrUnsupported indicates a file format or operation is not supported
	ErrUnsupported = errors.New("unsupported")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnrecognized indicates a filename matched none of the parse rules
	ErrUnrecognized = errors.New("format not recognized")

	// ErrInvalidField indicates an unknown tag field name
	ErrInvalidField = errors.New("invalid tag field")
)
