package store

import "errors"

// Sentinel errors for result storage.
var (
	// ErrNotFound indicates no analysis exists for the key.
	ErrNotFound = errors.New("analysis not found")

	// ErrInvalidKey indicates a blank project or user id.
	ErrInvalidKey = errors.New("invalid store key")

	// ErrUnknownBackend indicates an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")

	// ErrInvalidData indicates analysis data that is not a JSON object.
	ErrInvalidData = errors.New("analysis data must be a JSON object")
)
