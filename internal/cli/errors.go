package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrAPIKeyMissing indicates OPENAI_API_KEY environment variable is not set.
	ErrAPIKeyMissing = errors.New("OPENAI_API_KEY environment variable not set")

	// ErrDeepSeekKeyMissing indicates DEEPSEEK_API_KEY environment variable is not set.
	ErrDeepSeekKeyMissing = errors.New("DEEPSEEK_API_KEY environment variable not set")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrNoTranscripts indicates no transcript file was given.
	ErrNoTranscripts = errors.New("at least one transcript file is required")
)
