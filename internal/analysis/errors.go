package analysis

import "errors"

// Input errors. They are returned before any model call.
var (
	// ErrMissingConfig indicates the project configuration is absent.
	ErrMissingConfig = errors.New("project configuration is missing")

	// ErrNoDocuments indicates the run has no documents at all.
	ErrNoDocuments = errors.New("no documents to analyze")

	// ErrEmptyDocuments indicates every document is blank.
	ErrEmptyDocuments = errors.New("all documents are empty")
)

// Run errors.
var (
	// ErrRunInProgress indicates another run holds the (project, user) key.
	ErrRunInProgress = errors.New("an analysis is already running for this project and user")

	// ErrQualityRejected indicates strict mode refused a result with defects.
	ErrQualityRejected = errors.New("analysis rejected for quality defects")
)

// IsInputError reports whether err is one of the input errors.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrNoDocuments) ||
		errors.Is(err, ErrEmptyDocuments)
}
