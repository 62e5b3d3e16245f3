package validate

// Exports for testing internal repair steps.

var (
	Strip          = strip
	CloseTruncated = closeTruncated
	CleanJSON      = cleanJSON
	CanonicalKey   = canonicalKey
	Similarity     = similarity
)
