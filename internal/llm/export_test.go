package llm

// Exports for testing.

var (
	WithChatCompleter = withChatCompleter
	Classify          = classify
	EstimateTokens    = estimateTokens
)
