package llm

import "errors"

// ErrEmptyAPIKey indicates that the API key was not provided.
var ErrEmptyAPIKey = errors.New("API key is required")

// ErrPromptTooLong indicates the composed prompt exceeds the input token budget.
var ErrPromptTooLong = errors.New("prompt exceeds input token budget")

// ErrNoCompletion indicates the endpoint answered without any choice.
var ErrNoCompletion = errors.New("no completion in response")
