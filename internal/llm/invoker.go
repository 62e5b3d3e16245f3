// Package llm drives the chat-completion endpoint for one analysis run.
// An Invoker performs exactly one request per call; retries belong to the
// calling workflow.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/guidematrix/internal/apierr"
)

// Endpoint defaults.
const (
	DeepSeekBaseURL      = "https://api.deepseek.com/v1"
	DefaultDeepSeekModel = "deepseek-chat"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// Generation defaults: low temperature for repeatable extraction and a large
// output budget so a full matrix is not truncated.
const (
	DefaultTemperature    float32 = 0.2
	DefaultMaxTokens              = 16000
	defaultMaxInputTokens         = 100000
	defaultCharsPerToken          = 3
	defaultHTTPTimeout            = 10 * time.Minute
)

// Request is one system + user message pair.
type Request struct {
	System string
	Prompt string
}

// Invoker sends one prompt and returns the first choice's raw content.
// Errors are classified with the apierr kind sentinels.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// chatCompleter is implemented by *openai.Client.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance check.
var _ Invoker = (*ChatInvoker)(nil)

// ChatInvoker calls an OpenAI-compatible chat-completion API.
type ChatInvoker struct {
	client         chatCompleter
	baseURL        string
	model          string
	temperature    float32
	maxTokens      int
	maxInputTokens int
	httpClient     *http.Client
}

// Option configures a ChatInvoker.
type Option func(*ChatInvoker)

// WithBaseURL targets an OpenAI-compatible endpoint (DeepSeek, proxies, tests).
func WithBaseURL(u string) Option {
	return func(c *ChatInvoker) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *ChatInvoker) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *ChatInvoker) {
		if t >= 0 {
			c.temperature = t
		}
	}
}

// WithMaxTokens sets the output token budget.
func WithMaxTokens(n int) Option {
	return func(c *ChatInvoker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithMaxInputTokens sets the estimated input token budget.
func WithMaxInputTokens(n int) Option {
	return func(c *ChatInvoker) {
		if n > 0 {
			c.maxInputTokens = n
		}
	}
}

// WithHTTPClient sets the HTTP client used by the API client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ChatInvoker) {
		c.httpClient = hc
	}
}

// withChatCompleter replaces the API client (for testing).
func withChatCompleter(cc chatCompleter) Option {
	return func(c *ChatInvoker) {
		c.client = cc
	}
}

// NewChatInvoker creates an invoker for the given API key.
// A missing key or a malformed base URL is a configuration error.
func NewChatInvoker(apiKey string, opts ...Option) (*ChatInvoker, error) {
	c := &ChatInvoker{
		model:          DefaultOpenAIModel,
		temperature:    DefaultTemperature,
		maxTokens:      DefaultMaxTokens,
		maxInputTokens: defaultMaxInputTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client != nil {
		return c, nil
	}

	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: %w", apierr.ErrConfiguration, ErrEmptyAPIKey)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, apierr.ErrConfiguration)
		}
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	cfg.HTTPClient = c.httpClient
	c.client = openai.NewClientWithConfig(cfg)
	return c, nil
}

// Model returns the configured model name.
func (c *ChatInvoker) Model() string {
	return c.model
}

// BaseURL returns the configured endpoint, or "" for the OpenAI default.
func (c *ChatInvoker) BaseURL() string {
	return c.baseURL
}

// Invoke sends one chat-completion request.
// Returns ErrPromptTooLong before any network call when the estimated input
// exceeds the budget.
func (c *ChatInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	estimated := estimateTokens(req.System) + estimateTokens(req.Prompt)
	if estimated > c.maxInputTokens {
		return "", fmt.Errorf("prompt too long (%dK tokens estimated, max %dK): %w",
			estimated/1000, c.maxInputTokens/1000, ErrPromptTooLong)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", apierr.ErrUpstreamStatus, ErrNoCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

// estimateTokens uses len/3, conservative for non-English transcripts.
func estimateTokens(text string) int {
	return len(text) / defaultCharsPerToken
}

// classify maps client errors to apierr sentinels. Every returned error
// wraps exactly one kind sentinel, except caller cancellation which is
// returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return classifyStatus(reqErr.HTTPStatusCode, msg)
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w: %w", apierr.ErrConnectivity, apierr.ErrTimeout)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%v: %w: %w", err, apierr.ErrConnectivity, apierr.ErrTimeout)
		}
		return fmt.Errorf("%v: %w", err, apierr.ErrConnectivity)
	}

	// Anything else came back from the endpoint but could not be used.
	return fmt.Errorf("%v: %w", err, apierr.ErrUpstreamStatus)
}

func classifyStatus(code int, msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case code == http.StatusNotFound:
		return fmt.Errorf("model or endpoint not found (%s): %w", msg, apierr.ErrConfiguration)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrAuthFailed)
	case code == http.StatusPaymentRequired:
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrQuotaExceeded)
	case code == http.StatusTooManyRequests:
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") ||
			strings.Contains(lower, "insufficient") {
			return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrQuotaExceeded)
		}
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrRateLimit)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrTimeout)
	case code >= 500:
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrServerError)
	case code == http.StatusBadRequest &&
		(strings.Contains(lower, "context_length") || strings.Contains(lower, "maximum context length")):
		return fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, ErrPromptTooLong)
	}
	return fmt.Errorf("status %d: %s: %w", code, msg, apierr.ErrUpstreamStatus)
}
