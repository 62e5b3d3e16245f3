// Package apierr provides the transport error taxonomy shared by LLM
// clients and their callers. Provider-specific failures are classified into
// these sentinels at the adapter boundary, so callers can tell a
// connectivity problem from an upstream rejection or a misconfigured
// endpoint without knowing which provider was used.
//
// Every classified error wraps exactly one kind sentinel (ErrConnectivity,
// ErrUpstreamStatus or ErrConfiguration) and optionally a finer sentinel:
//
//	fmt.Errorf("%s: %w: %w", msg, apierr.ErrUpstreamStatus, apierr.ErrRateLimit)
//
// Callers check with errors.Is(err, apierr.ErrConnectivity) etc.
package apierr

import "errors"

// Kind sentinels. Exactly one of these is wrapped by a classified error.
var (
	// ErrConnectivity indicates the endpoint could not be reached
	// (network failure, DNS, refused connection, timeout).
	ErrConnectivity = errors.New("cannot reach analysis endpoint")

	// ErrUpstreamStatus indicates the endpoint answered with a non-2xx status
	// or an unusable body.
	ErrUpstreamStatus = errors.New("analysis endpoint rejected the request")

	// ErrConfiguration indicates the endpoint is misconfigured: unknown
	// function or model, missing credentials, malformed base URL.
	ErrConfiguration = errors.New("analysis endpoint misconfigured")
)

// Finer sentinels, wrapped alongside a kind sentinel.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrServerError indicates a 5xx answer from the provider.
	ErrServerError = errors.New("server error")
)

// Kind names a transport failure class for presentation layers.
type Kind string

// Kind values returned by KindOf.
const (
	KindNone          Kind = ""
	KindConnectivity  Kind = "connectivity"
	KindUpstream      Kind = "upstream_status"
	KindConfiguration Kind = "configuration"
)

// KindOf reports which transport class err belongs to.
// Returns KindNone for nil or unclassified errors.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	case errors.Is(err, ErrUpstreamStatus):
		return KindUpstream
	}
	return KindNone
}

// IsRetryable reports whether a classified error is transient.
// Configuration, auth and quota failures never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrQuotaExceeded) {
		return false
	}
	return errors.Is(err, ErrConnectivity) || errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) || errors.Is(err, ErrServerError)
}
