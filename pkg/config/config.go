// Package config defines the foundry connection configuration, its defaults and
// its validation rules.
//
// A Connection is immutable once loaded. Validation reports the first problem
// found as a *ValidationError carrying an enumerated ValidationCode, so callers
// can branch on the cause without parsing messages.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default connection values.
const (
	DefaultCredentialHeader     = "X-API-Key"
	DefaultUserAgent            = "interviewer-foundry-client/1.0"
	DefaultTimeout              = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultBaseDelay            = 1 * time.Second
	DefaultMaxDelay             = 10 * time.Second
	DefaultJitterFactor         = 0.1
	DefaultSlowRequestThreshold = 5 * time.Second
	DefaultHealthPath           = "/"
	DefaultBreakerCooldown      = 30 * time.Second
)

// RetryPolicy bounds the exponential backoff applied to retryable failures.
type RetryPolicy struct {
	MaxRetries   int           `json:"max_retries"`   // Retries after the first attempt
	BaseDelay    time.Duration `json:"base_delay"`    // Delay before the first retry
	MaxDelay     time.Duration `json:"max_delay"`     // Upper bound on any single delay
	JitterFactor float64       `json:"jitter_factor"` // Symmetric jitter as a fraction of the delay
}

// CircuitBreaker configures the optional breaker in front of the client.
// A zero FailureThreshold disables it.
type CircuitBreaker struct {
	FailureThreshold int           `json:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// Limits throttles outgoing requests. A zero value disables that limit.
type Limits struct {
	MaxConcurrent     int `json:"max_concurrent"`
	RequestsPerMinute int `json:"requests_per_minute"`
}

// Connection is the validated configuration for one foundry endpoint.
//
//nolint:govet // grouped by concern
type Connection struct {
	Endpoint             string         `json:"endpoint"`
	APIKey               string         `json:"-"`
	CredentialHeader     string         `json:"credential_header"`
	UserAgent            string         `json:"user_agent"`
	HealthPath           string         `json:"health_path"`
	Timeout              time.Duration  `json:"timeout"`
	SlowRequestThreshold time.Duration  `json:"slow_request_threshold"`
	Retry                RetryPolicy    `json:"retry"`
	CircuitBreaker       CircuitBreaker `json:"circuit_breaker"`
	Limits               Limits         `json:"limits"`
}

// Default returns a Connection with every optional field populated.
func Default() Connection {
	return Connection{
		CredentialHeader:     DefaultCredentialHeader,
		UserAgent:            DefaultUserAgent,
		HealthPath:           DefaultHealthPath,
		Timeout:              DefaultTimeout,
		SlowRequestThreshold: DefaultSlowRequestThreshold,
		Retry: RetryPolicy{
			MaxRetries:   DefaultMaxRetries,
			BaseDelay:    DefaultBaseDelay,
			MaxDelay:     DefaultMaxDelay,
			JitterFactor: DefaultJitterFactor,
		},
		CircuitBreaker: CircuitBreaker{
			SuccessThreshold: 1,
			Cooldown:         DefaultBreakerCooldown,
		},
	}
}

// ValidationCode enumerates configuration problems.
type ValidationCode string

const (
	CodeMissingEndpoint    ValidationCode = "missing_endpoint"
	CodeMalformedEndpoint  ValidationCode = "malformed_endpoint"
	CodeUnsupportedScheme  ValidationCode = "unsupported_scheme"
	CodeMissingAPIKey      ValidationCode = "missing_api_key"
	CodeInvalidHeader      ValidationCode = "invalid_header"
	CodeInvalidTimeout     ValidationCode = "invalid_timeout"
	CodeInvalidRetryPolicy ValidationCode = "invalid_retry_policy"
	CodeInvalidBreaker     ValidationCode = "invalid_circuit_breaker"
	CodeInvalidLimits      ValidationCode = "invalid_limits"
)

// ValidationError reports why a Connection cannot be used.
type ValidationError struct {
	Code    ValidationCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s: %s", e.Code, e.Field, e.Message)
}

// IsValidationError reports whether err carries the given code.
func IsValidationError(err error, code ValidationCode) bool {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}

func invalid(code ValidationCode, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the connection and returns the first problem found.
func (c *Connection) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return invalid(CodeMissingEndpoint, "endpoint", "endpoint URL is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" {
		return invalid(CodeMalformedEndpoint, "endpoint", "%q is not an absolute URL", c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalid(CodeUnsupportedScheme, "endpoint", "scheme %q is not http or https", u.Scheme)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return invalid(CodeMissingAPIKey, "api_key", "credential is required")
	}
	if c.CredentialHeader == "" || http.CanonicalHeaderKey(c.CredentialHeader) == "Content-Type" ||
		http.CanonicalHeaderKey(c.CredentialHeader) == "User-Agent" {
		return invalid(CodeInvalidHeader, "credential_header", "%q cannot carry the credential", c.CredentialHeader)
	}
	if c.Timeout <= 0 {
		return invalid(CodeInvalidTimeout, "timeout", "must be positive, got %v", c.Timeout)
	}
	if c.SlowRequestThreshold < 0 {
		return invalid(CodeInvalidTimeout, "slow_request_threshold", "must not be negative, got %v", c.SlowRequestThreshold)
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if c.CircuitBreaker.FailureThreshold < 0 {
		return invalid(CodeInvalidBreaker, "circuit_breaker.failure_threshold", "must not be negative")
	}
	if c.CircuitBreaker.FailureThreshold > 0 && c.CircuitBreaker.SuccessThreshold <= 0 {
		return invalid(CodeInvalidBreaker, "circuit_breaker.success_threshold", "must be positive when the breaker is enabled")
	}
	if c.Limits.MaxConcurrent < 0 {
		return invalid(CodeInvalidLimits, "limits.max_concurrent", "must not be negative, got %d", c.Limits.MaxConcurrent)
	}
	if c.Limits.RequestsPerMinute < 0 {
		return invalid(CodeInvalidLimits, "limits.requests_per_minute", "must not be negative, got %d", c.Limits.RequestsPerMinute)
	}
	return nil
}

func (p *RetryPolicy) validate() error {
	switch {
	case p.MaxRetries < 0:
		return invalid(CodeInvalidRetryPolicy, "retry.max_retries", "must not be negative, got %d", p.MaxRetries)
	case p.BaseDelay < 0:
		return invalid(CodeInvalidRetryPolicy, "retry.base_delay", "must not be negative, got %v", p.BaseDelay)
	case p.MaxDelay < p.BaseDelay:
		return invalid(CodeInvalidRetryPolicy, "retry.max_delay", "%v is below base delay %v", p.MaxDelay, p.BaseDelay)
	case p.JitterFactor < 0 || p.JitterFactor >= 1:
		return invalid(CodeInvalidRetryPolicy, "retry.jitter_factor", "must be in [0, 1), got %v", p.JitterFactor)
	}
	return nil
}

// BaseURL returns the endpoint without a trailing slash.
func (c *Connection) BaseURL() string {
	return strings.TrimRight(c.Endpoint, "/")
}
