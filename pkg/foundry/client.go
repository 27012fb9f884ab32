// Package foundry is the resilient HTTP client for the remote inference service.
//
// A Client is created uninitialized. Init loads and validates a Connection from
// its ConfigSource; every Request made before a successful Init fails with
// ErrNotInitialized. Each logical request is retried with exponential backoff
// on transient failures (429/502/503/504, attempt timeouts, connection resets
// and refusals, DNS lookups) and returned immediately on everything else.
package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"interviewer/pkg/config"
	"interviewer/pkg/limiter"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
)

// RequestOptions describes one logical request.
type RequestOptions struct {
	Method  string            // Defaults to GET
	Body    any               // Serialized as JSON when non-nil
	Headers map[string]string // Merged before the fixed headers
}

// Response is a successful (status < 400) foundry response.
type Response struct {
	Status int
	Data   any    // Decoded JSON, nil when the body is empty or not JSON
	Raw    []byte // Undecoded body
	Header http.Header
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if len(r.Raw) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// HealthStatus is the outcome of ValidateConnection.
type HealthStatus struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CompletionOptions configures CompleteText.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its Timeout should be zero;
// the per-attempt timeout comes from the Connection.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithRandom sets the jitter source, returning values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(c *Client) { c.random = f }
}

// Client talks to the foundry service.
//
//nolint:govet // Logical field grouping preferred over memory alignment
type Client struct {
	source     ConfigSource
	httpClient *http.Client
	recorder   metrics.Recorder
	logger     *logx.Logger
	sleep      Sleeper
	random     func() float64
	now        func() time.Time

	initMu  sync.Mutex // serializes Init
	mu      sync.RWMutex
	conn    *config.Connection
	breaker *Breaker
	limiter *limiter.Limiter
}

// New creates an uninitialized client.
func New(source ConfigSource, opts ...Option) *Client {
	c := &Client{
		source:     source,
		httpClient: &http.Client{},
		recorder:   metrics.Nop(),
		logger:     logx.NewLogger("foundry"),
		sleep:      contextSleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init loads and validates the configuration. Without forceRefresh an
// initialized client returns immediately. A failed load never replaces a
// previously validated configuration.
func (c *Client) Init(ctx context.Context, forceRefresh bool) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if !forceRefresh && c.IsInitialized() {
		return nil
	}
	if c.source == nil {
		return fmt.Errorf("foundry client has no configuration source")
	}

	conn, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load foundry configuration: %w", err)
	}
	if err := conn.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = &conn
	c.breaker = NewBreaker(conn.CircuitBreaker)
	c.limiter = limiter.New(conn.Limits)
	c.mu.Unlock()

	c.logger.Info("Initialized foundry client for %s (timeout %v, max retries %d)",
		conn.BaseURL(), conn.Timeout, conn.Retry.MaxRetries)
	return nil
}

// IsInitialized reports whether a validated configuration is loaded.
func (c *Client) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Connection returns a copy of the active configuration.
func (c *Client) Connection() (config.Connection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return config.Connection{}, false
	}
	return *c.conn, true
}

// BreakerState returns the breaker state, or Closed when no breaker is configured.
func (c *Client) BreakerState() BreakerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.breaker == nil {
		return Closed
	}
	return c.breaker.State()
}

// LimiterStatus reports the request limiter, or an unlimited status when
// no limits are configured.
func (c *Client) LimiterStatus() limiter.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limiter.Status()
}

func (c *Client) snapshot() (*config.Connection, *Breaker) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn, c.breaker
}

func (c *Client) currentLimiter() *limiter.Limiter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limiter
}

// Request issues one logical request, retrying transient failures.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	conn, breaker := c.snapshot()
	if conn == nil {
		return nil, ErrNotInitialized
	}

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := joinURL(conn.BaseURL(), path)

	var payload []byte
	if opts.Body != nil {
		var err error
		if payload, err = json.Marshal(opts.Body); err != nil {
			return nil, &RequestError{Kind: KindEncode, Method: method, Path: path, Err: err}
		}
	}
	header := buildHeader(conn, opts.Headers)

	if breaker != nil && !breaker.Allow() {
		return nil, &RequestError{Kind: KindCircuitOpen, Method: method, Path: path, Err: ErrCircuitOpen}
	}

	lim := c.currentLimiter()
	policy := NewPolicy(conn.Retry, c.random)
	start := c.now()
	var last *RequestError
	attempts := 0

	for attempt := 0; attempt < policy.Attempts(); attempt++ {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			c.recorder.ObserveRetry(path, last.reason(), delay)
			c.logger.Warn("Retrying %s %s after %s (attempt %d/%d, waiting %v)",
				method, path, last.reason(), attempt+1, policy.Attempts(), delay)

			if err := c.sleep(ctx, delay); err != nil {
				canceled := &RequestError{Kind: KindCanceled, Method: method, Path: path, Attempts: attempts, Err: err}
				c.finish(conn, breaker, start, method, path, attempts, canceled, nil)
				return nil, canceled
			}
		}

		release, err := lim.Acquire(ctx)
		if err != nil {
			canceled := &RequestError{Kind: KindCanceled, Method: method, Path: path, Attempts: attempts, Err: err}
			c.finish(conn, breaker, start, method, path, attempts, canceled, nil)
			return nil, canceled
		}

		attempts++
		logx.Debug(ctx, "foundry", "%s %s attempt %d", method, url, attempts)
		resp, reqErr := c.attempt(ctx, conn, method, url, path, payload, header)
		release()
		if reqErr == nil {
			c.finish(conn, breaker, start, method, path, attempts, nil, resp)
			return resp, nil
		}
		reqErr.Attempts = attempts
		last = reqErr

		if !reqErr.Retryable() {
			c.finish(conn, breaker, start, method, path, attempts, reqErr, nil)
			return nil, reqErr
		}
	}

	exhausted := &RequestError{
		Kind:       KindExhausted,
		Method:     method,
		Path:       path,
		StatusCode: last.StatusCode,
		Code:       last.Code,
		Attempts:   attempts,
		Body:       last.Body,
		Err:        last,
	}
	c.logger.Error("%s", exhausted.Error())
	c.finish(conn, breaker, start, method, path, attempts, exhausted, nil)
	return nil, exhausted
}

// attempt performs a single HTTP call under the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, conn *config.Connection, method, url, path string,
	payload []byte, header http.Header,
) (*Response, *RequestError) {
	attemptCtx, cancel := context.WithTimeout(ctx, conn.Timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, url, body)
	if err != nil {
		return nil, &RequestError{Kind: KindEncode, Method: method, Path: path, Err: err}
	}
	req.Header = header.Clone()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, attemptCtx, method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(method, path, resp.StatusCode, raw)
	}

	out := &Response{Status: resp.StatusCode, Raw: raw, Header: resp.Header}
	if len(bytes.TrimSpace(raw)) > 0 {
		var data any
		if json.Unmarshal(raw, &data) == nil {
			out.Data = data
		}
	}
	return out, nil
}

// finish reports the logical request to the breaker, the recorder and the slow-request log.
func (c *Client) finish(conn *config.Connection, breaker *Breaker, start time.Time, method, path string,
	attempts int, reqErr *RequestError, resp *Response,
) {
	elapsed := c.now().Sub(start)

	obs := metrics.RequestObservation{Method: method, Path: path, Attempts: attempts, Duration: elapsed}
	if resp != nil {
		obs.Status = resp.Status
	}
	if reqErr != nil {
		obs.Status = reqErr.StatusCode
		obs.ErrorKind = string(reqErr.Kind)
	}
	c.recorder.ObserveRequest(obs)

	if breaker != nil && (reqErr == nil || reqErr.Kind != KindCanceled) {
		breaker.Record(reqErr == nil || !countsAgainstBreaker(reqErr))
	}

	if conn.SlowRequestThreshold > 0 && elapsed > conn.SlowRequestThreshold {
		c.logger.Warn("Slow foundry request: took %v (threshold %v)", elapsed, conn.SlowRequestThreshold)
	}
}

// countsAgainstBreaker reports whether a failure indicates service trouble
// rather than a caller mistake.
func countsAgainstBreaker(e *RequestError) bool {
	switch e.Kind {
	case KindExhausted, KindTimeout, KindNetwork:
		return true
	case KindStatus:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// ValidateConnection initializes the client if needed and probes the health
// path. 404 counts as healthy: the service answered.
func (c *Client) ValidateConnection(ctx context.Context) HealthStatus {
	if err := c.Init(ctx, false); err != nil {
		return HealthStatus{OK: false, Error: err.Error()}
	}
	conn, _ := c.snapshot()

	resp, err := c.Request(ctx, conn.HealthPath, RequestOptions{Method: http.MethodGet})
	if err == nil {
		return HealthStatus{OK: true, Status: resp.Status}
	}

	status := StatusCode(err)
	if status == http.StatusNotFound {
		return HealthStatus{OK: true, Status: status}
	}
	c.logger.Warn("Foundry health check failed: %v", err)
	return HealthStatus{OK: false, Status: status, Error: err.Error()}
}

// CompleteText is not supported by this client.
func (c *Client) CompleteText(_ context.Context, _ string, _ CompletionOptions) (string, error) {
	return "", fmt.Errorf("foundry: text completion: %w", ErrNotImplemented)
}

// buildHeader merges caller headers with the fixed set, which always wins.
func buildHeader(conn *config.Connection, extra map[string]string) http.Header {
	header := make(http.Header, len(extra)+3)
	for k, v := range extra {
		header.Set(k, v)
	}
	header.Set("Content-Type", "application/json")
	header.Set(conn.CredentialHeader, conn.APIKey)
	header.Set("User-Agent", conn.UserAgent)
	return header
}

func joinURL(base, path string) string {
	return base + "/" + strings.TrimLeft(path, "/")
}

// AsRequestError returns the RequestError in err's chain.
func AsRequestError(err error) (*RequestError, bool) {
	var rErr *RequestError
	ok := errors.As(err, &rErr)
	return rErr, ok
}
