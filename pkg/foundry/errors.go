package foundry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrNotInitialized is returned by calls made before a successful Init.
var ErrNotInitialized = errors.New("foundry client not initialized")

// ErrNotImplemented marks capabilities intentionally left unbuilt.
var ErrNotImplemented = errors.New("not implemented")

// Kind classifies a RequestError.
type Kind string

const (
	// KindTimeout is an attempt that hit the per-request timeout.
	KindTimeout Kind = "timeout"
	// KindNetwork is a transport failure before a response arrived.
	KindNetwork Kind = "network"
	// KindStatus is a response with a 4xx/5xx status.
	KindStatus Kind = "status"
	// KindExhausted wraps the last retryable failure once retries ran out.
	KindExhausted Kind = "exhausted"
	// KindCanceled is a caller context cancellation.
	KindCanceled Kind = "canceled"
	// KindCircuitOpen is a request rejected by the open circuit breaker.
	KindCircuitOpen Kind = "circuit_open"
	// KindEncode is a request body that could not be serialized.
	KindEncode Kind = "encode"
)

// Transport failure codes carried in RequestError.Code.
const (
	CodeConnReset   = "ECONNRESET"
	CodeConnRefused = "ECONNREFUSED"
	CodeNotFound    = "ENOTFOUND"
	CodeTimedOut    = "ETIMEDOUT"
)

//nolint:gochecknoglobals // fixed classification table
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

// IsRetryableStatus reports whether an HTTP status is treated as transient.
func IsRetryableStatus(status int) bool {
	return retryableStatus[status]
}

// RequestError describes a failed foundry request.
//
//nolint:govet // grouped by meaning
type RequestError struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int    // HTTP status when a response was received
	Code       string // Transport code such as ECONNRESET
	Attempts   int    // Attempts made for the logical request
	Body       []byte // Raw response body for status errors
	Err        error
	retryable  bool
}

func (e *RequestError) Error() string {
	target := fmt.Sprintf("%s %s", e.Method, e.Path)
	switch e.Kind {
	case KindExhausted:
		return fmt.Sprintf("foundry request %s failed after %d attempts: %s", target, e.Attempts, e.detail())
	case KindStatus:
		return fmt.Sprintf("foundry request %s: %s", target, e.detail())
	case KindCircuitOpen:
		return fmt.Sprintf("foundry request %s rejected: %v", target, e.Err)
	default:
		return fmt.Sprintf("foundry request %s: %s", target, e.detail())
	}
}

// detail renders the underlying failure with its status or transport code.
func (e *RequestError) detail() string {
	var last *RequestError
	if e.Kind == KindExhausted && errors.As(e.Err, &last) && last != e {
		return last.detail()
	}
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case e.Code != "" && e.Err != nil:
		return fmt.Sprintf("%s error (%s): %v", e.Kind, e.Code, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether this single failure may be retried.
// Exhausted, canceled and circuit-open errors are always terminal.
func (e *RequestError) Retryable() bool {
	return e.retryable
}

// reason is the metrics label for a retry caused by e.
func (e *RequestError) reason() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("status_%d", e.StatusCode)
	case e.Code != "":
		return e.Code
	default:
		return string(e.Kind)
	}
}

// IsKind reports whether err is a RequestError of the given kind.
func IsKind(err error, kind Kind) bool {
	var rErr *RequestError
	if errors.As(err, &rErr) {
		return rErr.Kind == kind
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var rErr *RequestError
	if errors.As(err, &rErr) {
		return rErr.StatusCode
	}
	return 0
}

func statusError(method, path string, status int, body []byte) *RequestError {
	return &RequestError{
		Kind:       KindStatus,
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       body,
		retryable:  IsRetryableStatus(status),
	}
}

// transportError classifies a failure that produced no response. attemptCtx
// is the per-attempt context and parent the caller's.
func transportError(parent, attemptCtx context.Context, method, path string, err error) *RequestError {
	rErr := &RequestError{Method: method, Path: path, Err: err}

	switch {
	case parent.Err() != nil:
		rErr.Kind = KindCanceled
		rErr.Err = fmt.Errorf("%w: %w", parent.Err(), err)
		return rErr
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		rErr.Kind = KindTimeout
		rErr.Code = CodeTimedOut
		rErr.retryable = true
		return rErr
	}

	rErr.Kind = KindNetwork
	rErr.Code = transportCode(err)
	rErr.retryable = rErr.Code != ""
	if rErr.Code == CodeTimedOut {
		rErr.Kind = KindTimeout
	}
	return rErr
}

// transportCode maps recognized transient network failures to a code, or "".
func transportCode(err error) string {
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeConnReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	case errors.As(err, &dnsErr):
		return CodeNotFound
	case errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimedOut
	default:
		return ""
	}
}
