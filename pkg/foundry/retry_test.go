package foundry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interviewer/pkg/config"
)

func TestBaseDelayIsMonotonicAndCapped(t *testing.T) {
	policy := NewPolicy(config.RetryPolicy{MaxRetries: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}, nil)

	expected := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		2 * time.Second,
		2 * time.Second,
	}
	for attempt, want := range expected {
		assert.Equal(t, want, policy.BaseDelay(attempt), "attempt %d", attempt)
	}

	prev := time.Duration(0)
	for attempt := 0; attempt < 100; attempt++ {
		d := policy.BaseDelay(attempt)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, 2*time.Second)
		prev = d
	}
}

func TestDelayJitterBounds(t *testing.T) {
	cfg := config.RetryPolicy{BaseDelay: time.Second, MaxDelay: 10 * time.Second, JitterFactor: 0.1}

	low := NewPolicy(cfg, func() float64 { return 0 })
	high := NewPolicy(cfg, func() float64 { return 0.999999 })
	mid := NewPolicy(cfg, func() float64 { return 0.5 })

	assert.Equal(t, 900*time.Millisecond, low.Delay(0))
	assert.InDelta(t, float64(1100*time.Millisecond), float64(high.Delay(0)), float64(time.Millisecond))
	assert.Equal(t, time.Second, mid.Delay(0))

	random := NewPolicy(cfg, nil)
	for i := 0; i < 50; i++ {
		d := random.Delay(3)
		assert.GreaterOrEqual(t, d, 7200*time.Millisecond)
		assert.LessOrEqual(t, d, 8800*time.Millisecond)
	}
}

func TestPolicyAttempts(t *testing.T) {
	assert.Equal(t, 1, NewPolicy(config.RetryPolicy{}, nil).Attempts())
	assert.Equal(t, 4, NewPolicy(config.RetryPolicy{MaxRetries: 3}, nil).Attempts())
}

func TestContextSleep(t *testing.T) {
	require.NoError(t, contextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, contextSleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransportCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, CodeConnReset},
		{"eof", fmt.Errorf("post: %w", io.EOF), CodeConnReset},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, CodeConnRefused},
		{"dns", &net.DNSError{Err: "no such host", Name: "foundry.invalid", IsNotFound: true}, CodeNotFound},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, CodeTimedOut},
		{"tls", errors.New("tls: bad certificate"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, transportCode(tt.err))
		})
	}
}

func TestTransportErrorClassification(t *testing.T) {
	bg := context.Background()

	unknown := transportError(bg, bg, "GET", "/x", errors.New("tls: bad certificate"))
	assert.Equal(t, KindNetwork, unknown.Kind)
	assert.False(t, unknown.Retryable())

	refused := transportError(bg, bg, "GET", "/x", os.NewSyscallError("connect", syscall.ECONNREFUSED))
	assert.Equal(t, KindNetwork, refused.Kind)
	assert.True(t, refused.Retryable())

	expired, cancel := context.WithTimeout(bg, 0)
	defer cancel()
	<-expired.Done()
	timedOut := transportError(bg, expired, "GET", "/x", context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, timedOut.Kind)
	assert.True(t, timedOut.Retryable())

	parent, cancelParent := context.WithCancel(bg)
	cancelParent()
	canceled := transportError(parent, parent, "GET", "/x", context.Canceled)
	assert.Equal(t, KindCanceled, canceled.Kind)
	assert.False(t, canceled.Retryable())
}

func TestIsRetryableStatus(t *testing.T) {
	for _, s := range []int{429, 502, 503, 504} {
		assert.True(t, IsRetryableStatus(s), "%d", s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 500, 501} {
		assert.False(t, IsRetryableStatus(s), "%d", s)
	}
}
