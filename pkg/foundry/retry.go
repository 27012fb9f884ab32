package foundry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"interviewer/pkg/config"
)

// Policy computes backoff delays for one logical request.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config config.RetryPolicy
	random func() float64
}

// NewPolicy creates a policy. A nil random source uses math/rand.
func NewPolicy(cfg config.RetryPolicy, random func() float64) *Policy {
	if random == nil {
		random = rand.Float64
	}
	return &Policy{Config: cfg, random: random}
}

// Attempts is the total number of calls a logical request may make.
func (p *Policy) Attempts() int {
	return p.Config.MaxRetries + 1
}

// BaseDelay returns min(BaseDelay * 2^attempt, MaxDelay) without jitter.
// attempt is the zero-based index of the attempt that just failed.
func (p *Policy) BaseDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	raw := float64(p.Config.BaseDelay) * math.Pow(2, float64(attempt))
	if raw >= float64(p.Config.MaxDelay) {
		return p.Config.MaxDelay
	}
	return time.Duration(raw)
}

// Delay returns BaseDelay(attempt) with symmetric jitter applied.
func (p *Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay(attempt)
	if p.Config.JitterFactor <= 0 || delay <= 0 {
		return delay
	}
	// Scale by a factor in [1-j, 1+j).
	scale := 1 + p.Config.JitterFactor*(2*p.random()-1)
	return time.Duration(float64(delay) * scale)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// contextSleep is the default Sleeper.
func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
