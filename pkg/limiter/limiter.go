// Package limiter throttles foundry traffic with a per-minute request bucket
// and a bound on requests in flight.
package limiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"interviewer/pkg/config"
)

var (
	// ErrRateLimit is returned when the per-minute bucket is empty.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrConcurrencyLimit is returned when every in-flight slot is taken.
	ErrConcurrencyLimit = errors.New("concurrency limit exceeded")
)

// Status is a point-in-time view of a limiter.
type Status struct {
	Tokens   int `json:"tokens"`    // Requests left in the current minute, -1 when unlimited
	InFlight int `json:"in_flight"` // Requests holding a slot
}

// Limiter enforces config.Limits. A nil *Limiter allows everything.
//
//nolint:govet // Struct layout optimization not critical for this use case
type Limiter struct {
	maxPerMinute int
	maxInFlight  int
	now          func() time.Time

	mu         sync.Mutex
	tokens     int
	inFlight   int
	lastRefill time.Time
	freed      chan struct{} // closed and replaced when a slot is released
}

// New creates a limiter for cfg, or nil when cfg sets no limit.
func New(cfg config.Limits) *Limiter {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg config.Limits, now func() time.Time) *Limiter {
	if cfg.MaxConcurrent <= 0 && cfg.RequestsPerMinute <= 0 {
		return nil
	}
	return &Limiter{
		maxPerMinute: cfg.RequestsPerMinute,
		maxInFlight:  cfg.MaxConcurrent,
		now:          now,
		tokens:       cfg.RequestsPerMinute, // Start with full bucket
		lastRefill:   now(),
		freed:        make(chan struct{}),
	}
}

// TryAcquire takes a slot and a token without waiting. The returned release
// must be called once the request finishes; extra calls are ignored.
func (l *Limiter) TryAcquire() (func(), error) {
	release, _, _, err := l.tryAcquire()
	return release, err
}

// Acquire waits until a slot and a token are available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	for {
		release, freed, refillIn, err := l.tryAcquire()
		if err == nil {
			return release, nil
		}

		var timer *time.Timer
		var refilled <-chan time.Time
		if errors.Is(err, ErrRateLimit) {
			timer = time.NewTimer(refillIn)
			refilled = timer.C
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-freed:
			err = nil
		case <-refilled:
			err = nil
		}
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			return nil, err
		}
	}
}

// tryAcquire also returns what a waiter should watch: the slot release
// channel and the time until the next refill.
func (l *Limiter) tryAcquire() (func(), <-chan struct{}, time.Duration, error) {
	if l == nil {
		return func() {}, nil, 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.maxInFlight > 0 && l.inFlight >= l.maxInFlight {
		return nil, l.freed, 0, ErrConcurrencyLimit
	}
	if l.maxPerMinute > 0 {
		if l.tokens < 1 {
			wait := l.lastRefill.Add(time.Minute).Sub(l.now())
			return nil, l.freed, max(wait, 0), ErrRateLimit
		}
		l.tokens--
	}
	l.inFlight++

	var once sync.Once
	return func() { once.Do(l.release) }, nil, 0, nil
}

func (l *Limiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight--
	close(l.freed)
	l.freed = make(chan struct{})
}

// Status returns the remaining tokens and the requests in flight.
func (l *Limiter) Status() Status {
	if l == nil {
		return Status{Tokens: -1}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	s := Status{Tokens: l.tokens, InFlight: l.inFlight}
	if l.maxPerMinute <= 0 {
		s.Tokens = -1
	}
	return s
}

func (l *Limiter) refill() {
	if l.maxPerMinute <= 0 {
		return
	}
	elapsed := l.now().Sub(l.lastRefill)
	if elapsed < time.Minute {
		return
	}

	// Each whole minute restores a full bucket's worth, capped at the maximum.
	minutes := int(elapsed / time.Minute)
	l.tokens = min(l.tokens+minutes*l.maxPerMinute, l.maxPerMinute)
	l.lastRefill = l.lastRefill.Add(time.Duration(minutes) * time.Minute)
}
