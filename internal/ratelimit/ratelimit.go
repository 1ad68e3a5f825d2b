package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket shared by every request to a hosted model API.
type Limiter struct {
	mu       sync.Mutex // protect access to lastTime and tokens
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int

	now func() time.Time
}

// New creates a Limiter for the given number of requests over the provided
// time window. E.g. New(20, time.Minute) allows 20 analyses a minute. A
// non-positive rate or window returns nil, and a nil Limiter never blocks.
func New(rate int, window time.Duration) *Limiter {
	if rate <= 0 || window <= 0 {
		return nil
	}

	return &Limiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
		now:      time.Now,
	}
}

// Acquire returns nil if work can proceed. If the provided context is Done
// Acquire will return context.Err(). If the bucket is empty, Acquire will sleep
// until at least one token is available.
func (rl *Limiter) Acquire(ctx context.Context) error {
	if rl == nil {
		return nil
	}

	for {
		if ok := rl.tryAcquire(); ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.window / time.Duration(rl.rate)):
			// The bucket is empty. Assuming tokens arrive evenly across the
			// window, 1/Nth of it is enough for one to accumulate.
		}
	}
}

func (rl *Limiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastTime)

	// Refill in proportion to the time since the last refill. lastTime only
	// moves once a whole token was added, otherwise frequent callers would
	// round every refill down to zero.
	added := int(elapsed.Nanoseconds() * int64(rl.rate) / rl.window.Nanoseconds())
	if added > 0 {
		rl.tokens = min(rl.tokens+added, rl.rate)
		rl.lastTime = now
	}
	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}
