// Package resilience implements the delivery protection layer: exponential
// backoff with full jitter, a tri-state circuit breaker, and a retry executor
// with pluggable error classification. The state held here is opaque to
// callers; they interact through Execute and the breaker's Allow/observe
// methods.
package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff computes retry and reconnect delay sequences. The unjittered delay
// doubles per attempt from Base up to Max; full jitter is then applied
// multiplicatively, so the result always lies in [computed, computed*2).
type Backoff struct {
	// Base is the unjittered delay for the first attempt.
	Base time.Duration
	// Max caps the unjittered delay.
	Max time.Duration

	// jitter returns a value in [0,1). Overridable in tests.
	jitter func() float64
}

// NewBackoff creates a calculator for the given delay window.
func NewBackoff(base, maxDelay time.Duration) *Backoff {
	return &Backoff{
		Base:   base,
		Max:    maxDelay,
		jitter: rand.Float64,
	}
}

// Delay returns the sleep before retrying the given attempt. Attempts are
// 1-based: attempt 1 yields the base delay.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	computed := b.computed(attempt)

	return computed + time.Duration(b.jitter()*float64(computed))
}

// computed returns the unjittered delay: min(base * 2^(attempt-1), max).
func (b *Backoff) computed(attempt int) time.Duration {
	delay := b.Base

	for range attempt - 1 {
		delay *= 2
		if delay >= b.Max || delay < 0 {
			return b.Max
		}
	}

	if delay > b.Max {
		return b.Max
	}

	return delay
}
