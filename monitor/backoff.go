package monitor

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxBackoffExp caps the exponential growth at base * 2^5.
const maxBackoffExp = 5

// Backoff tracks consecutive poll failures for one provider and widens
// the poll interval accordingly: base * 2^min(failures, 5). Any
// successful cycle, changed or unchanged, narrows it back to base.
// Owned by a single poll loop, not safe for concurrent use.
type Backoff struct {
	base     time.Duration
	failures int
	current  time.Duration
	bo       *backoff.ExponentialBackOff
}

func NewBackoff(base time.Duration) *Backoff {
	// RandomizationFactor is 0 because the poll loop adds its own jitter
	// on top of the interval.
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     2 * base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         base * (1 << maxBackoffExp),
		MaxElapsedTime:      0, // never give up on a provider
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	bo.Reset()

	return &Backoff{
		base:    base,
		current: base,
		bo:      bo,
	}
}

// Failure records a failed cycle and widens the interval.
func (b *Backoff) Failure() {
	b.failures++
	b.current = b.bo.NextBackOff()
}

// Success resets to the healthy state and the base interval.
func (b *Backoff) Success() {
	b.failures = 0
	b.current = b.base
	b.bo.Reset()
}

// Interval is the current effective poll interval, before jitter.
func (b *Backoff) Interval() time.Duration {
	return b.current
}

// Failures is the current consecutive failure count.
func (b *Backoff) Failures() int {
	return b.failures
}
