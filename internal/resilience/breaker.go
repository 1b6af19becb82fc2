// Package resilience provides reliability patterns for outbound provider calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while the
// breaker is open, or while a half-open trial call is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker guards one provider (payment gateway, email API). After
// maxFailures consecutive counted failures it rejects calls for cooldown,
// then lets a single trial call through. A successful trial closes it again; a
// failed one restarts the cooldown.
//
// Only errors the classifier accepts are counted. A provider rejecting
// bad input is still a healthy provider.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	counts      func(error) bool
	now         func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time // zero while closed
	trying   bool
}

// NewBreaker returns a closed breaker counting every error as a failure.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxFailures: max(maxFailures, 1),
		cooldown:    cooldown,
		counts:      func(error) bool { return true },
		now:         time.Now,
	}
}

// WithClassifier replaces the predicate deciding which errors are counted.
func (b *Breaker) WithClassifier(fn func(error) bool) *Breaker {
	b.mu.Lock()
	b.counts = fn
	b.mu.Unlock()
	return b
}

// Execute calls fn unless the circuit rejects it. fn's error is returned
// unchanged.
func (b *Breaker) Execute(fn func() error) error {
	trial, ok := b.admit()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if trial {
		b.trying = false
	}
	switch {
	case err != nil && b.counts(err):
		b.failures++
		if trial || b.failures >= b.maxFailures {
			b.openedAt = b.now()
		}
	default:
		b.failures = 0
		b.openedAt = time.Time{}
	}
	return err
}

// admit reports whether a call may proceed and whether it is the trial call.
func (b *Breaker) admit() (trial, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.openedAt.IsZero() {
		return false, true
	}
	if b.now().Sub(b.openedAt) < b.cooldown || b.trying {
		return false, false
	}
	b.trying = true
	return true, true
}

// State reports "closed", "open" or "half_open" for health output.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.openedAt.IsZero():
		return "closed"
	case b.trying || b.now().Sub(b.openedAt) >= b.cooldown:
		return "half_open"
	default:
		return "open"
	}
}

// RetryIn returns how long until the breaker admits a trial call. It is zero
// when calls are currently admitted.
func (b *Breaker) RetryIn() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openedAt.IsZero() {
		return 0
	}
	return max(b.cooldown-b.now().Sub(b.openedAt), 0)
}
