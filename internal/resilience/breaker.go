// Package resilience guards calls to external services such as object storage.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the position of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and rejects calls for
// cooldown. After that a single probe call is let through: success closes the
// circuit, failure opens it again.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return NewNamedBreaker("", maxFailures, cooldown)
}

// NewNamedBreaker creates a closed circuit breaker whose state changes are
// logged under name.
func NewNamedBreaker(name string, maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{name: name, maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Execute runs fn unless the circuit is open. Errors marked with Neutral and
// context cancellations do not count as failures.
func (b *Breaker) Execute(fn func() error) error {
	if !b.acquire() {
		return ErrCircuitOpen
	}
	err := fn()
	var n neutralError
	switch {
	case errors.As(err, &n):
		b.releaseNeutral()
		return n.err
	case errors.Is(err, context.Canceled):
		b.releaseNeutral()
		return err
	}
	b.release(err)
	return err
}

// Neutral marks err as caused by the caller rather than the guarded service.
// Execute returns the unwrapped err and leaves the breaker state unchanged.
func Neutral(err error) error {
	if err == nil {
		return nil
	}
	return neutralError{err: err}
}

type neutralError struct{ err error }

func (e neutralError) Error() string { return e.err.Error() }
func (e neutralError) Unwrap() error { return e.err }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.failures = 0
		b.transition(StateClosed)
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// releaseNeutral ends a call without recording its outcome. A half-open
// circuit admits the next probe.
func (b *Breaker) releaseNeutral() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	slog.Warn("circuit breaker state change", "breaker", b.name, "from", b.state.String(), "to", to.String(), "failures", b.failures)
	b.state = to
}
