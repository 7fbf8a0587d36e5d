package notifications

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

// breaker opens after threshold consecutive failures, rejects calls for
// cooldown, then admits up to probes trial calls. A trial success closes it
// and a trial failure opens it again.
type breaker struct {
	threshold int
	cooldown  time.Duration
	probes    int

	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
	inFlight int
	now      func() time.Time

	onChange func(from, to breakerState)
}

func newBreaker(threshold int, cooldown time.Duration, probes int) *breaker {
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		probes:    probes,
		state:     stateClosed,
		now:       time.Now,
	}
}

// admit reports whether a call may proceed. Every admitted call must be
// followed by exactly one record.
func (b *breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.moveTo(stateHalfOpen)
	}

	if b.state == stateHalfOpen {
		if b.inFlight >= b.probes {
			return false
		}
		b.inFlight++
	}

	return true
}

func (b *breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	probe := b.state == stateHalfOpen
	if probe && b.inFlight > 0 {
		b.inFlight--
	}

	if err == nil {
		b.failures = 0
		b.moveTo(stateClosed)
		return
	}

	b.failures++
	if probe || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.moveTo(stateOpen)
	}
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// moveTo must be called with mu held.
func (b *breaker) moveTo(next breakerState) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if next != stateHalfOpen {
		b.inFlight = 0
	}
	if b.onChange != nil {
		b.onChange(prev, next)
	}
}
