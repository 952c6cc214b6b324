package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("circuit breaker is half-open and busy")
)

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerHalfOpen
	BreakerOpen
)

// String returns the string representation of the state
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerHalfOpen:
		return "half-open"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// BreakerSettings configures a circuit breaker
type BreakerSettings struct {
	// MaxRequests is the number of trial calls let through while half-open.
	// That many consecutive successes close the circuit again.
	MaxRequests uint32
	// Interval clears the counts periodically while closed. Zero keeps them
	// until the state changes.
	Interval time.Duration
	// Timeout is how long the circuit stays open before a trial call
	Timeout time.Duration
	// ReadyToTrip decides, after each failure while closed, whether to open
	ReadyToTrip func(counts Counts) bool
	// OnStateChange is called whenever the state changes, with the lock held
	OnStateChange func(name string, from BreakerState, to BreakerState)
	// Now is the clock; nil uses time.Now
	Now func() time.Time
}

// ConsecutiveFailures returns a ReadyToTrip that opens after n failures in a row
func ConsecutiveFailures(n uint32) func(Counts) bool {
	return func(c Counts) bool {
		return c.ConsecutiveFailures >= n
	}
}

// Counts holds the call statistics of the current period
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker fails calls fast while a collaborator keeps failing. Unlike
// Policy it is safe for concurrent use.
type Breaker struct {
	name     string
	settings BreakerSettings

	mu         sync.Mutex
	state      BreakerState
	counts     Counts
	expiry     time.Time
	generation uint64
}

// NewBreaker creates a closed circuit breaker
func NewBreaker(name string, settings BreakerSettings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = ConsecutiveFailures(5)
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    BreakerClosed,
	}
	b.resetPeriod(settings.Now())
	return b
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(b.settings.Now())
}

// Counts returns a copy of the current counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Execute runs fn unless the circuit is open. A non-nil error from fn
// counts as a failure and is returned unchanged.
func (b *Breaker) Execute(fn func() error) error {
	generation, err := b.beforeCall()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterCall(generation, false)
			panic(e)
		}
	}()

	err = fn()
	b.afterCall(generation, err == nil)
	return err
}

func (b *Breaker) beforeCall() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(b.settings.Now()) {
	case BreakerOpen:
		return b.generation, ErrCircuitOpen
	case BreakerHalfOpen:
		if b.counts.Requests >= b.settings.MaxRequests {
			return b.generation, ErrTooManyRequests
		}
	}

	b.counts.Requests++
	return b.generation, nil
}

func (b *Breaker) afterCall(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Now()
	state := b.currentState(now)
	if b.generation != before {
		// Result belongs to a finished period
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == BreakerHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.setState(BreakerClosed, now)
		}
		return
	}

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case BreakerClosed:
		if b.settings.ReadyToTrip(b.counts) {
			b.setState(BreakerOpen, now)
		}
	case BreakerHalfOpen:
		b.setState(BreakerOpen, now)
	}
}

// currentState advances time-based transitions; mu is held
func (b *Breaker) currentState(now time.Time) BreakerState {
	switch b.state {
	case BreakerClosed:
		if !b.expiry.IsZero() && !now.Before(b.expiry) {
			b.resetPeriod(now)
		}
	case BreakerOpen:
		if !now.Before(b.expiry) {
			b.setState(BreakerHalfOpen, now)
		}
	}
	return b.state
}

func (b *Breaker) setState(state BreakerState, now time.Time) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	b.resetPeriod(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// resetPeriod starts a new counting period for the current state
func (b *Breaker) resetPeriod(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case BreakerClosed:
		if b.settings.Interval > 0 {
			b.expiry = now.Add(b.settings.Interval)
		} else {
			b.expiry = time.Time{}
		}
	case BreakerOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case BreakerHalfOpen:
		b.expiry = time.Time{}
	}
}
