package resilience

import (
	"errors"
	"time"
)

var (
	ErrAttemptsExhausted = errors.New("reconnect attempts exhausted")
)

// State represents the reconnection policy state
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateExhausted
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Settings configures the reconnection backoff
type Settings struct {
	// BaseDelay is multiplied by 2^n for attempt n
	BaseDelay time.Duration
	// MaxDelay caps every computed delay
	MaxDelay time.Duration
	// MaxAttempts is the number of retries before giving up. Zero disables retries.
	MaxAttempts int
	// OnStateChange is called whenever the state changes
	OnStateChange func(from State, to State, attempt int)
}

// DefaultSettings returns 1s base, 10s cap, three attempts
func DefaultSettings() Settings {
	return Settings{
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 3,
	}
}

// Policy decides whether and when to reopen a connection after an
// unexpected close. It is owned by one session and is not safe for
// concurrent use.
type Policy struct {
	settings Settings
	state    State
	attempt  int
}

// NewPolicy creates a reconnection policy with the given settings
func NewPolicy(settings Settings) *Policy {
	if settings.BaseDelay <= 0 {
		settings.BaseDelay = time.Second
	}
	if settings.MaxDelay < settings.BaseDelay {
		settings.MaxDelay = settings.BaseDelay
	}
	if settings.MaxAttempts < 0 {
		settings.MaxAttempts = 0
	}

	return &Policy{
		settings: settings,
		state:    StateIdle,
	}
}

// Delay returns min(base * 2^n, max) for attempt n
func (p *Policy) Delay(n int) time.Duration {
	d := p.settings.BaseDelay
	for i := 0; i < n; i++ {
		d *= 2
		if d >= p.settings.MaxDelay {
			return p.settings.MaxDelay
		}
	}
	return d
}

// Next records a failed connection and returns the delay before the next
// attempt. It returns ErrAttemptsExhausted once the budget is spent.
func (p *Policy) Next() (time.Duration, error) {
	if p.attempt >= p.settings.MaxAttempts {
		p.setState(StateExhausted)
		return 0, ErrAttemptsExhausted
	}

	p.attempt++
	p.setState(StateAttempting)
	return p.Delay(p.attempt), nil
}

// Reset is called after a successful open
func (p *Policy) Reset() {
	p.attempt = 0
	p.setState(StateIdle)
}

// Cancel abandons any scheduled attempt without counting it as a success.
// Used for manual disconnects and terminal session states.
func (p *Policy) Cancel() {
	p.attempt = 0
	p.setState(StateIdle)
}

// Attempt returns the number of the most recent attempt, zero when idle
func (p *Policy) Attempt() int {
	return p.attempt
}

// State returns the current state
func (p *Policy) State() State {
	return p.state
}

// Settings returns the effective settings
func (p *Policy) Settings() Settings {
	return p.settings
}

func (p *Policy) setState(state State) {
	if p.state == state && state != StateAttempting {
		return
	}

	prev := p.state
	p.state = state

	if p.settings.OnStateChange != nil {
		p.settings.OnStateChange(prev, state, p.attempt)
	}
}
