package resilience

import "time"

// Scheduler runs f after d and returns a function that cancels it.
// The cancel function reports whether the call was prevented.
type Scheduler func(d time.Duration, f func()) (cancel func() bool)

// AfterFunc is the Scheduler backed by time.AfterFunc
func AfterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}
