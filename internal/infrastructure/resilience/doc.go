/*
Package resilience provides the reconnection policy for chat sessions and
a circuit breaker for the REST collaborator.

# Overview

A session whose connection closes unexpectedly asks the policy whether to try
again and how long to wait. Delays grow exponentially and are capped; after a
fixed number of consecutive failures the policy gives up and the session
surfaces a terminal error instead of retrying forever.

# States

- Idle: connected, or nothing scheduled
- Attempting: a retry has been scheduled (attempt n)
- Exhausted: the attempt budget is spent

# Pattern

	Idle --[close]-> Attempting(1) --[close]-> Attempting(2) ... --[close]-> Exhausted
	  ^                   |
	  +-----[open]--------+

delay(n) = min(BaseDelay * 2^n, MaxDelay); with the defaults the retries wait
2s, 4s and 8s.

# Usage

	policy := resilience.NewPolicy(resilience.DefaultSettings())

	// on unexpected close
	delay, err := policy.Next()
	if errors.Is(err, resilience.ErrAttemptsExhausted) {
		// surface terminal error
	}
	cancel := resilience.AfterFunc(delay, reopen)

	// on successful open
	policy.Reset()

# Circuit breaker

The conversation REST client runs every request through a Breaker. After
ReadyToTrip consecutive failures the circuit opens and calls fail fast with
ErrCircuitOpen; after Timeout one trial call is let through (half-open) and
its result closes or reopens the circuit.

	Closed --[trip]-> Open --[timeout]-> HalfOpen --[success]-> Closed
	                   ^                    |
	                   +-----[failure]------+

	breaker := resilience.NewBreaker("conversations", resilience.BreakerSettings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(5),
	})
	err := breaker.Execute(call)
*/
package resilience
