// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package breaker implements the three-state Circuit Breaker (§4.5)
// guarding the Forwarder's outbound calls. All of {state, failures,
// successes, since, testInFlight} live under one lock so a transition is
// never observed half-applied (§5, §9 "group into one struct under one
// lock").
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker's current state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow when the breaker refuses a call.
var ErrOpen = errors.New("breaker: circuit open")

// Config parameterizes the breaker (§3 CircuitState thresholds).
type Config struct {
	FailureThreshold int
	OpenDuration     time.Duration
}

// Snapshot is a point-in-time read of the breaker's internal state, for
// diagnostics and tests. State transitions are counted through the
// OnTransition callback, not through Snapshot.
type Snapshot struct {
	State     State
	Failures  int
	Successes int
	Since     time.Time
}

// CircuitBreaker guards a single external send operation.
type CircuitBreaker struct {
	cfg Config
	now func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	since        time.Time // set when entering Open
	testInFlight bool      // true once HalfOpen has admitted its one probe

	onTransition func(from, to State)
}

// New constructs a CircuitBreaker starting Closed.
func New(cfg Config) *CircuitBreaker {
	return newWithClock(cfg, time.Now)
}

// newWithClock allows tests to control time without sleeping.
func newWithClock(cfg Config, now func() time.Time) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: now, state: Closed}
}

// OnTransition installs a callback invoked synchronously whenever the
// breaker changes state, still inside the breaker's critical section.
// Callbacks must not block or call back into the breaker.
func (cb *CircuitBreaker) OnTransition(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onTransition = fn
}

// Allow decides whether a call may proceed, performing any state
// transition the decision implies (Open->HalfOpen on timer expiry) in the
// same critical section as the decision itself (§4.5 Contract). It
// returns nil when the call may proceed and ErrOpen otherwise.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return nil

	case Open:
		if cb.now().Before(cb.since.Add(cb.cfg.OpenDuration)) {
			return ErrOpen
		}
		// Timer expired: the first arriving call becomes the probe.
		cb.transition(HalfOpen)
		cb.testInFlight = true
		return nil

	case HalfOpen:
		if cb.testInFlight {
			// A probe is already in flight; reject immediately (§4.5:
			// "no second concurrent probe").
			return ErrOpen
		}
		cb.testInFlight = true
		return nil

	default:
		return ErrOpen
	}
}

// RecordSuccess records a successful call outcome.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		cb.failures = 0
	case HalfOpen:
		cb.testInFlight = false
		cb.failures = 0
		cb.successes = 0
		cb.transition(Closed)
	}
}

// RecordFailure records a failed call outcome.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openLocked()
		}
	case HalfOpen:
		cb.testInFlight = false
		cb.openLocked()
	}
}

// openLocked transitions to Open with since=now. Caller holds cb.mu.
func (cb *CircuitBreaker) openLocked() {
	cb.since = cb.now()
	cb.failures = 0
	cb.successes = 0
	cb.transition(Open)
}

// transition updates cb.state and fires onTransition. Caller holds cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.onTransition != nil {
		cb.onTransition(from, to)
	}
}

// Snapshot returns a point-in-time read of the breaker state.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:     cb.state,
		Failures:  cb.failures,
		Successes: cb.successes,
		Since:     cb.since,
	}
}
