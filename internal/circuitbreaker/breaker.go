// Package circuitbreaker protects upstream RPC endpoints from being hammered while they
// are failing, and spares callers from waiting on them.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrOpen is returned by Allow while the circuit is open
var ErrOpen = errors.New("circuit breaker open")

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, no new operations allowed
	StateHalfOpen              // Testing if the upstream has recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker trips after a run of consecutive failures and lets a trial call
// through once the reset delay has passed.
type CircuitBreaker struct {
	name string

	// consecutive failures that trip a closed circuit
	failureThreshold int

	resetDelay time.Duration

	mu           sync.Mutex
	state        State
	lastTrip     time.Time
	failureCount int
	// set while the single half-open trial call is outstanding
	trialInFlight bool

	onStateChange func(name string, from, to State)
	now           func() time.Time
}

// New creates a closed breaker. name identifies the protected upstream in logs.
func New(name string, failureThreshold int) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetDelay:       30 * time.Second,
		state:            StateClosed,
		now:              time.Now,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithStateCallback sets a function called on every state change, outside the lock
func (cb *CircuitBreaker) WithStateCallback(callback func(name string, from, to State)) *CircuitBreaker {
	cb.onStateChange = callback
	return cb
}

// Allow reports whether a call may proceed. An open circuit whose reset delay has
// passed moves to half-open and admits exactly one trial call; every other call is
// rejected until that trial is recorded.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	switch cb.state {
	case StateHalfOpen:
		if cb.trialInFlight {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s trial in flight", ErrOpen, cb.name)
		}
		cb.trialInFlight = true
		cb.mu.Unlock()
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastTrip) < cb.resetDelay {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrOpen, cb.name)
		}
		from := cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		cb.mu.Unlock()
		logrus.WithField("upstream", cb.name).Info("Circuit breaker half-open: testing upstream recovery")
		cb.notify(from, StateHalfOpen)
		return nil
	}
	cb.mu.Unlock()
	return nil
}

// RecordSuccess reports a successful call. A successful trial closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failureCount = 0
	if cb.state != StateHalfOpen {
		cb.mu.Unlock()
		return
	}
	from := cb.setState(StateClosed)
	cb.mu.Unlock()

	logrus.WithField("upstream", cb.name).Info("Circuit breaker closed: upstream has recovered")
	cb.notify(from, StateClosed)
}

// RecordFailure reports a failed call. A failed trial reopens the circuit.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	cb.failureCount++
	if cb.state == StateOpen || (cb.state == StateClosed && cb.failureCount < cb.failureThreshold) {
		cb.mu.Unlock()
		return
	}
	from := cb.trip()
	cb.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"upstream": cb.name,
		"reason":   reason,
	}).Warn("Circuit breaker tripped")
	cb.notify(from, StateOpen)
}

// Release hands back an admitted call that produced no verdict on the upstream,
// so a half-open circuit can admit another trial.
func (cb *CircuitBreaker) Release() {
	cb.mu.Lock()
	if cb.state == StateHalfOpen {
		cb.trialInFlight = false
	}
	cb.mu.Unlock()
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// trip must be called with cb.mu held
func (cb *CircuitBreaker) trip() State {
	from := cb.setState(StateOpen)
	cb.lastTrip = cb.now()
	return from
}

// setState must be called with cb.mu held
func (cb *CircuitBreaker) setState(to State) State {
	from := cb.state
	cb.state = to
	cb.failureCount = 0
	cb.trialInFlight = false
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
