// Package circuit implements the circuit breaker guarding a storage tier.
// A tier that fails repeatedly is short-circuited for a cooldown period so
// callers fall back immediately instead of waiting out retries.
package circuit

import (
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - circuit breaker is closed, requests pass through
	StateClosed State = iota
	// StateOpen - circuit breaker is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit breaker allows limited requests to test if the tier recovered
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config contains circuit breaker configuration
type Config struct {
	// Maximum number of requests allowed to pass through when state is half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Period of the closed state after which the failure counts reset
	Interval time.Duration `yaml:"interval"`

	// Period of the open state after which the breaker enters half-open state
	Timeout time.Duration `yaml:"timeout"`

	// Function to determine when the breaker should trip
	ReadyToTrip func(counts Counts) bool `yaml:"-"`

	// Function called when state changes
	OnStateChange func(name string, from State, to State) `yaml:"-"`

	// Function to determine if a result should be counted as a success
	IsSuccessful func(err error) bool `yaml:"-"`
}

// Counts holds the numbers of requests and their successes/failures
type Counts struct {
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	LastActivity         time.Time `json:"last_activity"`
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	name   string
	config Config

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

// NewBreaker creates a new circuit breaker instance
func NewBreaker(name string, config Config) *Breaker {
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Interval <= 0 {
		config.Interval = 60 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = defaultReadyToTrip
	}
	if config.IsSuccessful == nil {
		config.IsSuccessful = defaultIsSuccessful
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		counts: Counts{},
		expiry: time.Now().Add(config.Interval),
	}
}

// defaultReadyToTrip trips after five consecutive failures
func defaultReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= 5
}

// defaultIsSuccessful is the default function to determine if a result is successful
func defaultIsSuccessful(err error) bool {
	return err == nil
}

// Execute runs the given function if the circuit breaker allows it
func (cb *Breaker) Execute(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err)
	return err
}

// beforeRequest is called before executing the request
func (cb *Breaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)

	if state == StateOpen {
		return ErrOpenState
	}

	if state == StateHalfOpen && cb.counts.Requests >= cb.config.MaxRequests {
		return ErrTooManyRequests
	}

	cb.counts.onRequest()
	return nil
}

// afterRequest is called after executing the request
func (cb *Breaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state := cb.currentState(now)

	if cb.config.IsSuccessful(err) {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

// onSuccess handles successful requests
func (cb *Breaker) onSuccess(state State, now time.Time) {
	cb.counts.onSuccess()

	if state == StateHalfOpen {
		cb.setState(StateClosed, now)
	}
}

// onFailure handles failed requests
func (cb *Breaker) onFailure(state State, now time.Time) {
	cb.counts.onFailure()

	switch state {
	case StateClosed:
		if cb.config.ReadyToTrip(cb.counts) {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

// currentState returns the current state of the circuit breaker
func (cb *Breaker) currentState(now time.Time) State {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.counts.clear()
			cb.expiry = now.Add(cb.config.Interval)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state
}

// setState changes the state of the circuit breaker
func (cb *Breaker) setState(state State, now time.Time) {
	prev := cb.state

	if cb.state == state {
		return
	}

	cb.state = state
	cb.counts.clear()

	switch state {
	case StateClosed:
		cb.expiry = now.Add(cb.config.Interval)
	case StateOpen:
		cb.expiry = now.Add(cb.config.Timeout)
	case StateHalfOpen:
		cb.expiry = time.Time{}
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.name, prev, state)
	}
}

// GetState returns the current state of the circuit breaker
func (cb *Breaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.currentState(time.Now())
}

// GetCounts returns a copy of the current counts
func (cb *Breaker) GetCounts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

// Reset resets the circuit breaker to its initial state
func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.clear()
	cb.setState(StateClosed, time.Now())
}

// Name returns the name of the circuit breaker
func (cb *Breaker) Name() string {
	return cb.name
}

// Methods for Counts struct

func (c *Counts) onRequest() {
	c.Requests++
	c.LastActivity = time.Now()
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

func (c *Counts) clear() {
	c.Requests = 0
	c.TotalSuccesses = 0
	c.TotalFailures = 0
	c.ConsecutiveSuccesses = 0
	c.ConsecutiveFailures = 0
	c.LastActivity = time.Time{}
}

// Errors

var (
	// ErrOpenState is returned when the circuit breaker is open
	ErrOpenState = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when too many requests are made in half-open state
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)
