package breaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
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

const (
	// DefaultThreshold is the consecutive-failure count that trips the breaker.
	DefaultThreshold = 3
	// DefaultResetTimeout is how long the breaker stays open before a trial.
	DefaultResetTimeout = 10 * time.Second
)

// Breaker is a per-provider failure gate. It is process-local and not
// persisted; state resets on restart.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
}

// New constructs a closed breaker with the default threshold and timeout.
func New() *Breaker {
	return NewWith(DefaultThreshold, DefaultResetTimeout)
}

// NewWith constructs a closed breaker with explicit settings.
func NewWith(threshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		state:        StateClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Allow reports whether a call may proceed. While open it returns false
// until the reset timeout has elapsed since the last failure, at which
// point it moves to half-open and permits one trial; the caller's next
// RecordSuccess or RecordFailure resolves the trial.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
}

// RecordFailure counts a failure and trips to open at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.failureCount >= b.threshold {
		b.state = StateOpen
		b.lastFailure = time.Now()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
