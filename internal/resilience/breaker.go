package resilience

import (
	"sync"
	"time"

	"github.com/hyp3rd/logship"
)

// State represents the circuit breaker state.
type State uint8

const (
	// StateClosed passes calls through and counts consecutive failures.
	StateClosed State = iota
	// StateOpen rejects calls immediately without attempting the operation.
	StateOpen
	// StateHalfOpen allows probe calls through after the reset timeout.
	StateHalfOpen
)

// String returns a human-readable state name.
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

// BreakerConfig holds the circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the breaker.
	FailureThreshold int
	// SuccessThreshold is the half-open success count that closes the breaker.
	SuccessThreshold int
	// ResetTimeout is how long an open breaker waits before allowing a probe.
	ResetTimeout time.Duration
	// OnOpen is invoked each time the breaker transitions to open.
	OnOpen func()
}

// Breaker is a tri-state failure gate protecting the downstream transport
// call. Exactly one state is active at any instant; transitions happen under
// a single mutex so concurrent attempts cannot lose updates.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	config    BreakerConfig
	now       func() time.Time
}

// NewBreaker creates a closed breaker with the given thresholds.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{
		config: config,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// the breaker is open and the reset timeout has not elapsed; once it has, the
// breaker moves to half-open and the call is admitted as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return logship.ErrCircuitOpen
		}

		b.state = StateHalfOpen
		b.successes = 0
	}

	return nil
}

// OnSuccess records a successful call. Closed resets the failure count;
// half-open counts toward the success threshold and closes the breaker when
// reached.
func (b *Breaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	case StateOpen:
		// A success cannot be observed while open; calls are rejected.
	}
}

// OnFailure records a failed call. Closed counts toward the failure threshold
// and opens the breaker when reached; any half-open failure reopens it
// immediately.
func (b *Breaker) OnFailure() {
	b.mu.Lock()

	opened := false

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.open()

			opened = true
		}
	case StateHalfOpen:
		b.open()

		opened = true
	case StateOpen:
	}

	b.mu.Unlock()

	// The callback runs outside the lock so it may consult breaker state.
	if opened && b.config.OnOpen != nil {
		b.config.OnOpen()
	}
}

// open transitions to the open state. Caller holds the mutex.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successes = 0
}

// State returns the currently active state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Failures returns the consecutive failure count while closed.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failures
}
