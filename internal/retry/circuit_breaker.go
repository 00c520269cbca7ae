package retry

import (
	"fmt"
	"sync"
	"time"

	ncerr "github.com/TTStick/Prompt-SSH-AIFakeSSHServer/internal/errors"
)

// State is the breaker's operational state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down has passed.
	StateOpen
	// StateHalfOpen lets a single trial call through to test recovery.
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

// BreakerConfig configures a [CircuitBreaker].
type BreakerConfig struct {
	// MaxFailures consecutive failures open the circuit (default 5).
	MaxFailures int
	// Cooldown is how long the circuit stays open (default 30s).
	Cooldown time.Duration
	// OnStateChange runs after every transition, outside the lock.
	OnStateChange func(from, to State)
}

// CircuitBreaker stops callers from waiting on a backend that keeps
// failing.  After MaxFailures consecutive failures it rejects calls
// with [ncerr.ErrCircuitOpen] for Cooldown, then admits one trial call whose
// outcome closes or re-opens the circuit.  Safe for concurrent use.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	maxFailures   int
	cooldown      time.Duration
	onStateChange func(from, to State)
	now           func() time.Time
}

// NewCircuitBreaker creates a breaker; a nil cfg selects the defaults.
func NewCircuitBreaker(cfg *BreakerConfig) *CircuitBreaker {
	if cfg == nil {
		cfg = &BreakerConfig{}
	}
	cb := &CircuitBreaker{
		maxFailures:   cfg.MaxFailures,
		cooldown:      cfg.Cooldown,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 5
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	return cb
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the breaker's state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.failures = 0
	cb.probing = false
	from := cb.setState(StateClosed)
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		wait := cb.cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			n := cb.failures
			cb.mu.Unlock()
			return fmt.Errorf("%w: %d consecutive failures, retry in %v",
				ncerr.ErrCircuitOpen, n, wait.Round(time.Second))
		}
		from := cb.setState(StateHalfOpen)
		cb.probing = true
		cb.mu.Unlock()
		cb.notify(from, StateHalfOpen)
		return nil
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return fmt.Errorf("%w: trial call in flight", ncerr.ErrCircuitOpen)
		}
		cb.probing = true
	}
	cb.mu.Unlock()
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	to := cb.state
	if cb.state == StateHalfOpen {
		cb.probing = false
	}
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.openedAt = cb.now()
			to = StateOpen
		}
	} else {
		cb.failures = 0
		to = StateClosed
	}
	from := cb.setState(to)
	cb.mu.Unlock()
	cb.notify(from, to)
}

// setState must be called with mu held.  It returns the previous state.
func (cb *CircuitBreaker) setState(to State) State {
	from := cb.state
	cb.state = to
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
