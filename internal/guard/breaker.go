package guard

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow while the circuit is open.
var ErrOpen = errors.New("upstream circuit open")

// State represents the state of the circuit breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// Breaker is a circuit breaker for a single upstream. Consecutive failures
// open the circuit; after resetTimeout one probe is let through, and its
// outcome decides between closing again and re-opening.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	probes        int
	lastFailure   time.Time
	failThreshold int
	resetTimeout  time.Duration
}

// NewBreaker creates a breaker with configurable thresholds.
func NewBreaker(failThreshold int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		failThreshold: failThreshold,
		resetTimeout:  resetTimeout,
	}
}

// Allow reports whether a request may proceed, returning ErrOpen otherwise.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.state = HalfOpen
			b.probes = 1
			return nil
		}
		return ErrOpen
	case HalfOpen:
		if b.probes > 0 {
			return ErrOpen
		}
		b.probes = 1
		return nil
	default:
		return nil
	}
}

// RecordSuccess marks a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Closed
	}
	b.failures = 0
	b.probes = 0
}

// RecordFailure marks a failed call, opening the circuit at the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()
	b.probes = 0

	if b.state == HalfOpen || b.failures >= b.failThreshold {
		b.state = Open
	}
}
