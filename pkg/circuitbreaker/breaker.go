// Package circuitbreaker provides a consecutive-failure circuit breaker.
//
// After Threshold consecutive failures the breaker opens and Allow reports
// false until Cooldown has elapsed since the most recent failure. Requests
// after the cooldown are probes: a success closes the breaker, a failure
// starts another cooldown.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the observable state of a breaker.
type State int

const (
	Closed   State = iota // requests allowed
	Open                  // requests blocked until the cooldown elapses
	HalfOpen              // cooldown elapsed, probing
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config bounds how quickly a breaker opens and recovers.
type Config struct {
	Threshold int           // consecutive failures before opening (default 5)
	Cooldown  time.Duration // wait before allowing a probe (default 30s)
}

// Breaker tracks consecutive failures against a single destination. State is
// derived from the failure count and the time of the last failure, so an
// idle breaker moves from Open to HalfOpen without traffic.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

// New creates a breaker, substituting defaults for non-positive settings.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
	}
}

// Allow reports whether a request should be attempted now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(time.Now()) != Open
}

// RecordSuccess closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// RecordFailure counts a consecutive failure. Once the threshold is reached
// every further failure restarts the cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	b.failures++
	b.lastFailure = time.Now()
	b.mu.Unlock()
}

// State returns the breaker state at this instant.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked(time.Now())
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Breaker) stateLocked(now time.Time) State {
	if b.failures < b.threshold {
		return Closed
	}
	if now.Sub(b.lastFailure) > b.cooldown {
		return HalfOpen
	}
	return Open
}
