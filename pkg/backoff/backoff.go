// Package backoff provides exponential backoff for retry loops.
package backoff

import (
	"context"
	"math"
	"time"
)

// Policy describes an exponential backoff curve. Zero values use defaults.
type Policy struct {
	Initial time.Duration // default: 100ms
	Max     time.Duration // default: 5s
}

// Delay returns the wait before the given attempt. Attempt 1 returns
// Initial, attempt 2 returns Initial*2, and so on, capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	if attempt < 1 {
		return initial
	}
	delay := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}

// Sleep blocks for the attempt's delay or until ctx is done, returning
// ctx.Err() in that case.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(p.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
