// Package testutil provides polling helpers for tests that assert on
// asynchronous outcomes such as webhook deliveries.
package testutil

import (
	"sync/atomic"
	"testing"
	"time"
)

const pollInterval = 25 * time.Millisecond

// Eventually polls condition until it returns true, failing the test if
// timeout elapses first.
func Eventually(tb testing.TB, timeout time.Duration, condition func() bool) {
	tb.Helper()
	if !poll(timeout, condition) {
		tb.Fatalf("condition not met within %v", timeout)
	}
}

// EventuallyCount polls counter until it reaches at least target, failing
// the test if timeout elapses first.
func EventuallyCount(tb testing.TB, timeout time.Duration, counter *atomic.Int64, target int64) {
	tb.Helper()
	if !poll(timeout, func() bool { return counter.Load() >= target }) {
		tb.Fatalf("counter reached %d of %d within %v", counter.Load(), target, timeout)
	}
}

func poll(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if condition() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
