// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/padfs/lib/clock"
)

// rateLimitTracker remembers the latest X-RateLimit-* headers and
// holds requests back once the remaining budget reaches zero.
type rateLimitTracker struct {
	mu        sync.Mutex
	remaining int
	reset     time.Time
	known     bool
	clock     clock.Clock
}

func newRateLimitTracker(clock clock.Clock) *rateLimitTracker {
	return &rateLimitTracker{clock: clock}
}

// update records rate limit state from a response.
func (tracker *rateLimitTracker) update(header http.Header) {
	remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	tracker.remaining = remaining
	tracker.reset = time.Unix(resetUnix, 0)
	tracker.known = true
}

// wait blocks until the reset time when the budget is known to be
// exhausted.
func (tracker *rateLimitTracker) wait(ctx context.Context) error {
	tracker.mu.Lock()
	if !tracker.known || tracker.remaining > 0 {
		tracker.mu.Unlock()
		return nil
	}
	delay := tracker.reset.Sub(tracker.clock.Now())
	tracker.mu.Unlock()

	if delay <= 0 {
		return nil
	}
	return sleep(ctx, tracker.clock, delay)
}

// retryAfter computes the backoff for a rate-limited response:
// Retry-After for secondary limits, X-RateLimit-Reset for primary
// ones. Zero means no usable hint.
func (tracker *rateLimitTracker) retryAfter(header http.Header) time.Duration {
	if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if resetUnix, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if delay := time.Unix(resetUnix, 0).Sub(tracker.clock.Now()); delay > 0 {
			return delay
		}
	}
	return 0
}

// sleep waits for d on clk or until ctx is done.
func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	done := make(chan struct{})
	timer := clk.AfterFunc(d, func() { close(done) })
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
