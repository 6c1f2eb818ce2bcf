// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only through Advance. It is
// safe for concurrent use.
//
// AfterFunc callbacks run synchronously inside Advance, in deadline
// order, without the clock's lock held. A callback may schedule new
// timers; it must not call Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*scheduled
	changed *sync.Cond
	nextID  uint64
}

// scheduled is one registered AfterFunc call or ticker.
type scheduled struct {
	id       uint64
	deadline time.Time

	// Exactly one of callback and ticks is set.
	callback func()
	ticks    chan time.Time
	period   time.Duration

	cancelled bool
}

// Fake returns a FakeClock reading start.
func Fake(start time.Time) *FakeClock {
	clock := &FakeClock{now: start}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers f to run when the clock reaches now+d. A
// non-positive d runs f before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{stop: func() bool { return false }}
	}
	entry := c.register(d, func(entry *scheduled) { entry.callback = f })
	return &Timer{stop: func() bool { return c.cancel(entry) }}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker period")
	}
	ticks := make(chan time.Time, 1)
	entry := c.register(d, func(entry *scheduled) {
		entry.ticks = ticks
		entry.period = d
	})
	return &Ticker{C: ticks, stop: func() { c.cancel(entry) }}
}

func (c *FakeClock) register(d time.Duration, fill func(*scheduled)) *scheduled {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	entry := &scheduled{id: c.nextID, deadline: c.now.Add(d)}
	fill(entry)
	c.pending = append(c.pending, entry)
	c.changed.Broadcast()
	return entry
}

func (c *FakeClock) cancel(entry *scheduled) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, candidate := range c.pending {
		if candidate == entry {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			entry.cancelled = true
			c.changed.Broadcast()
			return true
		}
	}
	return false
}

// Advance moves the clock forward by d, running every callback and
// delivering every tick whose deadline is reached. Tickers fire once
// per elapsed period; surplus ticks are dropped like time.Ticker.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		entry, ok := c.popDue(target)
		if !ok {
			break
		}
		if entry.callback != nil {
			entry.callback()
			continue
		}
		select {
		case entry.ticks <- entry.deadline:
		default:
		}
	}

	c.mu.Lock()
	c.now = target
	c.mu.Unlock()
}

// popDue removes the earliest entry due at or before target, moving
// the clock to its deadline. Tickers are re-registered one period
// later.
func (c *FakeClock) popDue(target time.Time) (*scheduled, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, false
	}
	sort.SliceStable(c.pending, func(i, j int) bool {
		if c.pending[i].deadline.Equal(c.pending[j].deadline) {
			return c.pending[i].id < c.pending[j].id
		}
		return c.pending[i].deadline.Before(c.pending[j].deadline)
	})
	entry := c.pending[0]
	if entry.deadline.After(target) {
		return nil, false
	}
	if entry.deadline.After(c.now) {
		c.now = entry.deadline
	}
	if entry.period > 0 {
		next := *entry
		entry.deadline = entry.deadline.Add(entry.period)
		c.changed.Broadcast()
		return &next, true
	}
	c.pending = c.pending[1:]
	c.changed.Broadcast()
	return entry, true
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// Tests call it before Advance to close the race with a goroutine that
// has not registered its timer yet.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// Pending reports how many timers and tickers are registered.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
