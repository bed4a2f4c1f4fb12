// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package present

import (
	"sync"
	"time"
)

// DisplayClock delivers display refresh ticks.
//
// Subscribe registers fn and returns a function that unregisters it. After
// unsubscribe returns, fn is not running and will not be called again.
type DisplayClock interface {
	Subscribe(fn func(now time.Time)) (unsubscribe func())
}

// TickerClock ticks at a fixed refresh interval using time.Ticker.
type TickerClock struct {
	interval time.Duration
}

// NewTickerClock returns a clock ticking every interval. A non-positive
// interval uses 60 Hz.
func NewTickerClock(interval time.Duration) *TickerClock {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &TickerClock{interval: interval}
}

// Interval returns the refresh interval.
func (c *TickerClock) Interval() time.Duration { return c.interval }

// Subscribe starts a goroutine calling fn on every tick.
func (c *TickerClock) Subscribe(fn func(now time.Time)) func() {
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				fn(now)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
}

// ManualClock ticks only when Tick is called. It is used for tests and
// headless stepping.
type ManualClock struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(time.Time)
}

// NewManualClock returns a clock with no subscribers.
func NewManualClock() *ManualClock {
	return &ManualClock{subs: make(map[int]func(time.Time))}
}

// Subscribe registers fn.
func (c *ManualClock) Subscribe(fn func(now time.Time)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Tick calls every subscriber with now, synchronously.
func (c *ManualClock) Tick(now time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, fn := range c.subs {
		fn(now)
	}
}

// Subscribers returns the number of registered callbacks.
func (c *ManualClock) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
