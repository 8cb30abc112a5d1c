// Millisecond clock shared by the watchdogs.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package clock provides a wrapping 32-bit millisecond counter and the
// wraparound-safe comparisons used for every deadline in the monitor.
package clock

import (
	"sync"
	"time"
)

// Millis is a monotonic millisecond count that wraps at 2^32.
type Millis uint32

// Source yields the current millisecond count.
type Source interface {
	NowMs() Millis
}

// MaxSpan is the longest interval that compares correctly across a wrap.
const MaxSpan = time.Duration(1<<31-1) * time.Millisecond

// Add returns m advanced by d, wrapping as the counter does.
func (m Millis) Add(d time.Duration) Millis {
	return m + Millis(uint32(d/time.Millisecond))
}

// Sub returns the signed distance m - o, correct across one wrap.
func (m Millis) Sub(o Millis) time.Duration {
	return time.Duration(int32(m-o)) * time.Millisecond
}

// Elapsed reports whether now is at or past deadline.
func Elapsed(now, deadline Millis) bool {
	return int32(now-deadline) >= 0
}

// Pending reports the time left until deadline, or zero once it has passed.
func Pending(now, deadline Millis) time.Duration {
	if Elapsed(now, deadline) {
		return 0
	}
	return deadline.Sub(now)
}

// Manual is a Source driven by hand, for tests and scripted runs.
type Manual struct {
	mu  sync.Mutex
	now Millis
}

func NewManual(start Millis) *Manual {
	return &Manual{now: start}
}

func (c *Manual) NowMs() Millis {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Manual) Advance(d time.Duration) Millis {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *Manual) Set(now Millis) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
