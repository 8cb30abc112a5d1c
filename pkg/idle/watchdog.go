// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package idle

import (
	"time"

	"idleguard/pkg/clock"
)

// State of a single watchdog.
type State string

const (
	StateDisabled  State = "disabled"
	StateQuiescent State = "quiescent"
	StateArmed     State = "armed"
	StateTriggered State = "triggered"
)

// ActivityFunc samples the watched resource. eligible=false means there is
// nothing to protect right now; active=true means activity was observed.
type ActivityFunc func(now clock.Millis) (eligible, active bool)

// ActionFunc runs when the deadline passes. Returning false means the action
// did not complete (late activity, or a refused change) and the countdown
// restarts without counting a firing.
type ActionFunc func(now clock.Millis) bool

// Watchdog pushes a deadline back on every observed activity and runs its
// action once the deadline passes without any.
type Watchdog struct {
	Name     string
	Timeout  func() time.Duration
	Activity ActivityFunc
	Action   ActionFunc

	deadline clock.Millis
	armed    bool
	state    State
	fired    uint64
}

func NewWatchdog(name string, timeout func() time.Duration, activity ActivityFunc, action ActionFunc) *Watchdog {
	return &Watchdog{
		Name:     name,
		Timeout:  timeout,
		Activity: activity,
		Action:   action,
		state:    StateQuiescent,
	}
}

// Evaluate runs one watchdog step at now and returns the resulting state.
func (w *Watchdog) Evaluate(now clock.Millis) State {
	timeout := w.Timeout()
	if timeout <= 0 {
		w.armed = false
		w.state = StateDisabled
		return w.state
	}

	eligible, active := w.Activity(now)
	if !eligible {
		w.armed = false
		if w.state != StateTriggered {
			w.state = StateQuiescent
		}
		return w.state
	}

	if active || !w.armed {
		w.Rearm(now, timeout)
		return w.state
	}

	if clock.Elapsed(now, w.deadline) {
		if !w.Action(now) {
			w.Rearm(now, timeout)
			return w.state
		}
		w.fired++
		w.deadline = now.Add(timeout)
		w.state = StateTriggered
	}
	return w.state
}

// Rearm restarts the countdown from now.
func (w *Watchdog) Rearm(now clock.Millis, timeout time.Duration) {
	w.deadline = now.Add(timeout)
	w.armed = true
	w.state = StateArmed
}

func (w *Watchdog) Armed() bool { return w.armed }

func (w *Watchdog) State() State { return w.state }

func (w *Watchdog) Deadline() clock.Millis { return w.deadline }

// Fired counts completed terminal actions.
func (w *Watchdog) Fired() uint64 { return w.fired }
