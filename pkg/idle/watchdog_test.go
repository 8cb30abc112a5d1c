// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package idle

import (
	"testing"
	"time"

	"idleguard/pkg/clock"
)

func TestWatchdogLifecycle(t *testing.T) {
	timeout := 10 * time.Second
	eligible, active := true, false
	fired := 0

	w := NewWatchdog("test",
		func() time.Duration { return timeout },
		func(clock.Millis) (bool, bool) { return eligible, active },
		func(clock.Millis) bool { fired++; return true },
	)

	steps := []struct {
		at       clock.Millis
		eligible bool
		active   bool
		want     State
		deadline clock.Millis
	}{
		{0, true, false, StateArmed, 10000},
		{5000, true, true, StateArmed, 15000},
		{14999, true, false, StateArmed, 15000},
		{15000, true, false, StateTriggered, 25000},
		{16000, false, false, StateTriggered, 25000},
		{20000, true, false, StateArmed, 30000},
		{21000, false, false, StateQuiescent, 30000},
	}
	for _, s := range steps {
		eligible, active = s.eligible, s.active
		if got := w.Evaluate(s.at); got != s.want {
			t.Errorf("at %d: got state %s, want %s", s.at, got, s.want)
		}
		if got := w.Deadline(); got != s.deadline {
			t.Errorf("at %d: got deadline %d, want %d", s.at, got, s.deadline)
		}
	}
	if fired != 1 || w.Fired() != 1 {
		t.Errorf("got %d actions, want 1", fired)
	}

	timeout = 0
	if got := w.Evaluate(40000); got != StateDisabled {
		t.Errorf("got %s, want disabled", got)
	}
}

func TestWatchdogActionDeclines(t *testing.T) {
	w := NewWatchdog("decline",
		func() time.Duration { return time.Second },
		func(clock.Millis) (bool, bool) { return true, false },
		func(clock.Millis) bool { return false },
	)
	w.Evaluate(0)
	if got := w.Evaluate(1000); got != StateArmed {
		t.Errorf("got %s, want armed", got)
	}
	if got := w.Deadline(); got != 2000 {
		t.Errorf("got deadline %d, want 2000", got)
	}
	if w.Fired() != 0 {
		t.Error("declined action must not count")
	}
}
