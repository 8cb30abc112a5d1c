// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"testing"
	"time"

	"idleguard/pkg/clock"
)

func TestStepExecutesInOrder(t *testing.T) {
	c := clock.NewManual(0)
	p := NewPlanner(c)

	p.Queue(Move{Target: Position{10, 0, 0, 0}})
	p.Queue(Move{Target: Position{10, 5, 0, 2}})
	if !p.HasQueued() {
		t.Fatal("expected queued moves")
	}

	p.Step()
	if got := p.Position(); got[X] != 10 || got[E] != 0 {
		t.Errorf("after first step got %v", got)
	}
	if p.ExtruderEnabled() {
		t.Error("XY move should not enable the extruder")
	}

	c.Advance(2 * time.Second)
	p.Step()
	if got := p.ExtruderLastMove(); got != 2000 {
		t.Errorf("got extruder last move %d, want 2000", got)
	}
	if !p.ExtruderEnabled() {
		t.Error("extruder move should enable the extruder")
	}
	if p.HasQueued() {
		t.Error("queue should be empty")
	}
}

func TestSynchronizeDrains(t *testing.T) {
	c := clock.NewManual(500)
	p := NewPlanner(c)
	p.Queue(Move{Target: Position{0, 0, 0, 1}})
	p.Queue(Move{Target: Position{0, 0, 0, 2}})
	p.Queue(Move{Target: Position{1, 0, 0, 2}})

	if got := p.QueuedTarget(); got[X] != 1 {
		t.Errorf("got queued target %v", got)
	}
	p.Synchronize()
	if p.HasQueued() {
		t.Error("Synchronize should drain the queue")
	}
	if got := p.ExtruderMoves(); got != 2 {
		t.Errorf("got %d extruder moves, want 2", got)
	}
	if got := p.ExtruderLastMove(); got != 500 {
		t.Errorf("got %d, want 500", got)
	}
}

func TestStepperEnable(t *testing.T) {
	p := NewPlanner(clock.NewManual(0))
	p.SetAllEnabled(true)
	p.SetExtruderEnabled(false)
	st := p.GetStatus()
	if !st.Steppers[X] || st.ExtruderEnabled {
		t.Errorf("unexpected steppers %+v", st)
	}
	p.SetAllEnabled(false)
	if p.Enabled(Y) {
		t.Error("M84 should disable all")
	}
}

func TestSetPositionDoesNotMove(t *testing.T) {
	p := NewPlanner(clock.NewManual(100))
	p.SetPosition(Position{0, 0, 0, 50})
	if p.ExtruderMoves() != 0 || p.ExtruderEnabled() {
		t.Error("G92 must not count as extruder motion")
	}
}

func TestFlushDropsPending(t *testing.T) {
	p := NewPlanner(clock.NewManual(0))
	p.Queue(Move{Target: Position{5, 0, 0, 0}})
	p.Queue(Move{Target: Position{5, 5, 0, 1}})

	if n := p.Flush(); n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
	if p.HasQueued() {
		t.Error("moves left after Flush")
	}
	p.Synchronize()
	if got := p.Position(); got != (Position{}) {
		t.Errorf("position moved to %v after Flush", got)
	}
}
