// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package motion queues moves and tracks extruder drive state.
//
// Moves complete one per Step; Synchronize drains everything queued so a
// caller sees the position and extruder timestamp the queue would reach.
package motion

import (
	"sync"

	"idleguard/pkg/clock"
)

// Axis indexes a position component.
type Axis int

const (
	X Axis = iota
	Y
	Z
	E
	numAxes
)

func (a Axis) String() string {
	return [...]string{"X", "Y", "Z", "E"}[a]
}

// Position is an absolute X/Y/Z/E coordinate.
type Position [numAxes]float64

// Move is one queued linear move to an absolute target.
type Move struct {
	Target   Position
	Feedrate float64
}

// Planner executes queued moves and keeps stepper enable state.
type Planner struct {
	mu    sync.Mutex
	clock clock.Source

	queue    []Move
	position Position

	steppers         [numAxes]bool
	extruderLastMove clock.Millis
	extruderMoves    uint64
}

func NewPlanner(src clock.Source) *Planner {
	return &Planner{clock: src}
}

// Queue appends a move. Axes that move are enabled when the move executes.
func (p *Planner) Queue(m Move) {
	p.mu.Lock()
	p.queue = append(p.queue, m)
	p.mu.Unlock()
}

// HasQueued reports whether moves are still pending.
func (p *Planner) HasQueued() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) > 0
}

// Step executes the next queued move, if any.
func (p *Planner) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) > 0 {
		p.execute(p.queue[0])
		p.queue = p.queue[1:]
	}
}

// Synchronize blocks until every queued move has executed.
func (p *Planner) Synchronize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.queue {
		p.execute(m)
	}
	p.queue = p.queue[:0]
}

// Flush discards pending moves and returns how many were dropped.
func (p *Planner) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	p.queue = nil
	return n
}

func (p *Planner) execute(m Move) {
	for a := X; a < numAxes; a++ {
		if m.Target[a] == p.position[a] {
			continue
		}
		p.steppers[a] = true
		if a == E {
			p.extruderLastMove = p.clock.NowMs()
			p.extruderMoves++
		}
	}
	p.position = m.Target
}

// Position returns the position after the last executed move.
func (p *Planner) Position() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// SetPosition redefines the current position without moving (G92).
func (p *Planner) SetPosition(pos Position) {
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
}

// QueuedTarget returns the position the queue will end at.
func (p *Planner) QueuedTarget() Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.queue); n > 0 {
		return p.queue[n-1].Target
	}
	return p.position
}

// ExtruderLastMove returns when the extruder last moved. The value changes
// on every executed extruder move, including moves drained by Synchronize.
func (p *Planner) ExtruderLastMove() clock.Millis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extruderLastMove
}

// ExtruderMoves counts executed extruder moves.
func (p *Planner) ExtruderMoves() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extruderMoves
}

func (p *Planner) ExtruderEnabled() bool {
	return p.Enabled(E)
}

func (p *Planner) SetExtruderEnabled(on bool) {
	p.SetEnabled(E, on)
}

func (p *Planner) Enabled(a Axis) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steppers[a]
}

func (p *Planner) SetEnabled(a Axis, on bool) {
	p.mu.Lock()
	p.steppers[a] = on
	p.mu.Unlock()
}

// SetAllEnabled switches every stepper driver (M17 / M84).
func (p *Planner) SetAllEnabled(on bool) {
	p.mu.Lock()
	for a := range p.steppers {
		p.steppers[a] = on
	}
	p.mu.Unlock()
}

// Status is a snapshot for reporting.
type Status struct {
	Position        Position `json:"position"`
	Queued          int      `json:"queued"`
	Steppers        [4]bool  `json:"steppers"`
	ExtruderEnabled bool     `json:"extruder_enabled"`
	ExtruderMoves   uint64   `json:"extruder_moves"`
}

func (p *Planner) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Position:        p.position,
		Queued:          len(p.queue),
		Steppers:        p.steppers,
		ExtruderEnabled: p.steppers[E],
		ExtruderMoves:   p.extruderMoves,
	}
}
