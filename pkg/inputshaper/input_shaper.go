// Input shaping parameters per axis
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package inputshaper

import (
	"fmt"
	"math"
	"sync"
)

const (
	DefaultDampingRatio = 0.1
	DefaultFrequency    = 40.0
)

// Validation messages echoed back to the operator.
const (
	MsgDampingRange   = "Zeta (D) value out of range (0-1)"
	MsgFrequencyRange = "Frequency (F) must be greater than 0"
)

// Axis is a shaped axis.
type Axis string

const (
	AxisX Axis = "X"
	AxisY Axis = "Y"
)

// Axes lists the shaped axes in report order.
var Axes = []Axis{AxisX, AxisY}

// Params hold one axis' shaping parameters.
type Params struct {
	Frequency    float64 `json:"frequency" yaml:"frequency"`
	DampingRatio float64 `json:"damping_ratio" yaml:"damping_ratio"`
}

// DefaultParams returns the factory parameters for an axis.
func DefaultParams() Params {
	return Params{Frequency: DefaultFrequency, DampingRatio: DefaultDampingRatio}
}

// Validate checks both fields.
func (p Params) Validate() error {
	if err := ValidateDamping(p.DampingRatio); err != nil {
		return err
	}
	return ValidateFrequency(p.Frequency)
}

// ValidateDamping accepts a ratio in [0, 1]. NaN is rejected.
func ValidateDamping(d float64) error {
	if !(d >= 0 && d <= 1) {
		return fmt.Errorf("inputshaper: %s", MsgDampingRange)
	}
	return nil
}

// ValidateFrequency accepts a positive finite frequency.
func ValidateFrequency(f float64) error {
	if !(f > 0) || math.IsInf(f, 1) {
		return fmt.Errorf("inputshaper: %s", MsgFrequencyRange)
	}
	return nil
}

// Scope selects the axes an update applies to. The zero value means all axes.
type Scope struct {
	X bool
	Y bool
}

func (s Scope) includes(a Axis) bool {
	if !s.X && !s.Y {
		return true
	}
	return (a == AxisX && s.X) || (a == AxisY && s.Y)
}

// Shaper stores the shaping parameters of every axis.
type Shaper struct {
	mu   sync.RWMutex
	axes map[Axis]Params
}

func New() *Shaper {
	s := &Shaper{axes: make(map[Axis]Params, len(Axes))}
	s.Reset()
	return s
}

// Reset restores factory parameters on every axis.
func (s *Shaper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range Axes {
		s.axes[a] = DefaultParams()
	}
}

// Get returns an axis' parameters.
func (s *Shaper) Get(a Axis) Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.axes[a]
}

// Set replaces an axis' parameters after validation.
func (s *Shaper) Set(a Axis, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.axes[a] = p
	s.mu.Unlock()
	return nil
}

// SetDamping applies d to the scoped axes, or nothing if d is out of range.
func (s *Shaper) SetDamping(scope Scope, d float64) error {
	if err := ValidateDamping(d); err != nil {
		return err
	}
	s.update(scope, func(p *Params) { p.DampingRatio = d })
	return nil
}

// SetFrequency applies f to the scoped axes, or nothing if f is not positive.
func (s *Shaper) SetFrequency(scope Scope, f float64) error {
	if err := ValidateFrequency(f); err != nil {
		return err
	}
	s.update(scope, func(p *Params) { p.Frequency = f })
	return nil
}

func (s *Shaper) update(scope Scope, fn func(*Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range Axes {
		if scope.includes(a) {
			p := s.axes[a]
			fn(&p)
			s.axes[a] = p
		}
	}
}

// Snapshot copies every axis' parameters.
func (s *Shaper) Snapshot() map[Axis]Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Axis]Params, len(s.axes))
	for a, p := range s.axes {
		out[a] = p
	}
	return out
}

// Report renders the parameter report lines.
func (s *Shaper) Report() []string {
	lines := []string{"Input Shaping:"}
	for _, a := range Axes {
		p := s.Get(a)
		lines = append(lines, fmt.Sprintf("  %s axis: M593 %s F%g D%g", a, a, p.Frequency, p.DampingRatio))
	}
	return lines
}
