// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package board drives the board-level pin tricks that keep electrical
// noise down: unused header pins are grounded at startup and the probe
// lines are only live while probing.
package board

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"idleguard/pkg/log"
)

// ProbeSettle is how long the probe lines charge after being released.
const ProbeSettle = 5 * time.Millisecond

// PinMode is the electrical configuration of a pin.
type PinMode int

const (
	ModeOutput PinMode = iota
	ModeInputPullup
)

func (m PinMode) String() string {
	if m == ModeInputPullup {
		return "input_pullup"
	}
	return "output"
}

// PinDriver configures and drives MCU pins.
type PinDriver interface {
	SetMode(pin string, mode PinMode) error
	Write(pin string, high bool) error
}

// Extruder is the motion surface used while probing.
type Extruder interface {
	Synchronize()
	SetExtruderEnabled(on bool)
}

// HeaderPin is a GPIO brought out on a header.
type HeaderPin struct {
	Name   string
	Header string
}

// Profile lists the pins grounded at startup for one board variant.
type Profile struct {
	Name       string
	EMIShutoff []HeaderPin
}

var profiles = map[string]Profile{
	"archim2": {
		Name: "archim2",
		EMIShutoff: []HeaderPin{
			{"PB1", "J20-5"}, {"PB0", "J20-6"}, {"PB3", "J20-7"}, {"PB2", "J20-8"},
			{"PB6", "J20-9"}, {"PB5", "J20-10"}, {"PB8", "J20-11"}, {"PB4", "J20-12"},
			{"PB9", "J20-13"}, {"PB7", "J20-14"}, {"PA18", "J20-21"}, {"PA17", "J20-22"},
		},
	},
	"archim2/tazprov2": {
		Name: "archim2/TAZProV2",
		EMIShutoff: []HeaderPin{
			{"PB8", "J20-11"}, {"PB7", "J20-14"}, {"PA18", "J20-21"}, {"PA17", "J20-22"},
		},
	},
	"generic": {Name: "generic"},
}

// LookupProfile finds the profile for a board and optional variant.
func LookupProfile(name, variant string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if v := strings.ToLower(strings.TrimSpace(variant)); v != "" {
		key += "/" + v
	}
	p, ok := profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("board: unknown board %q", key)
	}
	return p, nil
}

// ProbePin is a probe line. Invert swaps the levels written when the line
// is grounded and released.
type ProbePin struct {
	Name   string
	Invert bool
}

// Options configure a Board.
type Options struct {
	Pins      PinDriver
	Extruder  Extruder
	ProbePins []ProbePin
	Logger    *log.Logger
	// Sleep waits for the probe lines to settle. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Board applies a profile through a pin driver.
type Board struct {
	profile   Profile
	pins      PinDriver
	extruder  Extruder
	probePins []ProbePin
	logger    *log.Logger
	sleep     func(time.Duration)

	mu      sync.Mutex
	probing bool
}

func New(profile Profile, opts Options) *Board {
	b := &Board{
		profile:   profile,
		pins:      opts.Pins,
		extruder:  opts.Extruder,
		probePins: opts.ProbePins,
		logger:    opts.Logger,
		sleep:     opts.Sleep,
	}
	if b.logger == nil {
		b.logger = log.GetLogger("board")
	}
	if b.sleep == nil {
		b.sleep = time.Sleep
	}
	return b
}

func (b *Board) Profile() Profile { return b.profile }

func (b *Board) shutoff(pin string) error {
	if err := b.pins.SetMode(pin, ModeOutput); err != nil {
		return err
	}
	return b.pins.Write(pin, false)
}

// OnStartup grounds every unused header pin of the profile.
func (b *Board) OnStartup() error {
	for _, p := range b.profile.EMIShutoff {
		if err := b.shutoff(p.Name); err != nil {
			return fmt.Errorf("board: shutoff %s (%s): %w", p.Name, p.Header, err)
		}
	}
	b.logger.WithField("pins", len(b.profile.EMIShutoff)).Info("EMI shutoff applied for %s", b.profile.Name)
	return nil
}

// SetProbePins releases the probe lines as pulled-up inputs, or grounds them.
func (b *Board) SetProbePins(enable bool) error {
	for _, pin := range b.probePins {
		if !enable {
			if err := b.pins.SetMode(pin.Name, ModeOutput); err != nil {
				return fmt.Errorf("board: ground probe pin %s: %w", pin.Name, err)
			}
			if err := b.pins.Write(pin.Name, pin.Invert); err != nil {
				return fmt.Errorf("board: ground probe pin %s: %w", pin.Name, err)
			}
			continue
		}
		if err := b.pins.SetMode(pin.Name, ModeInputPullup); err != nil {
			return fmt.Errorf("board: release probe pin %s: %w", pin.Name, err)
		}
		if err := b.pins.Write(pin.Name, !pin.Invert); err != nil {
			return fmt.Errorf("board: release probe pin %s: %w", pin.Name, err)
		}
		// The bed acts as a capacitor.
		b.sleep(ProbeSettle)
	}
	return nil
}

// SetProbing enters or leaves probing: the probe lines go live and the
// extruder motor is switched off after pending moves finish.
func (b *Board) SetProbing(probing bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if probing == b.probing {
		return nil
	}
	if err := b.SetProbePins(probing); err != nil {
		return err
	}
	if b.extruder != nil {
		if probing {
			b.extruder.Synchronize()
			b.extruder.SetExtruderEnabled(false)
		} else {
			b.extruder.SetExtruderEnabled(true)
		}
	}
	b.probing = probing
	b.logger.Debug("probing=%v", probing)
	return nil
}

func (b *Board) Probing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probing
}

// PinState is the last configuration written to a simulated pin.
type PinState struct {
	Mode PinMode `json:"mode"`
	High bool    `json:"high"`
}

// SimPins is an in-memory PinDriver.
type SimPins struct {
	mu   sync.Mutex
	pins map[string]PinState
}

func NewSimPins() *SimPins {
	return &SimPins{pins: make(map[string]PinState)}
}

func (s *SimPins) SetMode(pin string, mode PinMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.pins[pin]
	st.Mode = mode
	s.pins[pin] = st
	return nil
}

func (s *SimPins) Write(pin string, high bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.pins[pin]
	st.High = high
	s.pins[pin] = st
	return nil
}

func (s *SimPins) State(pin string) (PinState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pins[pin]
	return st, ok
}

// Names lists every pin touched so far.
func (s *SimPins) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.pins))
	for name := range s.pins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
