// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package idle lowers heater targets and disables the extruder drive when a
// printer is left hot and idle.
//
// A Monitor owns three watchdogs: the nozzle heater, the optional heated
// bed and the extruder motor. Check is called once per main loop
// iteration; it never blocks and performs at most one terminal action per
// watchdog per idle episode.
package idle

import (
	"fmt"
	"math"
	"sync"
	"time"

	"idleguard/pkg/clock"
	"idleguard/pkg/heater"
	"idleguard/pkg/log"
)

// Thermal is the heater surface the monitor reads and lowers.
type Thermal interface {
	Target(id heater.ID) float64
	Current(id heater.ID) float64
	SetTarget(id heater.ID, target float64) error
}

// Motion is the extruder surface the monitor samples and disables.
type Motion interface {
	Synchronize()
	ExtruderLastMove() clock.Millis
	ExtruderEnabled() bool
	SetExtruderEnabled(on bool)
}

// Options wire a Monitor to its collaborators.
type Options struct {
	Clock    clock.Source
	Thermal  Thermal
	Motion   Motion
	Recorder Recorder
	Logger   *log.Logger

	// HeatedBed enables the bed watchdog.
	HeatedBed bool
}

// heaterWatch carries the per-heater sampling state behind a watchdog.
type heaterWatch struct {
	id          heater.ID
	dog         *Watchdog
	fallback    func() float64
	trigger     func() float64
	watchMotion bool

	baseline   float64
	lastTarget float64
	lastMove   clock.Millis
}

// Monitor supervises heater and extruder idleness.
type Monitor struct {
	mu sync.Mutex

	clock    clock.Source
	thermal  Thermal
	motion   Motion
	recorder Recorder
	logger   *log.Logger

	settings Settings

	nozzle   *heaterWatch
	bed      *heaterWatch
	extruder *Watchdog

	extruderSeen clock.Millis
}

// NewMonitor builds a monitor with the given settings.
func NewMonitor(settings Settings, opts Options) *Monitor {
	m := &Monitor{
		clock:    opts.Clock,
		thermal:  opts.Thermal,
		motion:   opts.Motion,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		settings: settings,
	}
	if m.recorder == nil {
		m.recorder = NopRecorder{}
	}
	if m.logger == nil {
		m.logger = log.GetLogger("idle")
	}

	m.nozzle = &heaterWatch{
		id:          heater.Extruder,
		fallback:    func() float64 { return m.settings.NozzleTarget },
		trigger:     func() float64 { return m.settings.Trigger },
		watchMotion: true,
	}
	m.nozzle.dog = NewWatchdog(ResourceNozzle,
		func() time.Duration { return m.settings.NozzleTimeout() },
		m.heaterActivity(m.nozzle),
		m.TimedOut,
	)

	if opts.HeatedBed {
		m.bed = &heaterWatch{
			id:       heater.HeaterBed,
			fallback: func() float64 { return m.settings.BedTarget },
			trigger:  func() float64 { return m.settings.BedTrigger },
		}
		m.bed.dog = NewWatchdog(ResourceBed,
			func() time.Duration { return m.settings.BedTimeoutDuration() },
			m.heaterActivity(m.bed),
			m.BedTimedOut,
		)
	}

	m.extruder = NewWatchdog(ResourceExtruder,
		func() time.Duration { return m.settings.NozzleTimeout() },
		m.extruderActivity,
		m.extruderIdle,
	)
	return m
}

// Check runs one supervision step against the current clock.
func (m *Monitor) Check() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.NowMs()
	m.checkHotends(now)
	m.checkEMotion(now)
}

// CheckHotends evaluates the heater watchdogs at now.
func (m *Monitor) CheckHotends(now clock.Millis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkHotends(now)
}

// CheckEMotion evaluates the extruder motion watchdog at now.
func (m *Monitor) CheckEMotion(now clock.Millis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkEMotion(now)
}

func (m *Monitor) checkHotends(now clock.Millis) {
	m.nozzle.dog.Evaluate(now)
	if m.bed != nil {
		m.bed.dog.Evaluate(now)
	}
}

func (m *Monitor) checkEMotion(now clock.Millis) {
	m.extruder.Evaluate(now)
}

// heaterActivity samples target, temperature and (for the nozzle) extruder
// motion. A target at or below the fallback leaves nothing to protect.
func (m *Monitor) heaterActivity(hw *heaterWatch) ActivityFunc {
	return func(now clock.Millis) (bool, bool) {
		target := m.thermal.Target(hw.id)
		current := m.thermal.Current(hw.id)

		changed := target != hw.lastTarget
		hw.lastTarget = target

		moved := false
		if hw.watchMotion && m.motion != nil {
			last := m.motion.ExtruderLastMove()
			moved = last != hw.lastMove
			hw.lastMove = last
		}

		if target <= hw.fallback() {
			return false, false
		}

		drift := math.Abs(current - hw.baseline)
		drifted := drift > 0 && drift >= hw.trigger()
		active := changed || moved || drifted
		if active || !hw.dog.Armed() {
			hw.baseline = current
		}
		return true, active
	}
}

func (m *Monitor) extruderActivity(now clock.Millis) (bool, bool) {
	if m.motion == nil || !m.motion.ExtruderEnabled() {
		return false, false
	}
	last := m.motion.ExtruderLastMove()
	moved := last != m.extruderSeen
	m.extruderSeen = last
	return true, moved
}

// extruderIdle drains the planner before deciding: a queued extruder move
// that completes during the drain counts as activity.
func (m *Monitor) extruderIdle(now clock.Millis) bool {
	m.motion.Synchronize()
	if last := m.motion.ExtruderLastMove(); last != m.extruderSeen {
		m.extruderSeen = last
		return false
	}
	m.motion.SetExtruderEnabled(false)
	ev := newEvent(KindExtruderDisabled, ResourceExtruder, now, "Extruder Idle Timeout")
	m.logger.WithField("timeout_s", m.settings.Timeout).Warn("extruder idle, motor disabled")
	m.recorder.Record(ev)
	return true
}

// TimedOut lowers the nozzle target to the fallback and reports whether
// the heater accepted it.
func (m *Monitor) TimedOut(now clock.Millis) bool {
	return m.lower(m.nozzle, KindNozzleTimeout, "Hotend Idle Timeout", now)
}

// BedTimedOut lowers the bed target to the fallback and reports whether
// the heater accepted it.
func (m *Monitor) BedTimedOut(now clock.Millis) bool {
	if m.bed == nil {
		return false
	}
	return m.lower(m.bed, KindBedTimeout, "Bed Idle Timeout", now)
}

func (m *Monitor) lower(hw *heaterWatch, kind Kind, msg string, now clock.Millis) bool {
	from := m.thermal.Target(hw.id)
	to := hw.fallback()
	entry := m.logger.WithFields(log.Fields{"heater": string(hw.id), "from": from, "to": to})
	if err := m.thermal.SetTarget(hw.id, to); err != nil {
		entry.WithError(err).Error("%s: failed to lower target", msg)
		return false
	}
	// The drop itself is not activity.
	hw.lastTarget = to
	entry.Warn(msg)

	ev := newEvent(kind, string(hw.id), now, msg)
	ev.From, ev.To = from, to
	m.recorder.Record(ev)
	return true
}

// Settings returns the active settings.
func (m *Monitor) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// SetSettings replaces the settings. Callers validate at their boundary.
// Running countdowns restart with the new timeouts on the next Check.
func (m *Monitor) SetSettings(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	m.nozzle.dog.armed = false
	m.extruder.armed = false
	if m.bed != nil {
		m.bed.dog.armed = false
	}
}

// HeatedBed reports whether the bed watchdog exists.
func (m *Monitor) HeatedBed() bool {
	return m.bed != nil
}

// WatchdogStatus is a read-only view of one watchdog.
type WatchdogStatus struct {
	Resource  string        `json:"resource"`
	State     State         `json:"state"`
	Deadline  clock.Millis  `json:"deadline_ms"`
	Remaining time.Duration `json:"remaining_ns"`
	Triggers  uint64        `json:"triggers"`
}

// Status is a snapshot of the monitor.
type Status struct {
	Settings Settings        `json:"settings"`
	Nozzle   WatchdogStatus  `json:"nozzle"`
	Bed      *WatchdogStatus `json:"bed,omitempty"`
	Extruder WatchdogStatus  `json:"extruder"`
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.NowMs()
	st := Status{
		Settings: m.settings,
		Nozzle:   watchdogStatus(m.nozzle.dog, now),
		Extruder: watchdogStatus(m.extruder, now),
	}
	if m.bed != nil {
		bed := watchdogStatus(m.bed.dog, now)
		st.Bed = &bed
	}
	return st
}

func watchdogStatus(w *Watchdog, now clock.Millis) WatchdogStatus {
	ws := WatchdogStatus{
		Resource: w.Name,
		State:    w.State(),
		Deadline: w.Deadline(),
		Triggers: w.Fired(),
	}
	if w.Armed() {
		ws.Remaining = clock.Pending(now, w.Deadline())
	}
	return ws
}

// String summarises the status for the console.
func (s Status) String() string {
	out := fmt.Sprintf("nozzle=%s extruder=%s", s.Nozzle.State, s.Extruder.State)
	if s.Bed != nil {
		out += fmt.Sprintf(" bed=%s", s.Bed.State)
	}
	return out
}
