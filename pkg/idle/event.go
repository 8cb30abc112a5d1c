// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package idle

import (
	"time"

	"github.com/google/uuid"

	"idleguard/pkg/clock"
)

// Kind classifies a protection event.
type Kind string

const (
	KindNozzleTimeout    Kind = "nozzle_timeout"
	KindBedTimeout       Kind = "bed_timeout"
	KindExtruderDisabled Kind = "extruder_disabled"
)

// Resource names used in events and status.
const (
	ResourceNozzle   = "extruder"
	ResourceBed      = "heater_bed"
	ResourceExtruder = "extruder_motor"
)

// Event describes one protective action taken by the monitor.
type Event struct {
	ID       uuid.UUID    `json:"id"`
	Kind     Kind         `json:"kind"`
	Resource string       `json:"resource"`
	At       time.Time    `json:"at"`
	Clock    clock.Millis `json:"clock_ms"`
	From     float64      `json:"from"`
	To       float64      `json:"to"`
	Message  string       `json:"message"`
}

func newEvent(kind Kind, resource string, now clock.Millis, msg string) Event {
	return Event{
		ID:       uuid.New(),
		Kind:     kind,
		Resource: resource,
		At:       time.Now().UTC(),
		Clock:    now,
		Message:  msg,
	}
}

// Recorder receives protection events. Record is called on the loop
// goroutine and must not block.
type Recorder interface {
	Record(event Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Event)

func (f RecorderFunc) Record(event Event) { f(event) }

type NopRecorder struct{}

func (NopRecorder) Record(Event) {}

// MultiRecorder fans an event out to several recorders.
type MultiRecorder struct {
	recorders []Recorder
}

func NewMultiRecorder(recorders ...Recorder) MultiRecorder {
	return MultiRecorder{recorders: recorders}
}

func (m MultiRecorder) Record(event Event) {
	for _, rec := range m.recorders {
		if rec != nil {
			rec.Record(event)
		}
	}
}
