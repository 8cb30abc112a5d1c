// Idle protection metrics
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"net/http"
	goruntime "runtime"
	"time"

	"idleguard/pkg/heater"
	"idleguard/pkg/idle"
)

// ContentType of the text exposition format.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var watchdogStates = []idle.State{idle.StateDisabled, idle.StateQuiescent, idle.StateArmed, idle.StateTriggered}

// GuardMetrics holds the daemon's metrics.
type GuardMetrics struct {
	ProtectionEvents  *Counter
	WatchdogState     *Gauge
	WatchdogRemaining *Gauge
	WatchdogTriggers  *Gauge

	HeaterTemperature *Gauge
	HeaterTarget      *Gauge

	GCodeCommands *Counter
	GCodeErrors   *Counter
	GCodeDuration *Histogram
	TickDuration  *Histogram

	APIClients   *Gauge
	Uptime       *Gauge
	GoGoroutines *Gauge
	GoMemoryHeap *Gauge

	registry  *Registry
	startTime time.Time
}

func NewGuardMetrics() *GuardMetrics {
	gm := &GuardMetrics{
		ProtectionEvents:  NewCounter("idleguard_protection_events_total", "Protective actions taken, by kind"),
		WatchdogState:     NewGauge("idleguard_watchdog_state", "1 for the current state of each watchdog"),
		WatchdogRemaining: NewGauge("idleguard_watchdog_remaining_seconds", "Time until an armed watchdog fires"),
		WatchdogTriggers:  NewGauge("idleguard_watchdog_triggers", "Times each watchdog has fired"),

		HeaterTemperature: NewGauge("idleguard_heater_temperature_celsius", "Current heater temperature"),
		HeaterTarget:      NewGauge("idleguard_heater_target_celsius", "Heater target temperature"),

		GCodeCommands: NewCounter("idleguard_gcode_commands_total", "G-code commands executed, by command"),
		GCodeErrors:   NewCounter("idleguard_gcode_errors_total", "G-code commands that failed, by command"),
		GCodeDuration: NewHistogram("idleguard_gcode_duration_seconds", "G-code execution time", DefaultBuckets()),
		TickDuration:  NewHistogram("idleguard_tick_duration_seconds", "Duration of one monitor tick", ExponentialBuckets(0.0001, 4, 8)),

		APIClients:   NewGauge("idleguard_api_clients", "Connected websocket clients"),
		Uptime:       NewGauge("idleguard_uptime_seconds", "Seconds since start"),
		GoGoroutines: NewGauge("idleguard_go_goroutines", "Number of goroutines"),
		GoMemoryHeap: NewGauge("idleguard_go_memory_heap_bytes", "Heap bytes in use"),

		registry:  NewRegistry(),
		startTime: time.Now(),
	}
	gm.registry.MustRegister(
		gm.ProtectionEvents, gm.WatchdogState, gm.WatchdogRemaining, gm.WatchdogTriggers,
		gm.HeaterTemperature, gm.HeaterTarget,
		gm.GCodeCommands, gm.GCodeErrors, gm.GCodeDuration, gm.TickDuration,
		gm.APIClients, gm.Uptime, gm.GoGoroutines, gm.GoMemoryHeap,
	)
	return gm
}

// Record counts a protection event. GuardMetrics is an idle.Recorder.
func (gm *GuardMetrics) Record(ev idle.Event) {
	gm.ProtectionEvents.Inc(Labels{"kind": string(ev.Kind)})
}

// ObserveStatus exports the watchdog states of a monitor snapshot.
func (gm *GuardMetrics) ObserveStatus(st idle.Status) {
	dogs := []idle.WatchdogStatus{st.Nozzle, st.Extruder}
	if st.Bed != nil {
		dogs = append(dogs, *st.Bed)
	}
	for _, d := range dogs {
		res := Labels{"resource": d.Resource}
		for _, s := range watchdogStates {
			gm.WatchdogState.SetBool(res.With("state", string(s)), d.State == s)
		}
		gm.WatchdogRemaining.Set(res, d.Remaining.Seconds())
		gm.WatchdogTriggers.Set(res, float64(d.Triggers))
	}
}

// ObserveHeaters exports heater temperatures and targets.
func (gm *GuardMetrics) ObserveHeaters(statuses []heater.Status) {
	for _, s := range statuses {
		l := Labels{"heater": string(s.Name)}
		gm.HeaterTemperature.Set(l, s.Temperature)
		gm.HeaterTarget.Set(l, s.Target)
	}
}

// RecordCommand counts one executed command.
func (gm *GuardMetrics) RecordCommand(command string, d time.Duration, err error) {
	l := Labels{"command": command}
	gm.GCodeCommands.Inc(l)
	if err != nil {
		gm.GCodeErrors.Inc(l)
	}
	gm.GCodeDuration.Observe(nil, d.Seconds())
}

// UpdateSystem refreshes runtime metrics.
func (gm *GuardMetrics) UpdateSystem() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)
	gm.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	gm.GoMemoryHeap.Set(nil, float64(m.HeapAlloc))
	gm.Uptime.Set(nil, time.Since(gm.startTime).Seconds())
}

func (gm *GuardMetrics) Registry() *Registry {
	return gm.registry
}

func (gm *GuardMetrics) Gather() string {
	return gm.registry.Gather()
}

// Handler serves the metrics for GET and HEAD requests.
func (gm *GuardMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		gm.UpdateSystem()
		output := gm.Gather()
		w.Header().Set("Content-Type", ContentType)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(output)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(output))
	})
}
