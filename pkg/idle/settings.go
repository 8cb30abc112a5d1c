// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package idle

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"idleguard/pkg/errors"
	"idleguard/pkg/heater"
)

// Factory defaults.
const (
	DefaultTimeout      = 300 // seconds
	DefaultTrigger      = 2.0 // degrees C
	DefaultNozzleTarget = 0.0
	DefaultBedTarget    = 0.0

	// MaxTimeout keeps now+timeout comparable on the wrapping millisecond clock.
	MaxTimeout = 86400
	// MaxTemp bounds fallback targets.
	MaxTemp = 500.0
)

// Settings configure idle protection. A zero timeout disables the
// corresponding watchdog; a zero trigger means any non-zero change counts.
type Settings struct {
	Timeout      int     `yaml:"timeout" json:"timeout"`
	BedTimeout   int     `yaml:"bed_timeout" json:"bed_timeout"`
	Trigger      float64 `yaml:"trigger" json:"trigger"`
	BedTrigger   float64 `yaml:"bed_trigger" json:"bed_trigger"`
	NozzleTarget float64 `yaml:"nozzle_target" json:"nozzle_target"`
	BedTarget    float64 `yaml:"bed_target" json:"bed_target"`
}

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	var s Settings
	s.SetDefaults()
	return s
}

// SetDefaults restores every field to its factory value.
func (s *Settings) SetDefaults() {
	s.Timeout = DefaultTimeout
	s.BedTimeout = DefaultTimeout
	s.Trigger = DefaultTrigger
	s.BedTrigger = DefaultTrigger
	s.NozzleTarget = DefaultNozzleTarget
	s.BedTarget = DefaultBedTarget
}

func (s Settings) NozzleTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

func (s Settings) BedTimeoutDuration() time.Duration {
	return time.Duration(s.BedTimeout) * time.Second
}

// Validate rejects values the monitor cannot honour.
func (s Settings) Validate() error {
	const section = "idle_protection"
	check := func(option string, ok bool, reason string) error {
		if ok {
			return nil
		}
		return errors.ConfigValidationError(section, option, reason)
	}
	checks := []error{
		check("timeout", s.Timeout >= 0 && s.Timeout <= MaxTimeout, fmt.Sprintf("must be in [0, %d] seconds", MaxTimeout)),
		check("bed_timeout", s.BedTimeout >= 0 && s.BedTimeout <= MaxTimeout, fmt.Sprintf("must be in [0, %d] seconds", MaxTimeout)),
		check("trigger", inRange(s.Trigger, 0, MaxTemp), fmt.Sprintf("must be in [0, %g]", MaxTemp)),
		check("bed_trigger", inRange(s.BedTrigger, 0, MaxTemp), fmt.Sprintf("must be in [0, %g]", MaxTemp)),
		check("nozzle_target", inRange(s.NozzleTarget, 0, MaxTemp), fmt.Sprintf("must be in [0, %g]", MaxTemp)),
		check("bed_target", inRange(s.BedTarget, 0, MaxTemp), fmt.Sprintf("must be in [0, %g]", MaxTemp)),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// TargetChecker reports whether a heater accepts a target.
type TargetChecker interface {
	CheckTarget(id heater.ID, target float64) error
}

// ValidateFor runs Validate and then checks the fallback targets against the
// heaters they are applied to. The bed target is only checked when a heated
// bed exists.
func (s Settings) ValidateFor(heaters TargetChecker, heatedBed bool) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := heaters.CheckTarget(heater.Extruder, s.NozzleTarget); err != nil {
		return errors.ConfigValidationError("idle_protection", "nozzle_target", "not accepted: "+err.Error())
	}
	if heatedBed {
		if err := heaters.CheckTarget(heater.HeaterBed, s.BedTarget); err != nil {
			return errors.ConfigValidationError("idle_protection", "bed_target", "not accepted: "+err.Error())
		}
	}
	return nil
}

// Clamp coerces every field into its valid range.
func (s Settings) Clamp() Settings {
	s.Timeout = clampInt(s.Timeout, 0, MaxTimeout)
	s.BedTimeout = clampInt(s.BedTimeout, 0, MaxTimeout)
	s.Trigger = clampFloat(s.Trigger, 0, MaxTemp)
	s.BedTrigger = clampFloat(s.BedTrigger, 0, MaxTemp)
	s.NozzleTarget = clampFloat(s.NozzleTarget, 0, MaxTemp)
	s.BedTarget = clampFloat(s.BedTarget, 0, MaxTemp)
	return s
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Command renders the settings as the M86 line that reproduces them.
func (s Settings) Command(heatedBed bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "M86 S%d T%s E%s", s.Timeout, formatTemp(s.Trigger), formatTemp(s.NozzleTarget))
	if heatedBed {
		fmt.Fprintf(&sb, " B%s U%d R%s", formatTemp(s.BedTarget), s.BedTimeout, formatTemp(s.BedTrigger))
	}
	return sb.String()
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
