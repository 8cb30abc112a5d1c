// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package idle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"idleguard/pkg/errors"
	"idleguard/pkg/heater"
)

func TestSetDefaults(t *testing.T) {
	s := Settings{Timeout: 5, Trigger: 9, NozzleTarget: 99}
	s.SetDefaults()
	assert.Equal(t, DefaultSettings(), s)
	assert.Equal(t, DefaultTimeout, s.BedTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		option string
	}{
		{"negative timeout", func(s *Settings) { s.Timeout = -1 }, "timeout"},
		{"huge bed timeout", func(s *Settings) { s.BedTimeout = MaxTimeout + 1 }, "bed_timeout"},
		{"negative trigger", func(s *Settings) { s.Trigger = -0.5 }, "trigger"},
		{"negative bed trigger", func(s *Settings) { s.BedTrigger = -2 }, "bed_trigger"},
		{"nozzle target too hot", func(s *Settings) { s.NozzleTarget = 600 }, "nozzle_target"},
		{"negative bed target", func(s *Settings) { s.BedTarget = -1 }, "bed_target"},
		{"NaN trigger", func(s *Settings) { s.Trigger = math.NaN() }, "trigger"},
		{"infinite bed trigger", func(s *Settings) { s.BedTrigger = math.Inf(1) }, "bed_trigger"},
		{"NaN nozzle target", func(s *Settings) { s.NozzleTarget = math.NaN() }, "nozzle_target"},
		{"infinite bed target", func(s *Settings) { s.BedTarget = math.Inf(-1) }, "bed_target"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if assert.Error(t, err) {
				assert.True(t, errors.Is(err, errors.ErrConfigValidation))
				assert.Contains(t, err.Error(), tt.option)
			}
		})
	}
	assert.NoError(t, DefaultSettings().Validate())
}

func TestClamp(t *testing.T) {
	s := Settings{Timeout: -5, BedTimeout: MaxTimeout * 2, Trigger: -1, NozzleTarget: 900, BedTarget: 60}
	c := s.Clamp()
	assert.Equal(t, 0, c.Timeout)
	assert.Equal(t, MaxTimeout, c.BedTimeout)
	assert.Equal(t, 0.0, c.Trigger)
	assert.Equal(t, MaxTemp, c.NozzleTarget)
	assert.Equal(t, 60.0, c.BedTarget)
	assert.NoError(t, c.Validate())
}

func TestClampNaN(t *testing.T) {
	c := Settings{Trigger: math.NaN(), NozzleTarget: math.NaN()}.Clamp()
	assert.Equal(t, 0.0, c.Trigger)
	assert.Equal(t, 0.0, c.NozzleTarget)
}

func TestValidateFor(t *testing.T) {
	bank := heater.NewBank()
	bank.Add(heater.NewHeater(heater.Config{Name: heater.Extruder, MinTemp: 170, MaxTemp: 300}))
	bank.Add(heater.NewHeater(heater.DefaultConfig(heater.HeaterBed)))

	tests := []struct {
		name      string
		mutate    func(*Settings)
		heatedBed bool
		option    string
	}{
		{"fallback above max_temp", func(s *Settings) { s.NozzleTarget = 350 }, true, "nozzle_target"},
		{"fallback below min_temp", func(s *Settings) { s.NozzleTarget = 150 }, true, "nozzle_target"},
		{"bed fallback above max_temp", func(s *Settings) { s.BedTarget = 130 }, true, "bed_target"},
		{"range checks run first", func(s *Settings) { s.Timeout = -1 }, true, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.ValidateFor(bank, tt.heatedBed)
			if assert.Error(t, err) {
				assert.True(t, errors.Is(err, errors.ErrConfigValidation))
				assert.Contains(t, err.Error(), tt.option)
			}
		})
	}

	s := DefaultSettings()
	s.NozzleTarget = 180
	assert.NoError(t, s.ValidateFor(bank, true))
	s.NozzleTarget = 0
	assert.NoError(t, s.ValidateFor(bank, true), "zero is always accepted")
	s.BedTarget = 130
	assert.NoError(t, s.ValidateFor(bank, false), "bed target unchecked without a heated bed")
}

func TestCommand(t *testing.T) {
	s := Settings{Timeout: 300, BedTimeout: 600, Trigger: 2.5, BedTrigger: 1, NozzleTarget: 150, BedTarget: 0}
	assert.Equal(t, "M86 S300 T2.5 E150", s.Command(false))
	assert.Equal(t, "M86 S300 T2.5 E150 B0 U600 R1", s.Command(true))
}
