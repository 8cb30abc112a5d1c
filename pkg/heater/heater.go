// Package heater holds heater targets and the temperatures reported for them.
package heater

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Heater control errors
var (
	ErrTargetTooHigh = errors.New("heater: target temperature too high")
	ErrTargetTooLow  = errors.New("heater: target temperature too low")
	ErrTargetInvalid = errors.New("heater: target temperature is not a number")
	ErrUnknownHeater = errors.New("heater: unknown heater")
)

// ID names a heater the way the printer configuration does.
type ID string

const (
	Extruder  ID = "extruder"
	HeaterBed ID = "heater_bed"
)

// Config holds configuration for a heater.
type Config struct {
	Name    ID
	MaxTemp float64
	MinTemp float64

	// Ambient is where the simulated temperature settles with the heater off.
	Ambient float64
	// TimeConstant of the simulated first-order response.
	TimeConstant time.Duration
}

// DefaultConfig returns a heater configuration for the given role.
func DefaultConfig(name ID) Config {
	cfg := Config{
		Name:         name,
		MaxTemp:      300,
		Ambient:      25,
		TimeConstant: 20 * time.Second,
	}
	if name == HeaterBed {
		cfg.MaxTemp = 120
		cfg.TimeConstant = 90 * time.Second
	}
	return cfg
}

// CheckTarget reports whether a heater built from c accepts target. Zero
// is always accepted.
func (c Config) CheckTarget(target float64) error {
	return checkTarget(target, c.MinTemp, c.MaxTemp)
}

func checkTarget(target, minTemp, maxTemp float64) error {
	switch {
	case math.IsNaN(target) || math.IsInf(target, 0):
		return ErrTargetInvalid
	case target > maxTemp:
		return ErrTargetTooHigh
	case target < 0 || (target < minTemp && target != 0):
		return ErrTargetTooLow
	}
	return nil
}

// Heater tracks a target and a simulated temperature reading.
type Heater struct {
	mu sync.RWMutex

	name    ID
	maxTemp float64
	minTemp float64
	ambient float64
	tau     float64

	target      float64
	temperature float64
}

// NewHeater creates a heater resting at ambient temperature.
func NewHeater(cfg Config) *Heater {
	tau := cfg.TimeConstant.Seconds()
	if tau <= 0 {
		tau = 1
	}
	return &Heater{
		name:        cfg.Name,
		maxTemp:     cfg.MaxTemp,
		minTemp:     cfg.MinTemp,
		ambient:     cfg.Ambient,
		tau:         tau,
		temperature: cfg.Ambient,
	}
}

func (h *Heater) Name() ID { return h.name }

// SetTarget sets the target temperature. Zero turns the heater off.
func (h *Heater) SetTarget(target float64) error {
	if err := h.CheckTarget(target); err != nil {
		return err
	}
	h.mu.Lock()
	h.target = target
	h.mu.Unlock()
	return nil
}

// CheckTarget validates target against the heater's limits without applying it.
func (h *Heater) CheckTarget(target float64) error {
	return checkTarget(target, h.minTemp, h.maxTemp)
}

func (h *Heater) GetTarget() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.target
}

func (h *Heater) GetTemperature() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.temperature
}

// SetTemperature overrides the reading, used when a real sensor reports.
func (h *Heater) SetTemperature(temp float64) {
	h.mu.Lock()
	h.temperature = temp
	h.mu.Unlock()
}

// Step advances the first-order thermal response by dt.
func (h *Heater) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	goal := h.ambient
	if h.target > 0 {
		goal = h.target
	}
	alpha := 1 - math.Exp(-dt.Seconds()/h.tau)
	h.temperature += (goal - h.temperature) * alpha
}

// Disable turns off the heater.
func (h *Heater) Disable() {
	h.mu.Lock()
	h.target = 0
	h.mu.Unlock()
}

// Status holds heater status information.
type Status struct {
	Name        ID      `json:"name"`
	Target      float64 `json:"target"`
	Temperature float64 `json:"temperature"`
}

func (h *Heater) GetStatus() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Status{Name: h.name, Target: h.target, Temperature: h.temperature}
}
