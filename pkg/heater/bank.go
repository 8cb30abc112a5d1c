package heater

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Bank owns the configured heaters and addresses them by ID.
type Bank struct {
	mu      sync.RWMutex
	heaters map[ID]*Heater
}

func NewBank() *Bank {
	return &Bank{heaters: make(map[ID]*Heater)}
}

// Add registers a heater, replacing any heater with the same name.
func (b *Bank) Add(h *Heater) {
	b.mu.Lock()
	b.heaters[h.Name()] = h
	b.mu.Unlock()
}

func (b *Bank) Lookup(id ID) (*Heater, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.heaters[id]
	return h, ok
}

func (b *Bank) Has(id ID) bool {
	_, ok := b.Lookup(id)
	return ok
}

// Target returns the target of id, or 0 if it is not configured.
func (b *Bank) Target(id ID) float64 {
	if h, ok := b.Lookup(id); ok {
		return h.GetTarget()
	}
	return 0
}

// Current returns the temperature reading of id, or 0 if it is not configured.
func (b *Bank) Current(id ID) float64 {
	if h, ok := b.Lookup(id); ok {
		return h.GetTemperature()
	}
	return 0
}

func (b *Bank) SetTarget(id ID, target float64) error {
	h, ok := b.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHeater, id)
	}
	if err := h.SetTarget(target); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

// CheckTarget validates target for id without applying it.
func (b *Bank) CheckTarget(id ID, target float64) error {
	h, ok := b.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHeater, id)
	}
	if err := h.CheckTarget(target); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

// Step advances every heater's thermal response.
func (b *Bank) Step(dt time.Duration) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.heaters {
		h.Step(dt)
	}
}

// DisableAll turns every heater off.
func (b *Bank) DisableAll() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.heaters {
		h.Disable()
	}
}

// Statuses returns a snapshot of every heater ordered by name.
func (b *Bank) Statuses() []Status {
	b.mu.RLock()
	out := make([]Status, 0, len(b.heaters))
	for _, h := range b.heaters {
		out = append(out, h.GetStatus())
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
