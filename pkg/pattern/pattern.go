// Input shaping tuning patterns
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package pattern generates G-code for ringing test prints. Each pattern
// draws zig-zag frequency scans from 0Hz up to a top frequency at steadily
// increasing speed; the resonant frequency shows as the widest oscillation.
//
// Horizontal scans oscillate in Y and vertical scans oscillate in X, so X
// frequencies are read off the vertical lines. The zeta patterns repeat the
// scan with the damping ratio stepping up by 0.05 per line.
package pattern

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"idleguard/pkg/errors"
)

// Kind selects the pattern.
type Kind string

const (
	FreqX Kind = "freq_x"
	FreqY Kind = "freq_y"
	FreqZ Kind = "freq_z"
	ZetaX Kind = "zeta_x"
	ZetaY Kind = "zeta_y"
)

// Kinds lists the supported patterns.
var Kinds = []Kind{FreqX, FreqY, FreqZ, ZetaX, ZetaY}

const (
	zetaStep  = 0.05
	zetaPairs = 10
	// Acceleration limit while drawing a scan.
	scanAccel = 10000
)

// Params describe the print.
type Params struct {
	Kind Kind `yaml:"kind"`

	LayerHeight float64 `yaml:"layer_height"` // mm
	LineWidth   float64 `yaml:"line_width"`   // mm
	FilamentDia float64 `yaml:"filament_dia"` // mm
	NozzleTemp  int     `yaml:"nozzle_temp"`
	BedTemp     int     `yaml:"bed_temp"`

	ZSpeed      float64 `yaml:"z_speed"`      // mm/s
	TravelSpeed float64 `yaml:"travel_speed"` // mm/s
	AnchorSpeed float64 `yaml:"anchor_speed"` // mm/s

	// Wavelength is the width of one full zig-zag.
	Wavelength float64 `yaml:"wavelength"`
	// Amplitude is the peak to peak size of the zig-zag.
	Amplitude float64 `yaml:"amplitude"`
	// TopFreq is where each scan ends, in Hz.
	TopFreq int `yaml:"top_freq"`
	// Decel is the deceleration at the end of a scan, in mm/s^2.
	Decel float64 `yaml:"decel"`
}

func DefaultParams() Params {
	return Params{
		Kind:        FreqZ,
		LayerHeight: 0.3,
		LineWidth:   0.5,
		FilamentDia: 1.75,
		NozzleTemp:  220,
		BedTemp:     50,
		ZSpeed:      10,
		TravelSpeed: 100,
		AnchorSpeed: 40,
		Wavelength:  2,
		Amplitude:   0.5,
		TopFreq:     60,
		Decel:       1000,
	}
}

// ParseKind accepts a pattern name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", errors.ConfigValidationError("pattern", "kind", fmt.Sprintf("unknown pattern %q", s))
}

// Validate rejects parameters that cannot produce a printable pattern.
func (p Params) Validate() error {
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"layer_height", p.LayerHeight},
		{"line_width", p.LineWidth},
		{"filament_dia", p.FilamentDia},
		{"z_speed", p.ZSpeed},
		{"travel_speed", p.TravelSpeed},
		{"anchor_speed", p.AnchorSpeed},
		{"wavelength", p.Wavelength},
		{"amplitude", p.Amplitude},
		{"decel", p.Decel},
	}
	for _, f := range positive {
		if !(f.v > 0) {
			return errors.ConfigValidationError("pattern", f.name, "must be positive")
		}
	}
	if p.TopFreq <= 0 {
		return errors.ConfigValidationError("pattern", "top_freq", "must be positive")
	}
	if p.NozzleTemp < 0 || p.BedTemp < 0 {
		return errors.ConfigValidationError("pattern", "temperature", "must not be negative")
	}
	return nil
}

// zigzag is one vertex of a scan: the offset along the scan, the offset
// across it, and the feed rate reaching it.
type zigzag struct {
	along  float64
	across float64
	feed   float64
}

type generator struct {
	p    Params
	w    *bufio.Writer
	flow float64

	x, y, z, e float64
	zigzags    []zigzag
	coast      float64
}

// Generate writes the pattern to w.
func Generate(w io.Writer, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	g := &generator{
		p:    p,
		w:    bufio.NewWriter(w),
		flow: p.LayerHeight * p.LineWidth / (math.Pi * p.FilamentDia * p.FilamentDia / 4),
	}
	g.buildScan()
	g.run()
	return g.w.Flush()
}

// String returns the pattern as text.
func String(p Params) (string, error) {
	var sb strings.Builder
	if err := Generate(&sb, p); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *generator) buildScan() {
	seg := math.Sqrt(g.p.Amplitude*g.p.Amplitude + g.p.Wavelength*g.p.Wavelength/4)
	for i := 0; i < g.p.TopFreq; i++ {
		half, full := float64(i)+0.5, float64(i)+1
		g.zigzags = append(g.zigzags,
			zigzag{along: g.p.Wavelength * half, across: g.p.Amplitude, feed: seg * 2 * half},
			zigzag{along: g.p.Wavelength * full, across: 0, feed: seg * 2 * full},
		)
	}
	top := g.p.Wavelength * float64(g.p.TopFreq)
	g.coast = top * top / 2 / g.p.Decel
}

func (g *generator) printf(format string, args ...interface{}) {
	fmt.Fprintf(g.w, format, args...)
	g.w.WriteByte('\n')
}

func (g *generator) blank() {
	g.w.WriteByte('\n')
}

func (g *generator) move(code string, f float64) {
	line := fmt.Sprintf("%s X%.2f Y%.2f Z%.2f E%.2f", code, g.x, g.y, g.z, g.e)
	if f > 0 {
		line += fmt.Sprintf(" F%.1f", f*60)
	}
	g.printf("%s", line)
}

// travel moves without extruding. f is in mm/s; zero keeps the feed rate.
func (g *generator) travel(x, y, z, f float64) {
	g.x, g.y, g.z = x, y, z
	g.move("G0", f)
}

// line extrudes along a straight line.
func (g *generator) line(x, y, z, f float64) {
	dx, dy, dz := x-g.x, y-g.y, z-g.z
	g.e += g.flow * math.Sqrt(dx*dx+dy*dy+dz*dz)
	g.x, g.y, g.z = x, y, z
	g.move("G1", f)
}

func (g *generator) run() {
	p := g.p
	g.printf("M501")
	g.blank()

	g.printf("M205 S0 T0 ; minimum feed rates")
	if strings.HasPrefix(string(p.Kind), "freq") {
		g.printf("M593 F0 ; input shaping off")
	}
	g.printf("M900 K0 ; linear advance off")
	g.printf("G90")
	g.blank()

	g.printf("M107")
	g.printf("M140 S%d", p.BedTemp)
	g.printf("M104 S%d", p.NozzleTemp)
	g.blank()

	g.printf("G28")
	g.printf("G92 E0")
	g.blank()

	g.printf("M190 S%d", p.BedTemp)
	g.printf("M109 S%d", p.NozzleTemp)
	g.blank()

	g.printf("G29")
	g.blank()

	// anchor lines
	g.travel(150, 150, 2, p.TravelSpeed)
	g.travel(g.x, g.y, p.LayerHeight, p.ZSpeed)
	g.line(20, 150, g.z, p.AnchorSpeed)
	g.line(20, 20, g.z, p.AnchorSpeed)

	g.printf("M203 X500 Y500 Z500")
	g.printf("M204 P10000")
	g.printf("M205 X500 Y500 Z500")
	g.printf("M205 J0.3")
	g.blank()

	switch p.Kind {
	case FreqZ:
		g.scanZ()
	case FreqY:
		g.scanY()
	case FreqX:
		g.line(g.x+5, g.y, g.z, 0)
		g.scanX()
	case ZetaY:
		g.line(g.x+5, g.y, g.z, 0)
		g.zetaSeries("Y", g.scanY, g.scanYReverse, func() { g.travel(g.x, g.y+5, g.z, p.TravelSpeed) })
	case ZetaX:
		g.line(g.x+5, g.y, g.z, 0)
		g.zetaSeries("X", g.scanX, g.scanXReverse, func() { g.travel(g.x+5, g.y, g.z, p.TravelSpeed) })
	}

	g.travel(g.x, g.y, 2, p.ZSpeed)
	g.blank()

	g.printf("M140 S0")
	g.printf("M104 S0")
	g.printf("G92 E0")
	g.blank()
	g.printf("M501")
}

// zetaSeries draws alternating forward and reverse scans, raising the
// damping ratio before each.
func (g *generator) zetaSeries(axis string, forward, reverse func(), step func()) {
	zeta := 0.0
	for i := 0; i < zetaPairs; i++ {
		for _, scan := range []func(){forward, reverse} {
			zeta += zetaStep
			g.printf("M593 %s D%.2f", axis, zeta)
			scan()
			step()
		}
	}
}

func (g *generator) limits(axes string, v float64) {
	a, b := axes[:1], axes[1:]
	g.printf("M201 %s%.0f %s%.0f", a, v, b, v)
}

// scanZ draws Z zig-zags at constant X acceleration.
func (g *generator) scanZ() {
	g.limits("XZ", scanAccel)
	x0, z0 := g.x, g.z
	for _, zz := range g.zigzags {
		g.line(x0+zz.along, g.y, z0+zz.across, zz.feed)
	}
	g.limits("XZ", g.p.Decel)
	g.line(g.x+g.coast, g.y, g.z, 0)
	g.blank()
}

// scanY draws Y zig-zags at constant X acceleration.
func (g *generator) scanY() {
	g.limits("XY", scanAccel)
	x0, y0 := g.x, g.y
	for _, zz := range g.zigzags {
		g.line(x0+zz.along, y0+zz.across, g.z, zz.feed)
	}
	g.limits("XY", g.p.Decel)
	g.line(g.x+g.coast, g.y, g.z, 0)
	g.blank()
}

// scanX draws X zig-zags at constant Y acceleration.
func (g *generator) scanX() {
	g.limits("XY", scanAccel)
	x0, y0 := g.x, g.y
	for _, zz := range g.zigzags {
		g.line(x0+zz.across, y0+zz.along, g.z, zz.feed)
	}
	g.limits("XY", g.p.Decel)
	g.line(g.x, g.y+g.coast, g.z, 0)
	g.blank()
}

// reversed returns the scan vertices walked back to front, so a reverse
// scan starts at top speed and ends at the scan origin.
func (g *generator) reversed() []zigzag {
	n := len(g.zigzags)
	out := make([]zigzag, n)
	for i := range g.zigzags {
		src := n - 1 - i
		var along, across float64
		if src > 0 {
			along, across = g.zigzags[src-1].along, g.zigzags[src-1].across
		}
		out[i] = zigzag{along: along, across: across, feed: g.zigzags[src].feed}
	}
	return out
}

// scanYReverse ramps up to speed while travelling back, then draws the Y
// scan from its far end.
func (g *generator) scanYReverse() {
	last := g.zigzags[len(g.zigzags)-1]
	g.line(g.x-g.coast, g.y, g.z, last.feed)
	g.limits("XY", scanAccel)
	x0, y0 := g.x-last.along, g.y-last.across
	for _, zz := range g.reversed() {
		g.line(x0+zz.along, y0+zz.across, g.z, zz.feed)
	}
	g.limits("XY", g.p.Decel)
	g.blank()
}

// scanXReverse is scanYReverse for X zig-zags.
func (g *generator) scanXReverse() {
	last := g.zigzags[len(g.zigzags)-1]
	g.line(g.x, g.y-g.coast, g.z, last.feed)
	g.limits("XY", scanAccel)
	x0, y0 := g.x-last.across, g.y-last.along
	for _, zz := range g.reversed() {
		g.line(x0+zz.across, y0+zz.along, g.z, zz.feed)
	}
	g.limits("XY", g.p.Decel)
	g.blank()
}
