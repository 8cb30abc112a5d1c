// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pattern

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idleguard/pkg/errors"
)

func generate(t *testing.T, kind Kind) []string {
	t.Helper()
	p := DefaultParams()
	p.Kind = kind
	out, err := String(p)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}

func count(lines []string, prefix string) int {
	n := 0
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func TestPatternFraming(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			lines := generate(t, kind)
			assert.Equal(t, "M501", lines[0])
			assert.Equal(t, "M501", lines[len(lines)-1])
			assert.Contains(t, lines, "M140 S50")
			assert.Contains(t, lines, "M109 S220")
			assert.Contains(t, lines, "M104 S0")
			assert.Contains(t, lines, "G0 X150.00 Y150.00 Z2.00 E0.00 F6000.0")
			assert.Contains(t, lines, "G0 X150.00 Y150.00 Z0.30 E0.00 F600.0")
		})
	}
}

func TestAnchorLineExtrusion(t *testing.T) {
	lines := generate(t, FreqY)
	flow := 0.3 * 0.5 / (math.Pi * 1.75 * 1.75 / 4)
	assert.Contains(t, lines, fmt.Sprintf("G1 X20.00 Y150.00 Z0.30 E%.2f F2400.0", flow*130))
	assert.Contains(t, lines, fmt.Sprintf("G1 X20.00 Y20.00 Z0.30 E%.2f F2400.0", flow*260))
}

func TestFrequencyScan(t *testing.T) {
	lines := generate(t, FreqY)
	assert.Contains(t, lines, "M593 F0 ; input shaping off")
	assert.Equal(t, 1, count(lines, "M201 X10000 Y10000"))
	assert.Equal(t, 1, count(lines, "M201 X1000 Y1000"))

	// The scan ends 120mm along at the origin line, then coasts 7.2mm.
	found := false
	for _, l := range lines {
		if strings.HasPrefix(l, "G1 X140.00 Y20.00 Z0.30 ") {
			found = true
		}
	}
	assert.True(t, found)
	var coast string
	for i, l := range lines {
		if l == "M201 X1000 Y1000" {
			coast = lines[i+1]
		}
	}
	assert.True(t, strings.HasPrefix(coast, "G1 X147.20 Y20.00 Z0.30 "), coast)
}

func TestFrequencyScanZ(t *testing.T) {
	lines := generate(t, FreqZ)
	assert.Equal(t, 1, count(lines, "M201 X10000 Z10000"))
	// First peak lifts Z by the amplitude.
	assert.Equal(t, 1, count(lines, "G1 X21.00 Y20.00 Z0.80 "))
}

func TestZetaSeries(t *testing.T) {
	lines := generate(t, ZetaX)
	assert.NotContains(t, lines, "M593 F0 ; input shaping off")

	var zetas []string
	for _, l := range lines {
		if strings.HasPrefix(l, "M593 X D") {
			zetas = append(zetas, strings.TrimPrefix(l, "M593 X D"))
		}
	}
	require.Len(t, zetas, 2*zetaPairs)
	assert.Equal(t, "0.05", zetas[0])
	assert.Equal(t, "0.10", zetas[1])
	assert.Equal(t, "1.00", zetas[len(zetas)-1])
	assert.Equal(t, 2*zetaPairs, count(lines, "M201 X10000 Y10000"))
}

func TestReverseScanEndsAtOrigin(t *testing.T) {
	g := &generator{p: DefaultParams()}
	g.p.TopFreq = 2
	g.buildScan()

	rev := g.reversed()
	require.Len(t, rev, 4)
	assert.Equal(t, 3.0, rev[0].along)
	assert.Equal(t, 0.5, rev[0].across)
	assert.Equal(t, g.zigzags[3].feed, rev[0].feed)
	assert.Equal(t, 0.0, rev[3].along)
	assert.Equal(t, 0.0, rev[3].across)
	assert.Equal(t, g.zigzags[0].feed, rev[3].feed)
}

func TestExtrusionIsMonotonic(t *testing.T) {
	lines := generate(t, ZetaY)
	last := -1.0
	for _, l := range lines {
		if !strings.HasPrefix(l, "G0 ") && !strings.HasPrefix(l, "G1 ") {
			continue
		}
		for _, f := range strings.Fields(l) {
			if strings.HasPrefix(f, "E") {
				var e float64
				_, err := fmt.Sscanf(f, "E%f", &e)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, e, last, l)
				last = e
			}
		}
	}
	assert.Greater(t, last, 0.0)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Zeta_Y ")
	require.NoError(t, err)
	assert.Equal(t, ZetaY, k)

	_, err = ParseKind("zeta_z")
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(p *Params)
		option string
	}{
		{"zero wavelength", func(p *Params) { p.Wavelength = 0 }, "wavelength"},
		{"negative decel", func(p *Params) { p.Decel = -1 }, "decel"},
		{"no frequencies", func(p *Params) { p.TopFreq = 0 }, "top_freq"},
		{"cold bed", func(p *Params) { p.BedTemp = -5 }, "temperature"},
		{"nan speed", func(p *Params) { p.ZSpeed = math.NaN() }, "z_speed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.mutate(&p)
			err := Generate(&strings.Builder{}, p)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.option)
		})
	}
}
