package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idleguard/pkg/errors"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		name string
		args map[string]string
		text string
	}{
		{"G1 X10 Y-2.5 E0.4 F1200", "G1", map[string]string{"X": "10", "Y": "-2.5", "E": "0.4", "F": "1200"}, ""},
		{"m86 s300 t2.5", "M86", map[string]string{"S": "300", "T": "2.5"}, ""},
		{"M593 X F40 ; x only", "M593", map[string]string{"X": "", "F": "40"}, ""},
		{"M140 S 0", "M140", map[string]string{"S": "0"}, ""},
		{"N12 M104 S210*87", "M104", map[string]string{"S": "210"}, ""},
		{"G1 X5 (move) Y6", "G1", map[string]string{"X": "5", "Y": "6"}, ""},
		{"SET_IDLE TIMEOUT=60", "SET_IDLE", map[string]string{"TIMEOUT": "60"}, ""},
		{"M117 Hello; World", "M117", map[string]string{}, "Hello"},
		{"M117 Q60 S", "M117", map[string]string{}, "Q60 S"},
		{"M2 Print done", "M2", map[string]string{}, "Print done"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := ParseLine(tt.line)
			require.NoError(t, err)
			require.NotNil(t, cmd)
			assert.Equal(t, tt.name, cmd.Name)
			assert.Equal(t, tt.args, cmd.Args)
			if tt.text != "" {
				assert.Equal(t, tt.text, cmd.Text)
			}
		})
	}
}

func TestParseLineEmpty(t *testing.T) {
	for _, line := range []string{"", "   ", "; comment only", "N5"} {
		cmd, err := ParseLine(line)
		assert.NoError(t, err, line)
		assert.Nil(t, cmd, line)
	}
}

func TestParseLineInvalidName(t *testing.T) {
	_, err := ParseLine("m86-bad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrGCodeParse))
}

func TestCommandParams(t *testing.T) {
	cmd, err := ParseLine("M593 X D0.2 F abc Y0")
	require.NoError(t, err)

	assert.True(t, cmd.Seen())
	assert.True(t, cmd.Has("d"))
	assert.False(t, cmd.Has("T"))
	assert.True(t, cmd.Bool("X"))
	assert.False(t, cmd.Bool("Y"))
	assert.False(t, cmd.Bool("Z"))

	d, err := cmd.Float("D", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.2, d)

	_, err = cmd.Float("F", 0)
	assert.True(t, errors.Is(err, errors.ErrGCodeInvalidParam))

	v, err := cmd.Float("Q", 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = cmd.RequireFloat("S")
	assert.True(t, errors.Is(err, errors.ErrGCodeMissingParam))
}

func TestCommandFloatRejectsNonFinite(t *testing.T) {
	cmd, err := ParseLine("M593 DNaN FInf S-inf T+Infinity")
	require.NoError(t, err)
	for _, param := range []string{"D", "F", "S", "T"} {
		_, err := cmd.Float(param, 0)
		assert.True(t, errors.Is(err, errors.ErrGCodeInvalidParam), "%s: %v", param, err)
	}
	_, err = cmd.Int("S", 0)
	assert.Error(t, err)
}

func TestCommandInt(t *testing.T) {
	cmd, _ := ParseLine("M891 T5.7")
	id, err := cmd.Int("T", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
}
