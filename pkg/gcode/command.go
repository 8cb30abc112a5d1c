// Package gcode parses command lines and dispatches them to registered
// handlers.
package gcode

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"idleguard/pkg/errors"
)

// Command is one parsed line.
type Command struct {
	Name string
	Args map[string]string
	// Text is everything after the command name, for commands that take a
	// free-form message (M117, M2, M118).
	Text string
	Raw  string
}

// textCommands take the rest of the line as a message.
var textCommands = map[string]bool{
	"M2":   true,
	"M117": true,
	"M118": true,
}

var reParenComment = regexp.MustCompile(`\([^)]*\)`)

// ParseLine parses a line into a command. Blank lines and pure comments
// yield nil.
func ParseLine(line string) (*Command, error) {
	ln := strings.TrimSpace(line)
	if idx := strings.IndexByte(ln, ';'); idx >= 0 {
		ln = ln[:idx]
	}
	ln = strings.TrimSpace(ln)
	if ln == "" {
		return nil, nil
	}

	// Line numbers and checksums from serial hosts.
	if ln[0] == 'N' || ln[0] == 'n' {
		fields := strings.SplitN(ln, " ", 2)
		if _, err := strconv.Atoi(fields[0][1:]); err == nil {
			if len(fields) == 1 {
				return nil, nil
			}
			ln = strings.TrimSpace(fields[1])
		}
	}
	if idx := strings.IndexByte(ln, '*'); idx >= 0 {
		ln = strings.TrimSpace(ln[:idx])
	}

	name, rest, _ := strings.Cut(ln, " ")
	name = strings.ToUpper(name)
	if !validName(name) {
		return nil, errors.GCodeParseError(line, "invalid command name")
	}
	cmd := &Command{Name: name, Args: map[string]string{}, Raw: line}
	if textCommands[name] {
		cmd.Text = strings.TrimSpace(rest)
		return cmd, nil
	}

	rest = strings.TrimSpace(reParenComment.ReplaceAllString(rest, " "))
	fields := strings.Fields(rest)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if k, v, ok := strings.Cut(f, "="); ok {
			if k = strings.ToUpper(strings.TrimSpace(k)); k != "" {
				cmd.Args[k] = strings.TrimSpace(v)
			}
			continue
		}
		key, value := strings.ToUpper(f[:1]), f[1:]
		// "S 0" is accepted as "S0".
		if value == "" && i+1 < len(fields) && isNumberStart(fields[i+1][0]) {
			i++
			value = fields[i]
		}
		cmd.Args[key] = value
	}
	cmd.Text = rest
	return cmd, nil
}

func isNumberStart(c byte) bool {
	return c >= '0' && c <= '9' || c == '-' || c == '+' || c == '.'
}

// validName accepts G/M/T codes and extended upper-case names like
// SET_IDLE_TIMEOUT.
func validName(name string) bool {
	if name == "" {
		return false
	}
	if c := name[0]; c == 'G' || c == 'M' || c == 'T' {
		if _, err := strconv.ParseFloat(name[1:], 64); err == nil {
			return true
		}
	}
	for _, r := range name {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// Seen reports whether any parameter was given.
func (c *Command) Seen() bool {
	return len(c.Args) > 0
}

// Has reports whether the parameter was given.
func (c *Command) Has(param string) bool {
	_, ok := c.Args[strings.ToUpper(param)]
	return ok
}

// Float returns a numeric parameter, or fallback when absent. A parameter
// given without a value, NaN and infinities are errors.
func (c *Command) Float(param string, fallback float64) (float64, error) {
	v, ok := c.Args[strings.ToUpper(param)]
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.GCodeInvalidParameterError(c.Name, param, v, "not a number")
	}
	return f, nil
}

// RequireFloat is Float for mandatory parameters.
func (c *Command) RequireFloat(param string) (float64, error) {
	if !c.Has(param) {
		return 0, errors.GCodeMissingParameterError(c.Name, param)
	}
	return c.Float(param, 0)
}

// Int returns an integer parameter. Fractions are truncated.
func (c *Command) Int(param string, fallback int) (int, error) {
	f, err := c.Float(param, float64(fallback))
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool returns a flag parameter. A bare flag or a non-zero value is true.
func (c *Command) Bool(param string) bool {
	v, ok := c.Args[strings.ToUpper(param)]
	if !ok {
		return false
	}
	if v == "" {
		return true
	}
	f, err := strconv.ParseFloat(v, 64)
	return err != nil || f != 0
}

func (c *Command) String() string {
	return strings.TrimSpace(c.Raw)
}
