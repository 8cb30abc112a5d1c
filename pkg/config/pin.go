package config

import (
	"strings"
)

// Pin is a board pin reference such as "PB7", "!^PA17" or "probe:PC3".
type Pin struct {
	Name   string
	Chip   string // "mcu" unless prefixed with "chip:"
	Invert bool
	Pullup int // 1 pulled up, -1 pulled down
}

// FullName renders the pin with its chip prefix when it is not on "mcu".
func (p Pin) FullName() string {
	if p.Chip == "" || p.Chip == "mcu" {
		return p.Name
	}
	return p.Chip + ":" + p.Name
}

// PinOptions selects which modifiers an option accepts.
type PinOptions struct {
	CanInvert bool
	CanPullup bool
}

// ParsePin parses [^|~][!][chip:]name. Modifiers may come in either order.
func ParsePin(desc string, opts PinOptions) (Pin, error) {
	p := Pin{Chip: "mcu"}
	d := strings.TrimSpace(desc)
modifiers:
	for len(d) > 0 {
		switch c := d[0]; {
		case (c == '^' || c == '~') && opts.CanPullup && p.Pullup == 0:
			p.Pullup = 1
			if c == '~' {
				p.Pullup = -1
			}
		case c == '!' && opts.CanInvert && !p.Invert:
			p.Invert = true
		default:
			break modifiers
		}
		d = strings.TrimSpace(d[1:])
	}
	if chip, rest, ok := strings.Cut(d, ":"); ok {
		p.Chip = strings.TrimSpace(chip)
		d = strings.TrimSpace(rest)
	}
	if d == "" || p.Chip == "" || strings.ContainsAny(d, "^~!: ") {
		return Pin{}, ErrInvalidValue("", "", desc, "a pin name")
	}
	p.Name = d
	return p, nil
}

// GetPinList parses a comma separated list of pins. A missing option
// yields an empty list.
func (s *Section) GetPinList(option string, opts PinOptions) ([]Pin, error) {
	items, err := s.GetList(option, ",", nil)
	if err != nil {
		return nil, err
	}
	pins := make([]Pin, 0, len(items))
	for _, item := range items {
		pin, err := ParsePin(item, opts)
		if err != nil {
			return nil, WrapError(s.name, option, err)
		}
		pins = append(pins, pin)
	}
	return pins, nil
}
