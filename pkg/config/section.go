package config

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section is one [name] block. Option names are case-insensitive.
type Section struct {
	name    string
	options map[string]string

	mu       sync.Mutex
	accessed map[string]struct{}
}

func newSection(name string) *Section {
	return &Section{
		name:     name,
		options:  make(map[string]string),
		accessed: make(map[string]struct{}),
	}
}

func (s *Section) Name() string {
	return s.name
}

func (s *Section) set(option, value string) {
	s.options[strings.ToLower(option)] = value
}

// lookup returns the raw value and marks the option consumed.
func (s *Section) lookup(option string) (string, bool) {
	key := strings.ToLower(option)
	s.mu.Lock()
	s.accessed[key] = struct{}{}
	s.mu.Unlock()
	v, ok := s.options[key]
	return v, ok
}

func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// UnusedOptions lists options never read, sorted.
func (s *Section) UnusedOptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			out = append(out, opt)
		}
	}
	sort.Strings(out)
	return out
}

// parseOption reads option through parse. A missing option yields the first
// fallback, or a missing-option error when there is none.
func parseOption[T any](s *Section, option string, parse func(string) (T, bool), expected string, fallback []T) (T, error) {
	var zero T
	raw, ok := s.lookup(option)
	if !ok {
		if len(fallback) == 0 {
			return zero, ErrMissingOption(s.name, option)
		}
		return fallback[0], nil
	}
	v, ok := parse(raw)
	if !ok {
		return zero, ErrInvalidValue(s.name, option, raw, expected)
	}
	return v, nil
}

// Get returns a string option. Without a fallback a missing option is an error.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	return parseOption(s, option, func(raw string) (string, bool) { return raw, true }, "", fallback)
}

func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	return parseOption(s, option, func(raw string) (int, bool) {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		return n, err == nil
	}, "integer", fallback)
}

func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	return parseOption(s, option, func(raw string) (float64, bool) {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}, "a finite float", fallback)
}

// Bounds constrain a numeric option. Nil fields are unchecked.
type Bounds struct {
	Min   *float64 // >=
	Max   *float64 // <=
	Above *float64 // >
}

// Float returns a pointer for use in Bounds.
func Float(v float64) *float64 { return &v }

func (s *Section) check(option string, v float64, b Bounds) error {
	format := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	switch {
	case b.Min != nil && v < *b.Min:
		return ErrOutOfRange(s.name, option, v, "must have minimum of "+format(*b.Min))
	case b.Max != nil && v > *b.Max:
		return ErrOutOfRange(s.name, option, v, "must have maximum of "+format(*b.Max))
	case b.Above != nil && v <= *b.Above:
		return ErrOutOfRange(s.name, option, v, "must be above "+format(*b.Above))
	}
	return nil
}

func (s *Section) GetFloatWithBounds(option string, b Bounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	return v, s.check(option, v, b)
}

func (s *Section) GetIntWithBounds(option string, b Bounds, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	return v, s.check(option, float64(v), b)
}

// GetBool accepts 1/true/yes/on and 0/false/no/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	return parseOption(s, option, parseBool, "boolean", fallback)
}

func parseBool(raw string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}

// GetChoice returns the matching choice, compared case-insensitively.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(strings.TrimSpace(v), c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// GetList splits an option on sep, dropping empty items.
func (s *Section) GetList(option, sep string, fallback ...[]string) ([]string, error) {
	return parseOption(s, option, func(raw string) ([]string, bool) {
		out := []string{}
		for _, item := range strings.Split(raw, sep) {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, true
	}, "", fallback)
}
