// Package config reads printer configuration files: INI-style sections of
// "key: value" options with [include file] directives and tracking of which
// options were consumed.
package config

import "fmt"

// ConfigError locates a configuration problem.
type ConfigError struct {
	File    string
	Line    int
	Section string
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	var where string
	switch {
	case e.Option != "":
		where = fmt.Sprintf("option '%s' in section '%s': ", e.Option, e.Section)
	case e.Section != "":
		where = fmt.Sprintf("section '%s': ", e.Section)
	}
	if e.File != "" {
		where = fmt.Sprintf("%s:%d: %s", e.File, e.Line, where)
	}
	return "config: " + where + e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func NewConfigError(section, option, message string) *ConfigError {
	return &ConfigError{Section: section, Option: option, Message: message}
}

func WrapError(section, option string, err error) *ConfigError {
	return &ConfigError{Section: section, Option: option, Message: err.Error(), Cause: err}
}

func ErrMissingOption(section, option string) *ConfigError {
	return NewConfigError(section, option, "must be specified")
}

func ErrMissingSection(section string) *ConfigError {
	return NewConfigError(section, "", "section not found")
}

func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("invalid value '%s', expected %s", value, expected))
}

func ErrOutOfRange(section, option string, value float64, constraint string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("value %v %s", value, constraint))
}

func ErrInvalidChoice(section, option, value string, choices []string) *ConfigError {
	return NewConfigError(section, option, fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
