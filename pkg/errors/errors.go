// Unified error handling for idleguard
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Command surface errors
	ErrGCodeParse        ErrorCode = "GCODE_PARSE"
	ErrGCodeUnknownCmd   ErrorCode = "GCODE_UNKNOWN_CMD"
	ErrGCodeMissingParam ErrorCode = "GCODE_MISSING_PARAM"
	ErrGCodeInvalidParam ErrorCode = "GCODE_INVALID_PARAM"

	// Subsystem errors
	ErrSettings ErrorCode = "SETTINGS"
	ErrHeater   ErrorCode = "HEATER"
	ErrMotion   ErrorCode = "MOTION"
	ErrStore    ErrorCode = "STORE"
	ErrRuntime  ErrorCode = "RUNTIME"
)

// HostError is the unified error type
type HostError struct {
	Code    ErrorCode
	Message string

	// Section and Option locate configuration errors.
	Section string
	Option  string

	// Command names the G-code command for command surface errors.
	Command string

	Err error
}

func (e *HostError) Error() string {
	where := e.Section
	switch {
	case e.Command != "":
		where = e.Command
	case e.Option != "":
		where = e.Section + "." + e.Option
	}
	msg := fmt.Sprintf("[%s", e.Code)
	if where != "" {
		msg += ":" + where
	}
	msg += "] " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *HostError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{Code: code, Message: message, Err: err}
}

// Config errors

func ConfigSectionError(section string) *HostError {
	e := New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section))
	e.Section = section
	return e
}

func ConfigValidationError(section, option, reason string) *HostError {
	e := New(ErrConfigValidation, reason)
	e.Section = section
	e.Option = option
	return e
}

// G-code errors

func GCodeParseError(line, reason string) *HostError {
	return New(ErrGCodeParse, fmt.Sprintf("failed to parse %q: %s", line, reason))
}

func GCodeUnknownCommandError(command string) *HostError {
	e := New(ErrGCodeUnknownCmd, "unknown command")
	e.Command = command
	return e
}

func GCodeMissingParameterError(command, param string) *HostError {
	e := New(ErrGCodeMissingParam, fmt.Sprintf("missing required parameter %s", param))
	e.Command = command
	return e
}

func GCodeInvalidParameterError(command, param, value, reason string) *HostError {
	e := New(ErrGCodeInvalidParam, fmt.Sprintf("invalid parameter %s=%s (%s)", param, value, reason))
	e.Command = command
	return e
}

// Subsystem errors

func SettingsError(message string) *HostError { return New(ErrSettings, message) }
func HeaterError(message string) *HostError   { return New(ErrHeater, message) }
func MotionError(message string) *HostError   { return New(ErrMotion, message) }

func StoreError(err error, message string) *HostError {
	return Wrap(err, ErrStore, message)
}

// Is reports whether any error in err's chain is a HostError with code.
func Is(err error, code ErrorCode) bool {
	var hostErr *HostError
	if stderrors.As(err, &hostErr) {
		return hostErr.Code == code
	}
	return false
}

func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) || Is(err, ErrConfigOption) || Is(err, ErrConfigValidation)
}

func IsGCode(err error) bool {
	return Is(err, ErrGCodeParse) ||
		Is(err, ErrGCodeUnknownCmd) ||
		Is(err, ErrGCodeMissingParam) ||
		Is(err, ErrGCodeInvalidParam)
}

// RecoverPanic converts the value returned by recover() into a runtime error.
func RecoverPanic(r interface{}) *HostError {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return Wrap(err, ErrRuntime, "panic")
	}
	return New(ErrRuntime, fmt.Sprintf("panic: %v", r))
}
