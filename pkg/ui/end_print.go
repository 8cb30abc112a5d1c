// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

import "sync"

// DefaultEndPrintMessage is shown when M2 carries no text.
const DefaultEndPrintMessage = "Click to Resume..."

// Commands injected by the end print buttons.
const (
	EndPrintContinue     = "M117 Q60"
	EndPrintContinueSkip = "M117 Q60 S"
)

// EndPrintScreen is the dialog shown when a print finishes.
type EndPrintScreen struct {
	nav    *Navigator
	inject Injector

	mu      sync.Mutex
	message string
}

func NewEndPrintScreen(nav *Navigator, inject Injector) *EndPrintScreen {
	return &EndPrintScreen{nav: nav, inject: inject}
}

func (e *EndPrintScreen) Name() string { return "end_print" }
func (e *EndPrintScreen) OnEntry() {}

// Message returns the text currently shown.
func (e *EndPrintScreen) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Show sets the message and opens the dialog if it is not already visible.
func (e *EndPrintScreen) Show(msg string) {
	e.mu.Lock()
	e.message = msg
	e.mu.Unlock()
	if !e.nav.At(e.Name()) {
		e.nav.Goto(e)
	}
}

// Hide closes the dialog if it is visible.
func (e *EndPrintScreen) Hide() {
	if e.nav.At(e.Name()) {
		e.nav.GotoPrevious()
	}
}

func (e *EndPrintScreen) Redraw() Frame {
	return Frame{
		Texts: []TextBox{{Text: e.Message(), Font: FontLarge}},
		Buttons: []Button{
			{Tag: 1, Label: "Continue"},
			{Tag: 2, Label: "Continue (Skip)"},
		},
	}
}

func (e *EndPrintScreen) OnTouchEnd(tag Tag) bool {
	switch tag {
	case 1:
		e.nav.GotoPrevious()
		e.inject.Inject(EndPrintContinue)
		return true
	case 2:
		e.nav.GotoPrevious()
		e.inject.Inject(EndPrintContinueSkip)
		return true
	default:
		return false
	}
}
