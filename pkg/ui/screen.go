// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package ui models the touch screen without drawing it: screens produce
// frames of text boxes and buttons, and touches arrive as button tags.
package ui

import "sync"

// Tag identifies a touchable element. Zero is never touchable.
type Tag uint8

// Font sizes used by text boxes.
const (
	FontMedium  = "medium"
	FontLarge   = "large"
	FontXLarge  = "xlarge"
	FontXXLarge = "xxlarge"
)

type TextBox struct {
	Text string `json:"text"`
	Font string `json:"font"`
}

type Button struct {
	Tag   Tag    `json:"tag"`
	Label string `json:"label"`
}

// Frame is what a screen would draw.
type Frame struct {
	Texts   []TextBox `json:"texts"`
	Buttons []Button  `json:"buttons"`
}

// Screen is one page of the touch UI.
type Screen interface {
	Name() string
	OnEntry()
	Redraw() Frame
	// OnTouchEnd handles a released touch and reports whether it was consumed.
	OnTouchEnd(tag Tag) bool
}

// Injector queues commands as if typed by the operator.
type Injector interface {
	Inject(cmd string)
}

// InjectorFunc adapts a function to Injector.
type InjectorFunc func(string)

func (f InjectorFunc) Inject(cmd string) { f(cmd) }

// Navigator keeps the screen history. The bottom screen is never popped.
type Navigator struct {
	mu     sync.Mutex
	stack  []Screen
	status string
}

func NewNavigator(home Screen) *Navigator {
	n := &Navigator{stack: []Screen{home}}
	home.OnEntry()
	return n
}

// Current returns the visible screen.
func (n *Navigator) Current() Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stack[len(n.stack)-1]
}

// At reports whether the screen called name is visible.
func (n *Navigator) At(name string) bool {
	return n.Current().Name() == name
}

// Goto pushes s and runs its entry hook.
func (n *Navigator) Goto(s Screen) {
	n.mu.Lock()
	n.stack = append(n.stack, s)
	n.mu.Unlock()
	s.OnEntry()
}

// GotoPrevious pops the visible screen unless it is the home screen.
func (n *Navigator) GotoPrevious() {
	n.mu.Lock()
	if len(n.stack) > 1 {
		n.stack = n.stack[:len(n.stack)-1]
	}
	prev := n.stack[len(n.stack)-1]
	n.mu.Unlock()
	prev.OnEntry()
}

// Depth returns the number of screens on the stack.
func (n *Navigator) Depth() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.stack)
}

// Touch delivers a released touch to the visible screen.
func (n *Navigator) Touch(tag Tag) bool {
	return n.Current().OnTouchEnd(tag)
}

// SetStatusMessage sets the status line text (M117).
func (n *Navigator) SetStatusMessage(msg string) {
	n.mu.Lock()
	n.status = msg
	n.mu.Unlock()
}

func (n *Navigator) StatusMessage() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// StatusScreen is the home screen.
type StatusScreen struct {
	nav *Navigator
}

func NewStatusScreen() *StatusScreen { return &StatusScreen{} }

// Attach lets the status screen show the navigator's status line.
func (s *StatusScreen) Attach(n *Navigator) { s.nav = n }

func (s *StatusScreen) Name() string { return "status" }
func (s *StatusScreen) OnEntry() {}

func (s *StatusScreen) Redraw() Frame {
	msg := ""
	if s.nav != nil {
		msg = s.nav.StatusMessage()
	}
	return Frame{Texts: []TextBox{{Text: msg, Font: FontMedium}}}
}

func (s *StatusScreen) OnTouchEnd(Tag) bool { return false }
