// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

import (
	"strings"
	"testing"
)

type fakeHead string

func (f fakeHead) Name() string { return string(f) }

func texts(f Frame) []string {
	out := make([]string, len(f.Texts))
	for i, t := range f.Texts {
		out[i] = t.Text
	}
	return out
}

func TestAboutScreenText(t *testing.T) {
	nav := NewNavigator(NewStatusScreen())
	about := NewAboutScreen(nav, MachineInfo{
		MachineName:  "TAZ Pro",
		ExtruderType: "Universal",
		Version:      "2.1.3",
		Website:      "www.lulzbot.com",
		BLTouch:      true,
	}, AboutOptions{ToolHead: fakeHead("HS+")})

	got := strings.Join(texts(about.Redraw()), "|")
	want := "TAZ Pro\nWith BLTouch|Firmware:|Universal|Tool Head:|HS+|Version:|Marlin 2.1.3|www.lulzbot.com"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
	if b := about.Redraw().Buttons; len(b) != 1 || b[0].Tag != 1 || b[0].Label != "Okay" {
		t.Errorf("unexpected buttons %+v", b)
	}
}

func TestAboutLongBedWinsOverBLTouch(t *testing.T) {
	about := NewAboutScreen(nil, MachineInfo{MachineName: "TAZ 6", LongBed: true, BLTouch: true}, AboutOptions{})
	if got := about.Redraw().Texts[0].Text; got != "TAZ 6\nWith Long Bed" {
		t.Errorf("got %q", got)
	}
	for _, tb := range about.Redraw().Texts {
		if tb.Text == "HS+" {
			t.Error("no tool head name without a tool head")
		}
	}
}

func TestAboutNavigation(t *testing.T) {
	nav := NewNavigator(NewStatusScreen())
	chimes := 0
	dev := NewDeveloperScreen(nav)
	about := NewAboutScreen(nav, MachineInfo{}, AboutOptions{Developer: dev, Chime: func() { chimes++ }})

	nav.Goto(about)
	if chimes != 1 {
		t.Errorf("got %d chimes on entry, want 1", chimes)
	}
	if !nav.Touch(2) || !nav.At("developer") {
		t.Fatal("tag 2 should open the developer menu")
	}
	if !nav.Touch(1) || !nav.At("about") {
		t.Fatal("developer back should return to about")
	}
	if nav.Touch(9) {
		t.Error("unknown tag should not be consumed")
	}
	if !nav.Touch(1) || !nav.At("status") {
		t.Fatal("Okay should return to the previous screen")
	}
}

func TestAboutWithoutDeveloperMenu(t *testing.T) {
	nav := NewNavigator(NewStatusScreen())
	about := NewAboutScreen(nav, MachineInfo{}, AboutOptions{})
	nav.Goto(about)
	if nav.Touch(2) {
		t.Error("tag 2 must not be consumed when developer screens are disabled")
	}
	if !nav.At("about") {
		t.Error("screen should not change")
	}
}

func TestEndPrintScreen(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{1, EndPrintContinue},
		{2, EndPrintContinueSkip},
	}
	for _, tt := range tests {
		var injected []string
		nav := NewNavigator(NewStatusScreen())
		end := NewEndPrintScreen(nav, InjectorFunc(func(c string) { injected = append(injected, c) }))

		end.Show("Print finished")
		end.Show("Print finished again")
		if nav.Depth() != 2 {
			t.Fatalf("Show twice should push once, depth %d", nav.Depth())
		}
		if end.Message() != "Print finished again" {
			t.Errorf("got message %q", end.Message())
		}
		if !nav.Touch(tt.tag) {
			t.Fatalf("tag %d not consumed", tt.tag)
		}
		if !nav.At("status") {
			t.Error("dialog should close")
		}
		if len(injected) != 1 || injected[0] != tt.want {
			t.Errorf("tag %d injected %v, want %q", tt.tag, injected, tt.want)
		}
	}
}

func TestEndPrintHideAndUnknownTag(t *testing.T) {
	nav := NewNavigator(NewStatusScreen())
	end := NewEndPrintScreen(nav, InjectorFunc(func(string) { t.Error("nothing should be injected") }))

	end.Hide()
	if nav.Depth() != 1 {
		t.Error("Hide when not visible must not pop")
	}
	end.Show(DefaultEndPrintMessage)
	if nav.Touch(3) {
		t.Error("unknown tag should fall through")
	}
	end.Hide()
	if !nav.At("status") {
		t.Error("Hide should close the dialog")
	}
}

func TestStatusLine(t *testing.T) {
	home := NewStatusScreen()
	nav := NewNavigator(home)
	home.Attach(nav)
	nav.SetStatusMessage("Hotend Idle Timeout")
	if got := home.Redraw().Texts[0].Text; got != "Hotend Idle Timeout" {
		t.Errorf("got %q", got)
	}
	nav.GotoPrevious()
	if nav.Depth() != 1 {
		t.Error("home screen must never be popped")
	}
}
