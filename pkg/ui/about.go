// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ui

// ToolHead supplies the fitted tool head's display name.
type ToolHead interface {
	Name() string
}

// MachineInfo is the static identity shown on the About screen.
type MachineInfo struct {
	MachineName  string
	ExtruderType string
	Version      string
	Website      string
	LongBed      bool
	BLTouch      bool
}

// AboutScreen shows firmware and tool head identity.
type AboutScreen struct {
	nav       *Navigator
	info      MachineInfo
	toolHead  ToolHead
	developer Screen
	chime     func()
}

// AboutOptions wire optional About screen behaviour.
type AboutOptions struct {
	// ToolHead, when set, adds the tool head name under "Tool Head:".
	ToolHead ToolHead
	// Developer, when set, is opened by tag 2.
	Developer Screen
	// Chime is played on entry.
	Chime func()
}

func NewAboutScreen(nav *Navigator, info MachineInfo, opts AboutOptions) *AboutScreen {
	return &AboutScreen{
		nav:       nav,
		info:      info,
		toolHead:  opts.ToolHead,
		developer: opts.Developer,
		chime:     opts.Chime,
	}
}

func (a *AboutScreen) Name() string { return "about" }

func (a *AboutScreen) OnEntry() {
	if a.chime != nil {
		a.chime()
	}
}

func (a *AboutScreen) Redraw() Frame {
	title := a.info.MachineName + "\n"
	switch {
	case a.info.LongBed:
		title += "With Long Bed"
	case a.info.BLTouch:
		title += "With BLTouch"
	}

	texts := []TextBox{
		{Text: title, Font: FontXXLarge},
		{Text: "Firmware:", Font: FontXLarge},
		{Text: a.info.ExtruderType, Font: FontXLarge},
		{Text: "Tool Head:", Font: FontXLarge},
	}
	if a.toolHead != nil {
		if name := a.toolHead.Name(); name != "" {
			texts = append(texts, TextBox{Text: name, Font: FontLarge})
		}
	}
	texts = append(texts,
		TextBox{Text: "Version:", Font: FontXLarge},
		TextBox{Text: "Marlin " + a.info.Version, Font: FontXLarge},
		TextBox{Text: a.info.Website, Font: FontXLarge},
	)
	return Frame{Texts: texts, Buttons: []Button{{Tag: 1, Label: "Okay"}}}
}

func (a *AboutScreen) OnTouchEnd(tag Tag) bool {
	switch tag {
	case 1:
		a.nav.GotoPrevious()
		return true
	case 2:
		if a.developer == nil {
			return false
		}
		a.nav.Goto(a.developer)
		return true
	default:
		return false
	}
}

// DeveloperScreen is a placeholder menu reachable from About.
type DeveloperScreen struct {
	nav *Navigator
}

func NewDeveloperScreen(nav *Navigator) *DeveloperScreen { return &DeveloperScreen{nav: nav} }

func (d *DeveloperScreen) Name() string { return "developer" }
func (d *DeveloperScreen) OnEntry() {}

func (d *DeveloperScreen) Redraw() Frame {
	return Frame{
		Texts:   []TextBox{{Text: "Developer Menu", Font: FontXLarge}},
		Buttons: []Button{{Tag: 1, Label: "Back"}},
	}
}

func (d *DeveloperScreen) OnTouchEnd(tag Tag) bool {
	if tag == 1 {
		d.nav.GotoPrevious()
		return true
	}
	return false
}
