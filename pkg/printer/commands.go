// G-code command handlers
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package printer

import (
	"fmt"

	"idleguard/pkg/errors"
	"idleguard/pkg/gcode"
	"idleguard/pkg/heater"
	"idleguard/pkg/inputshaper"
	"idleguard/pkg/motion"
	"idleguard/pkg/toolhead"
	"idleguard/pkg/ui"
)

// Commands accepted for compatibility with slicer and tuning scripts. They
// have no effect on the simulated machine.
var ignoredCommands = []string{
	"M106", "M107",
	"M201", "M203", "M204", "M205",
	"M900",
	"G29",
}

func (p *Printer) registerCommands() {
	d := p.gcode

	d.MustRegister("M86", "Set hotend idle protection", p.cmdM86)
	d.MustRegister("M87", "Disable hotend idle protection", p.cmdM87)

	d.MustRegister("M104", "Set nozzle temperature", p.setTemp(heater.Extruder))
	d.MustRegister("M109", "Set nozzle temperature", p.setTemp(heater.Extruder))
	d.MustRegister("M140", "Set bed temperature", p.setTemp(heater.HeaterBed))
	d.MustRegister("M190", "Set bed temperature", p.setTemp(heater.HeaterBed))
	d.MustRegister("M105", "Report temperatures", p.cmdM105)

	d.MustRegister("G0", "Linear move", p.cmdG1)
	d.MustRegister("G1", "Linear move", p.cmdG1)
	d.MustRegister("G28", "Home axes", p.cmdG28)
	d.MustRegister("G90", "Absolute positioning", p.cmdG90)
	d.MustRegister("G91", "Relative positioning", p.cmdG91)
	d.MustRegister("M82", "Absolute extrusion", p.cmdM82)
	d.MustRegister("M83", "Relative extrusion", p.cmdM83)
	d.MustRegister("G92", "Set position", p.cmdG92)
	d.MustRegister("M17", "Enable steppers", p.cmdM17)
	d.MustRegister("M18", "Disable steppers", p.cmdM18)
	d.MustRegister("M84", "Disable steppers", p.cmdM18)
	d.MustRegister("M114", "Report position", p.cmdM114)
	d.MustRegister("M400", "Wait for moves to finish", p.cmdM400)

	d.MustRegister("M593", "Input shaping parameters", p.cmdM593)
	d.MustRegister("M891", "Tool head id", p.cmdM891)

	d.MustRegister("M2", "End print screen", p.cmdM2)
	d.MustRegister("M117", "Set status message", p.cmdM117)

	d.MustRegister("M401", "Start probing", p.setProbing(true))
	d.MustRegister("M402", "Stop probing", p.setProbing(false))

	d.MustRegister("M500", "Save settings", p.cmdM500)
	d.MustRegister("M501", "Restore settings", p.cmdM501)
	d.MustRegister("M502", "Factory reset", p.cmdM502)
	d.MustRegister("M503", "Report settings", p.cmdM503)

	d.MustRegister("M112", "Emergency stop", p.cmdM112)
	d.MustRegister("M999", "Restart after a halt", p.cmdM999)

	for _, name := range ignoredCommands {
		d.MustRegister(name, "Accepted, no effect", p.cmdIgnored)
	}
}

func (p *Printer) cmdIgnored(cmd *gcode.Command, resp *gcode.Response) error {
	p.logger.Debug("ignoring %s", cmd)
	return nil
}

// cmdM86 updates the idle protection settings. Every given value is checked
// before any is applied.
func (p *Printer) cmdM86(cmd *gcode.Command, resp *gcode.Response) error {
	s := p.monitor.Settings()
	if !cmd.Seen() {
		resp.Echo("  %s", s.Command(p.monitor.HeatedBed()))
		return nil
	}

	ints := []struct {
		param string
		dst   *int
	}{
		{"S", &s.Timeout},
		{"U", &s.BedTimeout},
	}
	for _, f := range ints {
		v, err := cmd.Int(f.param, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	floats := []struct {
		param string
		dst   *float64
	}{
		{"T", &s.Trigger},
		{"E", &s.NozzleTarget},
		{"B", &s.BedTarget},
		{"R", &s.BedTrigger},
	}
	for _, f := range floats {
		v, err := cmd.Float(f.param, *f.dst)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	if err := p.ValidateIdleSettings(s); err != nil {
		resp.Echo("%s", rejection(err))
		return nil
	}
	p.monitor.SetSettings(s)
	return nil
}

// rejection renders a validation failure as an operator message.
func rejection(err error) string {
	if he, ok := err.(*errors.HostError); ok && he.Option != "" {
		return fmt.Sprintf("%s %s", he.Option, he.Message)
	}
	return err.Error()
}

func (p *Printer) cmdM87(cmd *gcode.Command, resp *gcode.Response) error {
	s := p.monitor.Settings()
	s.Timeout = 0
	s.BedTimeout = 0
	p.monitor.SetSettings(s)
	return nil
}

func (p *Printer) setTemp(id heater.ID) gcode.HandlerFunc {
	return func(cmd *gcode.Command, resp *gcode.Response) error {
		if !p.heaters.Has(id) {
			return errors.HeaterError(fmt.Sprintf("%s: no such heater", id))
		}
		target, err := cmd.Float("S", 0)
		if err != nil {
			return err
		}
		if err := p.heaters.SetTarget(id, target); err != nil {
			return errors.Wrap(err, errors.ErrHeater, cmd.Name)
		}
		return nil
	}
}

func (p *Printer) cmdM105(cmd *gcode.Command, resp *gcode.Response) error {
	line := fmt.Sprintf("T:%.2f /%.2f", p.heaters.Current(heater.Extruder), p.heaters.Target(heater.Extruder))
	if p.heaters.Has(heater.HeaterBed) {
		line += fmt.Sprintf(" B:%.2f /%.2f", p.heaters.Current(heater.HeaterBed), p.heaters.Target(heater.HeaterBed))
	}
	resp.Respond("%s", line)
	return nil
}

var axisParams = [...]string{"X", "Y", "Z", "E"}

func (p *Printer) cmdG1(cmd *gcode.Command, resp *gcode.Response) error {
	target := p.planner.QueuedTarget()
	for i, param := range axisParams {
		if !cmd.Has(param) {
			continue
		}
		v, err := cmd.Float(param, 0)
		if err != nil {
			return err
		}
		abs := p.absolute
		if motion.Axis(i) == motion.E {
			abs = p.absoluteExtrude
		}
		if abs {
			target[i] = v
		} else {
			target[i] += v
		}
	}
	f, err := cmd.Float("F", p.feedrate)
	if err != nil {
		return err
	}
	if f <= 0 {
		return errors.GCodeInvalidParameterError(cmd.Name, "F", fmt.Sprint(f), "must be positive")
	}
	p.feedrate = f
	p.planner.Queue(motion.Move{Target: target, Feedrate: f})
	return nil
}

// cmdG28 homes the requested axes, or X, Y and Z when none are given.
func (p *Printer) cmdG28(cmd *gcode.Command, resp *gcode.Response) error {
	p.planner.Synchronize()
	pos := p.planner.Position()
	all := !cmd.Has("X") && !cmd.Has("Y") && !cmd.Has("Z")
	for i, param := range axisParams[:3] {
		if all || cmd.Has(param) {
			pos[i] = 0
			p.planner.SetEnabled(motion.Axis(i), true)
		}
	}
	p.planner.SetPosition(pos)
	return nil
}

func (p *Printer) cmdG90(*gcode.Command, *gcode.Response) error {
	p.absolute = true
	p.absoluteExtrude = true
	return nil
}

func (p *Printer) cmdG91(*gcode.Command, *gcode.Response) error {
	p.absolute = false
	p.absoluteExtrude = false
	return nil
}

func (p *Printer) cmdM82(*gcode.Command, *gcode.Response) error {
	p.absoluteExtrude = true
	return nil
}

func (p *Printer) cmdM83(*gcode.Command, *gcode.Response) error {
	p.absoluteExtrude = false
	return nil
}

func (p *Printer) cmdG92(cmd *gcode.Command, resp *gcode.Response) error {
	p.planner.Synchronize()
	pos := p.planner.Position()
	all := true
	for i, param := range axisParams {
		if !cmd.Has(param) {
			continue
		}
		all = false
		v, err := cmd.Float(param, 0)
		if err != nil {
			return err
		}
		pos[i] = v
	}
	if all {
		pos = motion.Position{}
	}
	p.planner.SetPosition(pos)
	return nil
}

func (p *Printer) cmdM17(cmd *gcode.Command, resp *gcode.Response) error {
	return p.setSteppers(cmd, true)
}

func (p *Printer) cmdM18(cmd *gcode.Command, resp *gcode.Response) error {
	p.planner.Synchronize()
	return p.setSteppers(cmd, false)
}

func (p *Printer) setSteppers(cmd *gcode.Command, on bool) error {
	selected := false
	for i, param := range axisParams {
		if cmd.Has(param) {
			selected = true
			p.planner.SetEnabled(motion.Axis(i), on)
		}
	}
	if !selected {
		p.planner.SetAllEnabled(on)
	}
	return nil
}

func (p *Printer) cmdM114(cmd *gcode.Command, resp *gcode.Response) error {
	pos := p.planner.QueuedTarget()
	resp.Respond("X:%.2f Y:%.2f Z:%.2f E:%.2f", pos[motion.X], pos[motion.Y], pos[motion.Z], pos[motion.E])
	return nil
}

func (p *Printer) cmdM400(*gcode.Command, *gcode.Response) error {
	p.planner.Synchronize()
	return nil
}

// cmdM593 sets damping (D) and frequency (F) independently; a rejected
// value leaves that parameter unchanged and does not block the other.
func (p *Printer) cmdM593(cmd *gcode.Command, resp *gcode.Response) error {
	scope := inputshaper.Scope{X: cmd.Bool("X"), Y: cmd.Bool("Y")}

	if cmd.Has("D") {
		d, err := cmd.Float("D", 0)
		if err != nil {
			return err
		}
		if err := p.shaper.SetDamping(scope, d); err != nil {
			resp.Echo("%s", inputshaper.MsgDampingRange)
		}
	}
	if cmd.Has("F") {
		f, err := cmd.Float("F", 0)
		if err != nil {
			return err
		}
		if err := p.shaper.SetFrequency(scope, f); err != nil {
			resp.Echo("%s", inputshaper.MsgFrequencyRange)
		}
	}

	if !cmd.Seen() {
		for _, line := range p.shaper.Report() {
			resp.Echo("%s", line)
		}
	}
	return nil
}

func (p *Printer) cmdM891(cmd *gcode.Command, resp *gcode.Response) error {
	if !cmd.Has("T") {
		resp.Echo("%s  Tool Head ID:%d", p.toolHead.Legend(), p.toolHead.ID())
		return nil
	}
	id, err := cmd.Int("T", 0)
	if err != nil {
		return err
	}
	p.planner.Synchronize()
	if err := p.toolHead.SetID(id); err != nil {
		resp.Echo("Tool Head ID out of range (%d-%d)", toolhead.MinID, toolhead.MaxID)
	}
	return nil
}

func (p *Printer) cmdM2(cmd *gcode.Command, resp *gcode.Response) error {
	msg := cmd.Text
	if msg == "" {
		msg = ui.DefaultEndPrintMessage
	}
	p.endPrint.Show(msg)
	return nil
}

func (p *Printer) cmdM117(cmd *gcode.Command, resp *gcode.Response) error {
	p.nav.SetStatusMessage(cmd.Text)
	return nil
}

func (p *Printer) setProbing(probing bool) gcode.HandlerFunc {
	return func(cmd *gcode.Command, resp *gcode.Response) error {
		if err := p.board.SetProbing(probing); err != nil {
			return errors.Wrap(err, errors.ErrMotion, cmd.Name)
		}
		return nil
	}
}

func (p *Printer) cmdM500(cmd *gcode.Command, resp *gcode.Response) error {
	if err := p.SaveState(); err != nil {
		return err
	}
	resp.Echo("Settings Stored")
	return nil
}

func (p *Printer) cmdM501(cmd *gcode.Command, resp *gcode.Response) error {
	if err := p.LoadState(); err != nil {
		return err
	}
	resp.Echo("Settings Restored")
	return nil
}

func (p *Printer) cmdM502(cmd *gcode.Command, resp *gcode.Response) error {
	p.ResetState()
	resp.Echo("Hardcoded Default Settings Loaded")
	return nil
}

func (p *Printer) cmdM503(cmd *gcode.Command, resp *gcode.Response) error {
	resp.Echo("; Hotend idle protection:")
	resp.Echo("  %s", p.monitor.Settings().Command(p.monitor.HeatedBed()))
	for _, line := range p.shaper.Report() {
		resp.Echo("%s", line)
	}
	resp.Echo("; Tool head id:")
	resp.Echo("%s", p.toolHead.Report())
	return nil
}

func (p *Printer) cmdM112(cmd *gcode.Command, resp *gcode.Response) error {
	p.safety.EmergencyStop("Emergency stop (M112)")
	resp.Echo("Printer halted")
	return nil
}

// cmdM999 clears a halt. Heaters stay off and steppers stay disabled until
// commanded again.
func (p *Printer) cmdM999(cmd *gcode.Command, resp *gcode.Response) error {
	if err := p.safety.Reset(); err != nil {
		return err
	}
	p.nav.SetStatusMessage("Printer ready")
	resp.Echo("Printer restarted")
	return nil
}
