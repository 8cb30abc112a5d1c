// Printer application context
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package printer wires the simulated printer together: heaters, planner,
// idle protection, input shaping, tool head, screens, board pins and the
// G-code command table. One Tick is one main loop iteration.
package printer

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"idleguard/pkg/board"
	"idleguard/pkg/clock"
	"idleguard/pkg/config"
	"idleguard/pkg/errors"
	"idleguard/pkg/gcode"
	"idleguard/pkg/heater"
	"idleguard/pkg/idle"
	"idleguard/pkg/inputshaper"
	"idleguard/pkg/log"
	"idleguard/pkg/metrics"
	"idleguard/pkg/motion"
	"idleguard/pkg/persist"
	"idleguard/pkg/reactor"
	"idleguard/pkg/safety"
	"idleguard/pkg/toolhead"
	"idleguard/pkg/ui"
)

// Options wire a Printer to its environment. Zero values select the
// simulated defaults.
type Options struct {
	Clock clock.Source

	// StateFile is where M500 saves and M501 loads settings. Empty
	// disables persistence.
	StateFile string

	// Recorders receive every protection event in addition to the
	// printer's own status echo.
	Recorders []idle.Recorder

	Metrics *metrics.GuardMetrics
	Pins    board.PinDriver
	Logger  *log.Logger

	// Sleep is handed to the board for probe settling.
	Sleep func(time.Duration)

	// StallTimeout halts the printer when Tick stops being called for
	// longer. Zero disables the loop watchdog.
	StallTimeout time.Duration
}

// Printer owns every component of the host.
type Printer struct {
	cfg     *config.PrinterConfig
	clock   clock.Source
	logger  *log.Logger
	metrics *metrics.GuardMetrics

	heaters  *heater.Bank
	planner  *motion.Planner
	monitor  *idle.Monitor
	shaper   *inputshaper.Shaper
	toolHead *toolhead.Registry
	board    *board.Board
	pins     board.PinDriver
	gcode    *gcode.Dispatcher
	safety   *safety.Manager

	nav       *ui.Navigator
	status    *ui.StatusScreen
	about     *ui.AboutScreen
	developer *ui.DeveloperScreen
	endPrint  *ui.EndPrintScreen

	stateFile string
	loop      *reactor.Reactor

	// G-code move state
	absolute        bool
	absoluteExtrude bool
	feedrate        float64

	mu       sync.Mutex
	injected []string
	events   []idle.Event
	lastTick clock.Millis
	ticks    uint64
}

// New builds a printer from a parsed configuration.
func New(pc *config.PrinterConfig, opts Options) (*Printer, error) {
	if pc == nil {
		pc = config.DefaultPrinterConfig()
	}
	p := &Printer{
		cfg:             pc,
		clock:           opts.Clock,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
		pins:            opts.Pins,
		stateFile:       opts.StateFile,
		absolute:        true,
		absoluteExtrude: true,
		feedrate:        3000,
	}
	if p.clock == nil {
		p.clock = clock.System{}
	}
	if p.logger == nil {
		p.logger = log.GetLogger("printer")
	}
	if p.pins == nil {
		p.pins = board.NewSimPins()
	}

	p.heaters = heater.NewBank()
	p.heaters.Add(heater.NewHeater(pc.Extruder))
	if pc.HeaterBed != nil {
		p.heaters.Add(heater.NewHeater(*pc.HeaterBed))
	}
	if err := pc.Idle.ValidateFor(p.heaters, pc.HeaterBed != nil); err != nil {
		return nil, err
	}
	p.planner = motion.NewPlanner(p.clock)
	p.safety = safety.New(safety.Config{StallTimeout: opts.StallTimeout})

	recorders := []idle.Recorder{idle.RecorderFunc(p.echoEvent)}
	if p.metrics != nil {
		recorders = append(recorders, p.metrics)
	}
	recorders = append(recorders, opts.Recorders...)
	p.monitor = idle.NewMonitor(pc.Idle, idle.Options{
		Clock:     p.clock,
		Thermal:   p.heaters,
		Motion:    p.planner,
		Recorder:  idle.NewMultiRecorder(recorders...),
		Logger:    p.logger.WithPrefix("idle"),
		HeatedBed: pc.HeaterBed != nil,
	})

	p.shaper = inputshaper.New()
	if err := p.applyShaperConfig(); err != nil {
		return nil, err
	}
	th, err := toolhead.New(toolhead.Family(pc.ToolHead.Family), pc.ToolHead.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValidation, "tool head")
	}
	p.toolHead = th

	p.status = ui.NewStatusScreen()
	p.nav = ui.NewNavigator(p.status)
	p.status.Attach(p.nav)
	p.developer = ui.NewDeveloperScreen(p.nav)
	p.about = ui.NewAboutScreen(p.nav, ui.MachineInfo{
		MachineName:  pc.Machine.Name,
		ExtruderType: pc.Machine.ExtruderType,
		Version:      pc.Machine.Version,
		Website:      pc.Machine.Website,
		LongBed:      pc.Machine.LongBed,
		BLTouch:      pc.Machine.BLTouch,
	}, ui.AboutOptions{
		ToolHead:  p.toolHead,
		Developer: p.developer,
		Chime:     func() { p.logger.Debug("chime") },
	})
	p.endPrint = ui.NewEndPrintScreen(p.nav, ui.InjectorFunc(p.Inject))

	profile, err := board.LookupProfile(pc.Board.Name, pc.Board.Variant)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValidation, "board")
	}
	probePins := make([]board.ProbePin, 0, len(pc.Board.ProbePins))
	for _, pin := range pc.Board.ProbePins {
		probePins = append(probePins, board.ProbePin{Name: pin.FullName(), Invert: pin.Invert})
	}
	p.board = board.New(profile, board.Options{
		Pins:      p.pins,
		Extruder:  p.planner,
		ProbePins: probePins,
		Logger:    p.logger.WithPrefix("board"),
		Sleep:     opts.Sleep,
	})

	p.gcode = gcode.NewDispatcher()
	if p.metrics != nil {
		p.gcode.SetObserver(p.metrics.RecordCommand)
	}
	p.gcode.SetGate(p.gate)
	p.registerCommands()
	p.safety.OnShutdown(p.halt)

	p.lastTick = p.clock.NowMs()
	return p, nil
}

// haltedCommands still run while the printer is shut down.
var haltedCommands = map[string]bool{
	"M105": true,
	"M112": true,
	"M114": true,
	"M117": true,
	"M503": true,
	"M999": true,
}

func (p *Printer) gate(cmd *gcode.Command) error {
	if haltedCommands[cmd.Name] {
		return nil
	}
	return p.safety.CheckOperational()
}

// halt turns every heater and stepper off and drops pending moves.
func (p *Printer) halt(reason safety.Reason, msg string) {
	p.heaters.DisableAll()
	dropped := p.planner.Flush()
	p.planner.SetAllEnabled(false)
	p.nav.SetStatusMessage("Printer halted")
	p.logger.WithFields(log.Fields{
		"reason":  string(reason),
		"dropped": dropped,
	}).Error("heaters and steppers off: %s", msg)
}

func (p *Printer) applyShaperConfig() error {
	sc := p.cfg.Shaper
	if err := p.shaper.Set(inputshaper.AxisX, inputshaper.Params{Frequency: sc.FrequencyX, DampingRatio: sc.DampingRatioX}); err != nil {
		return errors.Wrap(err, errors.ErrConfigValidation, "input_shaper X")
	}
	if err := p.shaper.Set(inputshaper.AxisY, inputshaper.Params{Frequency: sc.FrequencyY, DampingRatio: sc.DampingRatioY}); err != nil {
		return errors.Wrap(err, errors.ErrConfigValidation, "input_shaper Y")
	}
	return nil
}

// Startup grounds the unused board pins and applies saved settings when a
// state file exists. A missing state file is not an error.
func (p *Printer) Startup() error {
	if err := p.board.OnStartup(); err != nil {
		return err
	}
	if p.stateFile == "" {
		return nil
	}
	if err := p.LoadState(); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("no saved settings at %s", p.stateFile)
			return nil
		}
		return err
	}
	p.logger.WithField("file", p.stateFile).Info("saved settings restored")
	return nil
}

// echoEvent is the status responder for protection events.
func (p *Printer) echoEvent(ev idle.Event) {
	p.nav.SetStatusMessage(ev.Message)
	p.logger.WithFields(log.Fields{
		"resource": ev.Resource,
		"from":     ev.From,
		"to":       ev.To,
	}).Info("echo:%s", ev.Message)

	p.mu.Lock()
	p.events = append(p.events, ev)
	if len(p.events) > maxRecentEvents {
		p.events = p.events[len(p.events)-maxRecentEvents:]
	}
	p.mu.Unlock()
}

const maxRecentEvents = 32

// RecentEvents returns the last protection events, oldest first.
func (p *Printer) RecentEvents() []idle.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]idle.Event(nil), p.events...)
}

// Inject queues a command for the next tick. Screens use it to issue
// commands without re-entering the dispatcher.
func (p *Printer) Inject(cmd string) {
	p.mu.Lock()
	p.injected = append(p.injected, cmd)
	p.mu.Unlock()
}

// Tick runs one main loop iteration: pending screen commands, one planner
// move, the thermal model and the idle protection check.
func (p *Printer) Tick() {
	start := time.Now()
	p.safety.Heartbeat()

	p.mu.Lock()
	pending := p.injected
	p.injected = nil
	now := p.clock.NowMs()
	dt := now.Sub(p.lastTick)
	p.lastTick = now
	p.ticks++
	p.mu.Unlock()

	for _, cmd := range pending {
		if _, err := p.gcode.Run(cmd); err != nil {
			p.logger.WithError(err).Warn("injected %q failed", cmd)
		}
	}

	if !p.safety.IsShutdown() {
		p.planner.Step()
	}
	if dt > 0 {
		p.heaters.Step(dt)
	}
	p.monitor.Check()

	if p.metrics != nil {
		p.metrics.ObserveStatus(p.monitor.Status())
		p.metrics.ObserveHeaters(p.heaters.Statuses())
		p.metrics.TickDuration.Observe(nil, time.Since(start).Seconds())
	}
}

// Ticks returns the number of completed ticks.
func (p *Printer) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// Attach runs Tick on the reactor every interval. Execute goes through the
// same reactor afterwards.
func (p *Printer) Attach(r *reactor.Reactor, interval time.Duration) *reactor.Timer {
	p.mu.Lock()
	p.loop = r
	p.mu.Unlock()
	step := interval.Seconds()
	return r.RegisterTimer(func(eventtime float64) float64 {
		p.Tick()
		return eventtime + step
	}, reactor.NOW)
}

// RunScript executes G-code on the calling goroutine.
func (p *Printer) RunScript(script string) ([]string, error) {
	return p.gcode.RunScript(script)
}

type scriptResult struct {
	lines []string
	err   error
}

// Submit executes a script on the reactor goroutine and waits for its
// responses.
func (p *Printer) Submit(ctx context.Context, r *reactor.Reactor, script string) ([]string, error) {
	completion := r.RegisterAsyncCallback(func(float64) interface{} {
		lines, err := p.RunScript(script)
		return scriptResult{lines: lines, err: err}
	})
	v, err := completion.WaitContext(ctx)
	if err != nil {
		return nil, err
	}
	switch res := v.(type) {
	case scriptResult:
		return res.lines, res.err
	case error:
		return nil, res
	default:
		return nil, fmt.Errorf("printer: unexpected completion result %T", v)
	}
}

// Execute runs a script on the attached reactor, or directly when the
// printer is not attached.
func (p *Printer) Execute(ctx context.Context, script string) ([]string, error) {
	p.mu.Lock()
	r := p.loop
	p.mu.Unlock()
	if r == nil {
		return p.RunScript(script)
	}
	return p.Submit(ctx, r, script)
}

func (p *Printer) IdleSettings() idle.Settings {
	return p.monitor.Settings()
}

// ValidateIdleSettings checks s, including the fallback targets against the
// configured heaters.
func (p *Printer) ValidateIdleSettings(s idle.Settings) error {
	return s.ValidateFor(p.heaters, p.monitor.HeatedBed())
}

// ApplyIdleSettings validates and installs new idle protection settings.
func (p *Printer) ApplyIdleSettings(s idle.Settings) error {
	if err := p.ValidateIdleSettings(s); err != nil {
		return err
	}
	p.monitor.SetSettings(s)
	p.logger.WithField("settings", s.Command(p.monitor.HeatedBed())).Info("idle protection updated")
	return nil
}

// State snapshots the settings M500 persists.
func (p *Printer) State() persist.State {
	return persist.State{
		Version:    persist.Version,
		Idle:       p.monitor.Settings(),
		Shaping:    p.shaper.Snapshot(),
		ToolHeadID: p.toolHead.ID(),
	}
}

// SaveState writes the current settings to the state file.
func (p *Printer) SaveState() error {
	if p.stateFile == "" {
		return errors.SettingsError("no state file configured")
	}
	return persist.Save(p.stateFile, p.State())
}

// LoadState replaces the current settings with the saved ones.
func (p *Printer) LoadState() error {
	if p.stateFile == "" {
		return errors.SettingsError("no state file configured")
	}
	st, err := persist.Load(p.stateFile)
	if err != nil {
		return err
	}
	p.ApplyState(st)
	return nil
}

// ApplyState installs a validated snapshot.
func (p *Printer) ApplyState(st persist.State) {
	if err := p.ValidateIdleSettings(st.Idle); err != nil {
		p.logger.WithError(err).Warn("ignoring saved idle protection settings")
	} else {
		p.monitor.SetSettings(st.Idle)
	}
	for axis, params := range st.Shaping {
		if err := p.shaper.Set(axis, params); err != nil {
			p.logger.WithError(err).Warn("ignoring saved %s axis shaping", axis)
		}
	}
	if st.ToolHeadID != 0 {
		if err := p.toolHead.SetID(st.ToolHeadID); err != nil {
			p.logger.WithError(err).Warn("ignoring saved tool head id")
		}
	}
}

// ResetState restores the configured settings (M502).
func (p *Printer) ResetState() {
	p.monitor.SetSettings(p.cfg.Idle)
	p.shaper.Reset()
	if err := p.applyShaperConfig(); err != nil {
		p.logger.WithError(err).Warn("input shaper reset")
	}
	if err := p.toolHead.SetID(p.cfg.ToolHead.ID); err != nil {
		p.logger.WithError(err).Warn("tool head reset")
	}
}

// Status is a snapshot of the whole printer.
type Status struct {
	Idle          idle.Status                             `json:"idle"`
	Heaters       []heater.Status                         `json:"heaters"`
	Motion        motion.Status                           `json:"motion"`
	Shaping       map[inputshaper.Axis]inputshaper.Params `json:"input_shaper"`
	ToolHead      ToolHeadStatus                          `json:"tool_head"`
	Screen        string                                  `json:"screen"`
	StatusMessage string                                  `json:"status_message"`
	Probing       bool                                    `json:"probing"`
	Safety        safety.Status                           `json:"safety"`
	Ticks         uint64                                  `json:"ticks"`
}

type ToolHeadStatus struct {
	Family toolhead.Family `json:"family"`
	ID     int             `json:"id"`
	Name   string          `json:"name"`
}

func (p *Printer) Status() Status {
	return Status{
		Idle:    p.monitor.Status(),
		Heaters: p.heaters.Statuses(),
		Motion:  p.planner.GetStatus(),
		Shaping: p.shaper.Snapshot(),
		ToolHead: ToolHeadStatus{
			Family: p.toolHead.Family(),
			ID:     p.toolHead.ID(),
			Name:   p.toolHead.Name(),
		},
		Screen:        p.nav.Current().Name(),
		StatusMessage: p.nav.StatusMessage(),
		Probing:       p.board.Probing(),
		Safety:        p.safety.Status(),
		Ticks:         p.Ticks(),
	}
}

func (p *Printer) Config() *config.PrinterConfig { return p.cfg }
func (p *Printer) Monitor() *idle.Monitor        { return p.monitor }
func (p *Printer) Heaters() *heater.Bank         { return p.heaters }
func (p *Printer) Planner() *motion.Planner      { return p.planner }
func (p *Printer) Shaper() *inputshaper.Shaper   { return p.shaper }
func (p *Printer) ToolHead() *toolhead.Registry  { return p.toolHead }
func (p *Printer) Board() *board.Board           { return p.board }
func (p *Printer) Pins() board.PinDriver         { return p.pins }
func (p *Printer) Navigator() *ui.Navigator      { return p.nav }
func (p *Printer) About() *ui.AboutScreen        { return p.about }
func (p *Printer) EndPrint() *ui.EndPrintScreen  { return p.endPrint }
func (p *Printer) Dispatcher() *gcode.Dispatcher { return p.gcode }
func (p *Printer) Safety() *safety.Manager       { return p.safety }
