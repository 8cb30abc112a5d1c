package config

import (
	"fmt"
	"time"

	"idleguard/pkg/heater"
	"idleguard/pkg/idle"
)

// ShaperConfig holds the [input_shaper] defaults restored by M593 resets.
type ShaperConfig struct {
	FrequencyX    float64
	DampingRatioX float64
	FrequencyY    float64
	DampingRatioY float64
}

// ToolHeadConfig selects the tool head table and the initial id.
type ToolHeadConfig struct {
	Family string
	ID     int
}

// BoardConfig selects the startup pin profile.
type BoardConfig struct {
	Name      string
	Variant   string
	ProbePins []Pin
}

// MachineConfig is shown on the About screen.
type MachineConfig struct {
	Name         string
	ExtruderType string
	Version      string
	Website      string
	LongBed      bool
	BLTouch      bool
}

// ServerConfig holds the daemon settings. Command line flags override them.
type ServerConfig struct {
	Listen    string
	StateFile string
	HistoryDB string
	Tick      time.Duration

	// StallTimeout halts the printer when the main loop stops ticking.
	StallTimeout time.Duration
}

// PrinterConfig holds the full printer configuration.
type PrinterConfig struct {
	Idle      idle.Settings
	Extruder  heater.Config
	HeaterBed *heater.Config // nil without a [heater_bed] section
	Shaper    ShaperConfig
	ToolHead  ToolHeadConfig
	Board     BoardConfig
	Machine   MachineConfig
	Server    ServerConfig
}

// DefaultPrinterConfig is the configuration used for empty files.
func DefaultPrinterConfig() *PrinterConfig {
	return &PrinterConfig{
		Idle:     idle.DefaultSettings(),
		Extruder: heater.DefaultConfig(heater.Extruder),
		Shaper: ShaperConfig{
			FrequencyX: 40, DampingRatioX: 0.1,
			FrequencyY: 40, DampingRatioY: 0.1,
		},
		ToolHead: ToolHeadConfig{Family: "legacy_universal", ID: 1},
		Board:    BoardConfig{Name: "generic"},
		Machine: MachineConfig{
			Name:    "idleguard",
			Version: "dev",
		},
		Server: ServerConfig{
			Listen:       ":7125",
			StateFile:    "idleguard.yaml",
			HistoryDB:    "idleguard.db",
			Tick:         100 * time.Millisecond,
			StallTimeout: 5 * time.Second,
		},
	}
}

// ParsePrinterConfig reads and parses a printer.cfg file.
func ParsePrinterConfig(path string) (*PrinterConfig, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(c)
}

// FromConfig extracts the printer configuration from parsed sections.
// Missing sections keep their defaults.
func FromConfig(c *Config) (*PrinterConfig, error) {
	pc := DefaultPrinterConfig()
	steps := []func(*Config, *PrinterConfig) error{
		parseIdle,
		parseHeaters,
		checkIdleTargets,
		parseShaper,
		parseToolHead,
		parseBoard,
		parseMachine,
		parseServer,
	}
	for _, step := range steps {
		if err := step(c, pc); err != nil {
			return nil, err
		}
	}
	return pc, nil
}

func parseIdle(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("idle_protection")
	if s == nil {
		return nil
	}
	d := pc.Idle
	nonNeg := Bounds{Min: Float(0)}
	timeouts := Bounds{Min: Float(0), Max: Float(idle.MaxTimeout)}
	temps := Bounds{Min: Float(0), Max: Float(idle.MaxTemp)}

	var err error
	if pc.Idle.Timeout, err = s.GetIntWithBounds("timeout", timeouts, d.Timeout); err != nil {
		return err
	}
	if pc.Idle.BedTimeout, err = s.GetIntWithBounds("bed_timeout", timeouts, d.BedTimeout); err != nil {
		return err
	}
	if pc.Idle.Trigger, err = s.GetFloatWithBounds("trigger", nonNeg, d.Trigger); err != nil {
		return err
	}
	if pc.Idle.BedTrigger, err = s.GetFloatWithBounds("bed_trigger", nonNeg, d.BedTrigger); err != nil {
		return err
	}
	if pc.Idle.NozzleTarget, err = s.GetFloatWithBounds("nozzle_target", temps, d.NozzleTarget); err != nil {
		return err
	}
	if pc.Idle.BedTarget, err = s.GetFloatWithBounds("bed_target", temps, d.BedTarget); err != nil {
		return err
	}
	return nil
}

// CheckTarget validates target against the configured heater id.
func (pc *PrinterConfig) CheckTarget(id heater.ID, target float64) error {
	var cfg heater.Config
	switch {
	case id == heater.Extruder:
		cfg = pc.Extruder
	case id == heater.HeaterBed && pc.HeaterBed != nil:
		cfg = *pc.HeaterBed
	default:
		return fmt.Errorf("%w: %s", heater.ErrUnknownHeater, id)
	}
	if err := cfg.CheckTarget(target); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

func checkIdleTargets(c *Config, pc *PrinterConfig) error {
	return pc.Idle.ValidateFor(pc, pc.HeaterBed != nil)
}

func parseHeater(s *Section, cfg *heater.Config) error {
	var err error
	if cfg.MaxTemp, err = s.GetFloatWithBounds("max_temp", Bounds{Above: Float(0)}, cfg.MaxTemp); err != nil {
		return err
	}
	if cfg.MinTemp, err = s.GetFloatWithBounds("min_temp", Bounds{Max: Float(cfg.MaxTemp)}, cfg.MinTemp); err != nil {
		return err
	}
	if cfg.Ambient, err = s.GetFloat("ambient", cfg.Ambient); err != nil {
		return err
	}
	tau, err := s.GetFloatWithBounds("time_constant", Bounds{Above: Float(0)}, cfg.TimeConstant.Seconds())
	if err != nil {
		return err
	}
	cfg.TimeConstant = time.Duration(tau * float64(time.Second))
	return nil
}

func parseHeaters(c *Config, pc *PrinterConfig) error {
	if s := c.GetSectionOptional("extruder"); s != nil {
		if err := parseHeater(s, &pc.Extruder); err != nil {
			return err
		}
	}
	if s := c.GetSectionOptional("heater_bed"); s != nil {
		bed := heater.DefaultConfig(heater.HeaterBed)
		if err := parseHeater(s, &bed); err != nil {
			return err
		}
		pc.HeaterBed = &bed
	}
	return nil
}

func parseShaper(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("input_shaper")
	if s == nil {
		return nil
	}
	freq := Bounds{Above: Float(0)}
	zeta := Bounds{Min: Float(0), Max: Float(1)}
	d := pc.Shaper
	var err error
	if pc.Shaper.FrequencyX, err = s.GetFloatWithBounds("shaper_freq_x", freq, d.FrequencyX); err != nil {
		return err
	}
	if pc.Shaper.DampingRatioX, err = s.GetFloatWithBounds("damping_ratio_x", zeta, d.DampingRatioX); err != nil {
		return err
	}
	if pc.Shaper.FrequencyY, err = s.GetFloatWithBounds("shaper_freq_y", freq, d.FrequencyY); err != nil {
		return err
	}
	if pc.Shaper.DampingRatioY, err = s.GetFloatWithBounds("damping_ratio_y", zeta, d.DampingRatioY); err != nil {
		return err
	}
	return nil
}

var toolHeadFamilies = []string{"galaxy", "legacy_universal", "quiver", "twin_nebula"}

func parseToolHead(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("tool_head")
	if s == nil {
		return nil
	}
	var err error
	if pc.ToolHead.Family, err = s.GetChoice("family", toolHeadFamilies, pc.ToolHead.Family); err != nil {
		return err
	}
	if pc.ToolHead.ID, err = s.GetIntWithBounds("id", Bounds{Min: Float(1), Max: Float(20)}, pc.ToolHead.ID); err != nil {
		return err
	}
	return nil
}

func parseBoard(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("board")
	if s == nil {
		return nil
	}
	var err error
	if pc.Board.Name, err = s.Get("name", pc.Board.Name); err != nil {
		return err
	}
	if pc.Board.Variant, err = s.Get("variant", ""); err != nil {
		return err
	}
	pc.Board.ProbePins, err = s.GetPinList("probe_pins", PinOptions{CanInvert: true})
	return err
}

func parseMachine(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("machine")
	if s == nil {
		return nil
	}
	m := &pc.Machine
	var err error
	for _, opt := range []struct {
		name string
		dst  *string
	}{
		{"name", &m.Name},
		{"extruder_type", &m.ExtruderType},
		{"version", &m.Version},
		{"website", &m.Website},
	} {
		if *opt.dst, err = s.Get(opt.name, *opt.dst); err != nil {
			return err
		}
	}
	if m.LongBed, err = s.GetBool("long_bed", false); err != nil {
		return err
	}
	if m.BLTouch, err = s.GetBool("bltouch", false); err != nil {
		return err
	}
	return nil
}

func parseServer(c *Config, pc *PrinterConfig) error {
	s := c.GetSectionOptional("server")
	if s == nil {
		return nil
	}
	srv := &pc.Server
	var err error
	if srv.Listen, err = s.Get("listen", srv.Listen); err != nil {
		return err
	}
	if srv.StateFile, err = s.Get("state_file", srv.StateFile); err != nil {
		return err
	}
	if srv.HistoryDB, err = s.Get("history_db", srv.HistoryDB); err != nil {
		return err
	}
	tick, err := s.GetFloatWithBounds("tick", Bounds{Above: Float(0), Max: Float(1)}, srv.Tick.Seconds())
	if err != nil {
		return err
	}
	srv.Tick = time.Duration(tick * float64(time.Second))
	stall, err := s.GetFloatWithBounds("stall_timeout", Bounds{Min: Float(0)}, srv.StallTimeout.Seconds())
	if err != nil {
		return err
	}
	srv.StallTimeout = time.Duration(stall * float64(time.Second))
	return nil
}
