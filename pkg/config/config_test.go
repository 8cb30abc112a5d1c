package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadString(t *testing.T) {
	data := `
# idle protection
[idle_protection]
timeout: 600
trigger = 2.5 ; inline comment

[server]
listen: :8080
`
	cfg, err := LoadString(data)
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	if !cfg.HasSection("idle_protection") || !cfg.HasSection("server") {
		t.Fatal("expected both sections")
	}
	if cfg.HasSection("nonexistent") {
		t.Error("expected [nonexistent] section to not exist")
	}
	if got := cfg.SectionNames(); !reflect.DeepEqual(got, []string{"idle_protection", "server"}) {
		t.Errorf("got sections %v", got)
	}

	s, err := cfg.GetSection("idle_protection")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "idle_protection" {
		t.Errorf("got name %q", s.Name())
	}
	timeout, err := s.GetInt("timeout")
	if err != nil || timeout != 600 {
		t.Errorf("got %d, %v; want 600", timeout, err)
	}
	trigger, err := s.GetFloat("TRIGGER")
	if err != nil || trigger != 2.5 {
		t.Errorf("got %v, %v; want 2.5", trigger, err)
	}

	srv, _ := cfg.GetSection("server")
	listen, _ := srv.Get("listen")
	if listen != ":8080" {
		t.Errorf("got listen %q, want :8080", listen)
	}
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"option before section", "timeout: 5\n"},
		{"empty header", "[]\n"},
		{"missing separator", "[a]\njunk\n"},
		{"include", "[include other.cfg]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.data)
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("got %v, want *ConfigError", err)
			}
			if cerr.Line == 0 {
				t.Errorf("expected a line number in %v", cerr)
			}
		})
	}
}

func TestGetters(t *testing.T) {
	cfg, err := LoadString(`
[s]
i: 42
f: 1.5
b: yes
bad: x
nan: NaN
inf: +Inf
choice: Galaxy
list: a, b,,c
`)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := cfg.GetSection("s")

	if _, err := s.Get("missing"); err == nil {
		t.Error("expected missing option error")
	}
	if v, _ := s.Get("missing", "dflt"); v != "dflt" {
		t.Errorf("got %q, want fallback", v)
	}
	if _, err := s.GetInt("bad"); err == nil {
		t.Error("expected integer parse error")
	}
	if _, err := s.GetFloat("bad"); err == nil {
		t.Error("expected float parse error")
	}
	for _, option := range []string{"nan", "inf"} {
		if _, err := s.GetFloat(option); err == nil {
			t.Errorf("%s: expected non-finite float error", option)
		}
	}
	if b, err := s.GetBool("b"); err != nil || !b {
		t.Errorf("got %v, %v; want true", b, err)
	}
	if _, err := s.GetBool("bad"); err == nil {
		t.Error("expected bool parse error")
	}
	if c, err := s.GetChoice("choice", []string{"galaxy", "quiver"}); err != nil || c != "galaxy" {
		t.Errorf("got %q, %v; want galaxy", c, err)
	}
	if _, err := s.GetChoice("bad", []string{"galaxy"}); err == nil {
		t.Error("expected invalid choice error")
	}
	if l, _ := s.GetList("list", ","); !reflect.DeepEqual(l, []string{"a", "b", "c"}) {
		t.Errorf("got %v", l)
	}
}

func TestBounds(t *testing.T) {
	cfg, _ := LoadString("[s]\nlow: -1\nzero: 0\nhigh: 2\n")
	s, _ := cfg.GetSection("s")

	tests := []struct {
		option  string
		bounds  Bounds
		wantErr bool
	}{
		{"low", Bounds{Min: Float(0)}, true},
		{"zero", Bounds{Min: Float(0)}, false},
		{"zero", Bounds{Above: Float(0)}, true},
		{"high", Bounds{Max: Float(1)}, true},
		{"high", Bounds{Min: Float(0), Max: Float(2)}, false},
	}
	for _, tt := range tests {
		_, err := s.GetFloatWithBounds(tt.option, tt.bounds)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s %+v: got err %v, wantErr %v", tt.option, tt.bounds, err, tt.wantErr)
		}
	}
	if _, err := s.GetIntWithBounds("low", Bounds{Min: Float(0)}); err == nil {
		t.Error("expected int bound error")
	}
}

func TestUnused(t *testing.T) {
	cfg, _ := LoadString("[used]\na: 1\nb: 2\n[ignored]\nc: 3\n")
	s, _ := cfg.GetSection("used")
	s.Get("a")

	want := []string{"used.b", "ignored"}
	if got := cfg.Unused(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRepeatedSectionsMerge(t *testing.T) {
	cfg, _ := LoadString("[a]\nx: 1\n[a]\nx: 2\ny: 3\n")
	s, _ := cfg.GetSection("a")
	if x, _ := s.GetInt("x"); x != 2 {
		t.Errorf("got x=%d, want later value 2", x)
	}
	if !s.HasOption("y") {
		t.Error("expected y to be merged")
	}
}

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "conf.d/bed.cfg", "[heater_bed]\nmax_temp: 110\n")
	writeFile(t, dir, "conf.d/shaper.cfg", "[input_shaper]\nshaper_freq_x: 55\n")
	main := writeFile(t, dir, "printer.cfg", "[include conf.d/*.cfg]\n[idle_protection]\ntimeout: 120\n")

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"heater_bed", "input_shaper", "idle_protection"} {
		if !cfg.HasSection(name) {
			t.Errorf("expected section %s", name)
		}
	}
}

func TestLoadIncludeErrors(t *testing.T) {
	dir := t.TempDir()
	missing := writeFile(t, dir, "missing.cfg", "[include nope.cfg]\n")
	if _, err := Load(missing); err == nil {
		t.Error("expected error for missing include")
	}

	loop := writeFile(t, dir, "loop.cfg", "[include loop.cfg]\n")
	if _, err := Load(loop); err == nil || !strings.Contains(err.Error(), "recursive") {
		t.Errorf("got %v, want recursive include error", err)
	}

	if _, err := Load(filepath.Join(dir, "absent.cfg")); err == nil {
		t.Error("expected error for absent file")
	}
}

func TestParsePin(t *testing.T) {
	opts := PinOptions{CanInvert: true, CanPullup: true}
	tests := []struct {
		in   string
		want Pin
	}{
		{"PB1", Pin{Name: "PB1", Chip: "mcu"}},
		{"!PA17", Pin{Name: "PA17", Chip: "mcu", Invert: true}},
		{"^PA18", Pin{Name: "PA18", Chip: "mcu", Pullup: 1}},
		{"probe:z_virtual_endstop", Pin{Name: "z_virtual_endstop", Chip: "probe"}},
		{"!^PC3", Pin{Name: "PC3", Chip: "mcu", Invert: true, Pullup: 1}},
		{"~ !expander:P2", Pin{Name: "P2", Chip: "expander", Invert: true, Pullup: -1}},
	}
	for _, tt := range tests {
		got, err := ParsePin(tt.in, opts)
		if err != nil {
			t.Errorf("ParsePin(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePin(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if _, err := ParsePin("!PA1", PinOptions{}); err == nil {
		t.Error("expected error for inversion without CanInvert")
	}
	if _, err := ParsePin("  ", opts); err == nil {
		t.Error("expected error for empty pin")
	}
	if _, err := ParsePin("^^PA1", opts); err == nil {
		t.Error("expected error for a repeated modifier")
	}
	if _, err := ParsePin(":PA1", opts); err == nil {
		t.Error("expected error for an empty chip")
	}
}

func TestPrinterConfigDefaults(t *testing.T) {
	cfg, _ := LoadString("")
	pc, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pc.Idle.Timeout != 300 || pc.Idle.Trigger != 2 {
		t.Errorf("got idle %+v", pc.Idle)
	}
	if pc.HeaterBed != nil {
		t.Error("bed should be absent without [heater_bed]")
	}
	if pc.Server.Tick != 100*time.Millisecond {
		t.Errorf("got tick %v", pc.Server.Tick)
	}
	if pc.ToolHead.Family != "legacy_universal" || pc.ToolHead.ID != 1 {
		t.Errorf("got tool head %+v", pc.ToolHead)
	}
}

func TestParsePrinterConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "printer.cfg", `
[idle_protection]
timeout: 600
bed_timeout: 900
trigger: 3
bed_trigger: 1
nozzle_target: 150
bed_target: 40

[extruder]
max_temp: 290
time_constant: 10

[heater_bed]
max_temp: 110

[input_shaper]
shaper_freq_x: 50
damping_ratio_y: 0.2

[tool_head]
family: galaxy
id: 5

[board]
name: archim2
variant: TAZProV2
probe_pins: PB8, !PA17

[machine]
name: TAZ Pro
extruder_type: Universal
long_bed: true

[server]
listen: 127.0.0.1:9000
tick: 0.25
stall_timeout: 2
`)
	pc, err := ParsePrinterConfig(path)
	if err != nil {
		t.Fatalf("ParsePrinterConfig: %v", err)
	}
	if pc.Idle.Timeout != 600 || pc.Idle.BedTimeout != 900 || pc.Idle.NozzleTarget != 150 || pc.Idle.BedTarget != 40 {
		t.Errorf("got idle %+v", pc.Idle)
	}
	if pc.Extruder.MaxTemp != 290 || pc.Extruder.TimeConstant != 10*time.Second {
		t.Errorf("got extruder %+v", pc.Extruder)
	}
	if pc.HeaterBed == nil || pc.HeaterBed.MaxTemp != 110 {
		t.Errorf("got bed %+v", pc.HeaterBed)
	}
	if pc.Shaper.FrequencyX != 50 || pc.Shaper.DampingRatioX != 0.1 || pc.Shaper.DampingRatioY != 0.2 {
		t.Errorf("got shaper %+v", pc.Shaper)
	}
	if pc.ToolHead.Family != "galaxy" || pc.ToolHead.ID != 5 {
		t.Errorf("got tool head %+v", pc.ToolHead)
	}
	if pc.Board.Variant != "TAZProV2" || len(pc.Board.ProbePins) != 2 || !pc.Board.ProbePins[1].Invert {
		t.Errorf("got board %+v", pc.Board)
	}
	if !pc.Machine.LongBed || pc.Machine.Name != "TAZ Pro" {
		t.Errorf("got machine %+v", pc.Machine)
	}
	if pc.Server.Listen != "127.0.0.1:9000" || pc.Server.Tick != 250*time.Millisecond || pc.Server.StallTimeout != 2*time.Second {
		t.Errorf("got server %+v", pc.Server)
	}
}

func TestParsePrinterConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative timeout", "[idle_protection]\ntimeout: -1\n"},
		{"timeout too long", "[idle_protection]\ntimeout: 100000\n"},
		{"fallback too hot", "[idle_protection]\nnozzle_target: 900\n"},
		{"damping out of range", "[input_shaper]\ndamping_ratio_x: 1.5\n"},
		{"zero frequency", "[input_shaper]\nshaper_freq_y: 0\n"},
		{"tool head id", "[tool_head]\nid: 21\n"},
		{"tool head family", "[tool_head]\nfamily: unknown\n"},
		{"tick", "[server]\ntick: 0\n"},
		{"stall timeout", "[server]\nstall_timeout: -1\n"},
		{"fallback above extruder max_temp", "[extruder]\nmax_temp: 300\n[idle_protection]\nnozzle_target: 350\n"},
		{"fallback below extruder min_temp", "[extruder]\nmin_temp: 170\n[idle_protection]\nnozzle_target: 150\n"},
		{"bed fallback above bed max_temp", "[heater_bed]\nmax_temp: 110\n[idle_protection]\nbed_target: 120\n"},
		{"non-finite trigger", "[idle_protection]\ntrigger: nan\n"},
		{"pulled-up probe pin", "[board]\nprobe_pins: ^PB8\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadString(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := FromConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
