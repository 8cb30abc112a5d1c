package gcode

import (
	"bufio"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"idleguard/pkg/errors"
	"idleguard/pkg/log"
)

// Response collects the lines a command writes back to the host.
type Response struct {
	lines []string
}

// Respond appends a raw line.
func (r *Response) Respond(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// Echo appends an "echo:" line.
func (r *Response) Echo(format string, args ...interface{}) {
	r.Respond("echo:"+format, args...)
}

func (r *Response) Lines() []string {
	return r.lines
}

// HandlerFunc runs one command.
type HandlerFunc func(cmd *Command, resp *Response) error

// Observer is told about every executed command.
type Observer func(command string, d time.Duration, err error)

// Gate may refuse a command before its handler runs.
type Gate func(cmd *Command) error

type entry struct {
	fn   HandlerFunc
	help string
}

// Dispatcher maps command names to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]entry
	observer Observer
	gate     Gate
	logger   *log.Logger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]entry),
		logger:   log.GetLogger("gcode"),
	}
}

// SetObserver installs a hook called after every command.
func (d *Dispatcher) SetObserver(o Observer) {
	d.mu.Lock()
	d.observer = o
	d.mu.Unlock()
}

// SetGate installs a check run before every handler.
func (d *Dispatcher) SetGate(g Gate) {
	d.mu.Lock()
	d.gate = g
	d.mu.Unlock()
}

// Register adds a handler. Names are case-insensitive.
func (d *Dispatcher) Register(name, help string, fn HandlerFunc) error {
	name = strings.ToUpper(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[name]; ok {
		return fmt.Errorf("gcode: command %s already registered", name)
	}
	d.handlers[name] = entry{fn: fn, help: help}
	return nil
}

// MustRegister is Register that panics on duplicates.
func (d *Dispatcher) MustRegister(name, help string, fn HandlerFunc) {
	if err := d.Register(name, help, fn); err != nil {
		panic(err)
	}
}

// Commands lists registered names, sorted.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Help returns the help text of a command.
func (d *Dispatcher) Help(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.handlers[strings.ToUpper(name)]
	return e.help, ok
}

// Run executes a single line.
func (d *Dispatcher) Run(line string) ([]string, error) {
	cmd, err := ParseLine(line)
	if err != nil || cmd == nil {
		return nil, err
	}
	return d.Execute(cmd)
}

// Execute runs an already parsed command.
func (d *Dispatcher) Execute(cmd *Command) ([]string, error) {
	d.mu.RLock()
	e, ok := d.handlers[cmd.Name]
	observer := d.observer
	gate := d.gate
	d.mu.RUnlock()
	if !ok {
		return nil, errors.GCodeUnknownCommandError(cmd.Name)
	}
	if gate != nil {
		if err := gate(cmd); err != nil {
			d.logger.Debug("%s refused: %v", cmd.Name, err)
			return nil, err
		}
	}

	d.logger.Debug("executing %s", cmd)
	var resp Response
	start := time.Now()
	err := e.fn(cmd, &resp)
	if observer != nil {
		observer(cmd.Name, time.Since(start), err)
	}
	if err != nil {
		d.logger.WithError(err).Warn("%s failed", cmd.Name)
	}
	return resp.Lines(), err
}

// RunScript executes a multi-line script and stops at the first error.
// Lines produced before the error are returned with it.
func (d *Dispatcher) RunScript(script string) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		lines, err := d.Run(scanner.Text())
		out = append(out, lines...)
		if err != nil {
			return out, err
		}
	}
	return out, scanner.Err()
}
