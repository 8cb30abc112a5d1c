package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config is a parsed configuration with access tracking.
type Config struct {
	mu       sync.RWMutex
	sections map[string]*Section
	order    []string
	accessed map[string]struct{}
}

func New() *Config {
	return &Config{
		sections: make(map[string]*Section),
		accessed: make(map[string]struct{}),
	}
}

// Load reads a configuration file, following [include pattern] directives
// relative to the including file.
func Load(path string) (*Config, error) {
	c := New()
	if err := c.parseFile(path, make(map[string]bool)); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadString parses configuration text. Include directives are rejected.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "", "", nil); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: invalid path %s: %w", path, err)
	}
	if visited[abs] {
		return fmt.Errorf("config: recursive include: %s", path)
	}
	visited[abs] = true
	defer func() { visited[abs] = false }()

	f, err := os.Open(abs)
	if err != nil {
		return fmt.Errorf("config: unable to open %s: %w", path, err)
	}
	defer f.Close()

	include := func(spec string) error {
		pattern := filepath.Join(filepath.Dir(abs), spec)
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("config: invalid include pattern %q: %w", spec, err)
		}
		if len(matches) == 0 && !strings.ContainsAny(pattern, "*?[") {
			return fmt.Errorf("config: include file does not exist: %s", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if err := c.parseFile(m, visited); err != nil {
				return err
			}
		}
		return nil
	}
	return c.parse(f, path, filepath.Dir(abs), include)
}

// parse reads sections from r. include is nil when includes are not allowed.
func (c *Config) parse(r io.Reader, name, dir string, include func(spec string) error) error {
	var current *Section
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if idx := strings.IndexAny(line, "#;"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return &ConfigError{File: name, Line: lineNum, Message: "empty section header"}
			}
			if spec, ok := strings.CutPrefix(header, "include "); ok {
				if include == nil {
					return &ConfigError{File: name, Line: lineNum, Message: "include not supported here"}
				}
				if err := include(strings.TrimSpace(spec)); err != nil {
					return err
				}
				current = nil
				continue
			}
			current = c.section(header)
			continue
		}

		if current == nil {
			return &ConfigError{File: name, Line: lineNum, Message: "option outside of a section"}
		}
		sep := strings.IndexAny(line, ":=")
		if sep <= 0 || strings.TrimSpace(line[:sep]) == "" {
			return &ConfigError{File: name, Line: lineNum, Section: current.name, Message: fmt.Sprintf("malformed line %q", line)}
		}
		current.set(strings.TrimSpace(line[:sep]), strings.TrimSpace(line[sep+1:]))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: error reading %s: %w", name, err)
	}
	return nil
}

// section returns the named section, creating it on first use. Repeated
// headers merge into one section; later values win.
func (c *Config) section(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sections[name]; ok {
		return s
	}
	s := newSection(name)
	c.sections[name] = s
	c.order = append(c.order, name)
	return s
}

func (c *Config) GetSection(name string) (*Section, error) {
	if s := c.GetSectionOptional(name); s != nil {
		return s, nil
	}
	return nil, ErrMissingSection(name)
}

// GetSectionOptional returns the section or nil.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sections[name]
	if ok {
		c.accessed[name] = struct{}{}
	}
	return s
}

func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[name]
	return ok
}

// SectionNames lists sections in file order.
func (c *Config) SectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Unused lists sections never requested and options never read, as
// "section" and "section.option" entries.
func (c *Config) Unused() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, name := range c.order {
		if _, ok := c.accessed[name]; !ok {
			out = append(out, name)
			continue
		}
		for _, opt := range c.sections[name].UnusedOptions() {
			out = append(out, name+"."+opt)
		}
	}
	return out
}
