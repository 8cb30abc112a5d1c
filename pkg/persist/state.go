// Persisted operator settings (M500/M501/M502)
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package persist

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"idleguard/pkg/errors"
	"idleguard/pkg/idle"
	"idleguard/pkg/inputshaper"
	"idleguard/pkg/toolhead"
)

// Version of the state file layout.
const Version = 1

// State is the settings snapshot written by M500.
type State struct {
	Version    int                                     `yaml:"version"`
	SavedAt    time.Time                               `yaml:"saved_at"`
	Idle       idle.Settings                           `yaml:"idle_protection"`
	Shaping    map[inputshaper.Axis]inputshaper.Params `yaml:"input_shaper,omitempty"`
	ToolHeadID int                                     `yaml:"tool_head_id,omitempty"`
}

// Validate rejects snapshots that would not be accepted from the command line.
func (s State) Validate() error {
	if s.Version != Version {
		return errors.SettingsError(fmt.Sprintf("unsupported state version %d", s.Version))
	}
	if err := s.Idle.Validate(); err != nil {
		return err
	}
	for axis, p := range s.Shaping {
		if err := p.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrSettings, fmt.Sprintf("axis %s", axis))
		}
	}
	if s.ToolHeadID != 0 && (s.ToolHeadID < toolhead.MinID || s.ToolHeadID > toolhead.MaxID) {
		return errors.SettingsError(fmt.Sprintf("tool head id %d out of range", s.ToolHeadID))
	}
	return nil
}

// Load reads and validates the state file. A missing file yields an error
// matching fs.ErrNotExist.
func Load(path string) (State, error) {
	var state State
	data, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("read state file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return state, errors.StoreError(err, fmt.Sprintf("parse state file %q", path))
	}
	if err := state.Validate(); err != nil {
		return state, err
	}
	return state, nil
}

// Exists reports whether a state file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !stderrors.Is(err, fs.ErrNotExist)
}

// Save writes the state atomically through a temporary file.
func Save(path string, state State) error {
	if state.Version == 0 {
		state.Version = Version
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.StoreError(err, fmt.Sprintf("ensure state dir %q", dir))
		}
	}

	data, err := yaml.Marshal(&state)
	if err != nil {
		return errors.StoreError(err, "marshal state")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.StoreError(err, fmt.Sprintf("write temp state file %q", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.StoreError(err, fmt.Sprintf("commit state file %q", path))
	}
	return nil
}

// Remove deletes the state file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.StoreError(err, fmt.Sprintf("remove state file %q", path))
	}
	return nil
}
