// Log rotation tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingFileWriterRequiresName(t *testing.T) {
	if _, err := NewRotatingFileWriter(RotationConfig{}); err == nil {
		t.Fatal("expected error for empty filename")
	}
}

func TestRotatingFileWriterRotates(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "logs", "idleguard.log")

	w, err := NewRotatingFileWriter(RotationConfig{Filename: name, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingFileWriter: %v", err)
	}
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 600*1024))
	for i := 0; i < 4; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	for _, n := range []string{name, name + ".1", name + ".2"} {
		if _, err := os.Stat(n); err != nil {
			t.Errorf("expected %s to exist: %v", n, err)
		}
	}
	if _, err := os.Stat(name + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond MaxBackups should not exist")
	}
	if got := w.CurrentSize(); got != int64(len(chunk)) {
		t.Errorf("got size %d, want %d", got, len(chunk))
	}
}

func TestFileLoggerWrites(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.log")
	w, err := NewRotatingFileWriter(RotationConfig{Filename: name})
	if err != nil {
		t.Fatal(err)
	}
	l := New("file")
	l.SetWriter(w)
	l.Info("persisted")
	w.Close()

	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "file: persisted") {
		t.Errorf("got %q", data)
	}
}
