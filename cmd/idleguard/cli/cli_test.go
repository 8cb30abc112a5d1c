package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idleguard/pkg/config"
	"idleguard/pkg/history"
	"idleguard/pkg/idle"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configFile = ""
		patternOut = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "printer.cfg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "idleguard dev "), out)
}

func TestCheck(t *testing.T) {
	path := writeConfig(t, `
[idle_protection]
timeout: 120
trigger: 3
nozzle_target: 150

[heater_bed]
max_temp: 110

[board]
name: archim2
colour: blue
`)
	out, err := execute(t, "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "M86 S120 T3 E150")
	assert.Contains(t, out, "board: archim2")
	assert.Contains(t, out, "unused: board.colour")
}

func TestCheckRejectsBadConfig(t *testing.T) {
	path := writeConfig(t, "[idle_protection]\ntimeout: -5\n")
	_, err := execute(t, "check", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestPatternToFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "zeta.gcode")
	_, err := execute(t, "pattern", "zeta_y", "-o", dst, "--top-freq", "5")
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(data), "M593 Y D0.05")
	assert.Contains(t, string(data), "M593 Y D1.00")
}

func TestPatternUnknownKind(t *testing.T) {
	_, err := execute(t, "pattern", "sine")
	assert.Error(t, err)
}

func TestHistoryCommand(t *testing.T) {
	db := filepath.Join(t.TempDir(), "events.db")
	store, err := history.Open(db)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, idle.Event{
		ID: uuid.New(), Kind: idle.KindNozzleTimeout, Resource: idle.ResourceNozzle,
		At: time.Now(), From: 210, To: 150, Message: "Hotend Idle Timeout",
	}))
	require.NoError(t, store.Append(ctx, idle.Event{
		ID: uuid.New(), Kind: idle.KindBedTimeout, Resource: idle.ResourceBed,
		At: time.Now().Add(-48 * time.Hour), From: 60, To: 0, Message: "Bed Idle Timeout",
	}))
	require.NoError(t, store.Close())

	out, err := execute(t, "history", "--db", db, "--kind", "nozzle_timeout")
	require.NoError(t, err)
	assert.Contains(t, out, "Hotend Idle Timeout")
	assert.NotContains(t, out, "Bed Idle Timeout")

	out, err = execute(t, "history", "--db", db, "--prune", "24h")
	require.NoError(t, err)
	assert.Equal(t, "pruned 1 events\n", out)
	historyPrune = 0
	historyKind = ""
}

func TestApplyServerFlags(t *testing.T) {
	srv := config.DefaultPrinterConfig().Server
	require.NoError(t, runCmd.Flags().Set("listen", ":9000"))
	require.NoError(t, runCmd.Flags().Set("tick", "250ms"))
	o := runOptions{listen: ":9000", tick: 250 * time.Millisecond, noHistory: true}

	applyServerFlags(runCmd, &srv, o)
	assert.Equal(t, ":9000", srv.Listen)
	assert.Equal(t, 250*time.Millisecond, srv.Tick)
	assert.Equal(t, "", srv.HistoryDB)
	assert.Equal(t, "idleguard.yaml", srv.StateFile)
}
