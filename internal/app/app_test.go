package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/config"
	"tickbot/internal/control"
	"tickbot/internal/observability/debugserver"
	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/storage"
	"tickbot/internal/task"
)

const testConfig = `
robot:
  loop_period: 5ms
  start_mode: %s
autonomous:
  position: left
  choice: %s
logging:
  level: error
storage:
  driver: file
  path: %s
`

func writeConfig(t *testing.T, dir, mode, choice string) string {
	t.Helper()
	path := filepath.Join(dir, "tickbot.yaml")
	body := fmt.Sprintf(testConfig, mode, choice, filepath.Join(dir, "runs"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func startApp(t *testing.T, mode, choice string) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	path := writeConfig(t, dir, mode, choice)
	a, err := New(path)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Stop(ctx, StopAppStop)
	})
	return a, dir
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAutonomousRunIsRecorded(t *testing.T) {
	a, _ := startApp(t, "disabled", "none")
	require.NoError(t, a.SetMode(waitCtx(t), control.ModeAutonomous))

	require.Eventually(t, func() bool {
		runs, err := a.Store().RecentRuns(context.Background(), 10)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	runs, err := a.Store().RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "auto/*/none", runs[0].Routine)
	assert.Equal(t, "succeeded", runs[0].Outcome)
	assert.Equal(t, "autonomous", runs[0].Mode)
	assert.Equal(t, 1, runs[0].Ticks)
}

func TestStartModeFromConfig(t *testing.T) {
	a, _ := startApp(t, "autonomous", "none")
	require.Eventually(t, func() bool {
		return a.Loop().Mode() == control.ModeAutonomous
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, control.ModeAutonomous, a.Status().Mode)
}

func TestMacrosNeedAnEnabledRobot(t *testing.T) {
	a, _ := startApp(t, "disabled", "none")

	assert.ErrorIs(t, a.RunMacro(waitCtx(t), "stow"), control.ErrDisabled)
	assert.ErrorIs(t, a.RunMacro(waitCtx(t), "moonwalk"), routines.ErrUnknownRoutine)

	require.NoError(t, a.SetMode(waitCtx(t), control.ModeTeleop))
	require.NoError(t, a.RunMacro(waitCtx(t), "eject"))
	require.Eventually(t, func() bool {
		for _, r := range a.Scheduler().Snapshot().History {
			if r.Name == "macro/eject" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNewRejectsUnknownAutonomousChoice(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := New(writeConfig(t, dir, "disabled", "dance"))
	assert.ErrorIs(t, err, routines.ErrUnknownRoutine)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := New(writeConfig(t, dir, "sleeping", "none"))
	assert.Error(t, err)
}

func TestExampleConfigValidates(t *testing.T) {
	t.Parallel()
	path := filepath.Join("..", "..", "tickbot.example.yaml")
	cfg, err := config.NewConfigManager(path).Load()
	require.NoError(t, err)

	clock := task.SystemClock{}
	sample := routines.Deps{
		Robot:  robot.NewSim(robot.SimConfig{}).Subsystems(),
		Clock:  clock,
		Period: task.NewMatchPeriod(clock),
	}
	cat, err := validate(path, cfg, sample)
	require.NoError(t, err)
	assert.True(t, cat.HasAuto(routines.Key{Position: "left", Choice: "sneak"}))
	_, _, err = cat.Macro("grab", sample)
	assert.NoError(t, err)
}

func TestNewRejectsInsecureDebugBind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, "disabled", "none")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("debug:\n  enabled: true\n  addr: 0.0.0.0:6060\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = New(path)
	assert.ErrorIs(t, err, debugserver.ErrInsecureBind)
}

func TestDebugEndpoints(t *testing.T) {
	a, _ := startApp(t, "disabled", "none")
	require.NoError(t, a.SetMode(waitCtx(t), control.ModeAutonomous))
	require.Eventually(t, func() bool {
		runs, err := a.Runs(context.Background(), 5)
		return err == nil && len(runs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	h := a.debug.Handler(debugserver.Config{})
	fetch := func(target string, v any) {
		t.Helper()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), target)
	}

	var st struct {
		Mode      string `json:"mode"`
		Scheduler struct {
			Succeeded uint64 `json:"succeeded"`
		} `json:"scheduler"`
	}
	fetch("/status", &st)
	assert.Equal(t, "autonomous", st.Mode)
	assert.Equal(t, uint64(1), st.Scheduler.Succeeded)

	var runs []storage.RunRecord
	fetch("/runs?limit=3", &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "auto/*/none", runs[0].Routine)

	var entries []routines.Entry
	fetch("/routines", &entries)
	assert.Len(t, entries, len(a.Catalog().List()))
}

func TestReloadSwitchesAutonomousChoice(t *testing.T) {
	a, dir := startApp(t, "disabled", "none")

	writeConfig(t, dir, "disabled", "cross")
	_, err := a.cfgm.Reload(waitCtx(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return a.auto.Load().Choice == "cross"
	}, 2*time.Second, 10*time.Millisecond)

	writeConfig(t, dir, "disabled", "bogus")
	_, err = a.cfgm.Reload(waitCtx(t))
	assert.ErrorIs(t, err, routines.ErrUnknownRoutine)
	assert.Equal(t, "cross", a.auto.Load().Choice)
}

func TestReloadPicksUpRoutinesFile(t *testing.T) {
	a, dir := startApp(t, "disabled", "none")

	routinesPath := filepath.Join(dir, "routines.yaml")
	require.NoError(t, os.WriteFile(routinesPath, []byte(`
autos:
  - position: left
    choice: shuffle
    tree: {drive: {duration: 100ms, velocity: 0.5}}
`), 0o600))
	body := fmt.Sprintf(testConfig, "disabled", "shuffle", filepath.Join(dir, "runs")) + "routines_file: routines.yaml\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tickbot.yaml"), []byte(body), 0o600))

	_, err := a.cfgm.Reload(waitCtx(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return a.Catalog().HasAuto(routines.Key{Position: "left", Choice: "shuffle"})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	a, err := New(writeConfig(t, dir, "disabled", "none"))
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background(), StopAppStop))
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	_, enabled, err := mapStorageConfig(&config.Config{})
	require.NoError(t, err)
	assert.False(t, enabled)

	_, enabled, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "none"}})
	require.NoError(t, err)
	assert.False(t, enabled)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}})
	assert.Error(t, err)

	sc, enabled, err := mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "SQLite", Path: "runs.db"}})
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	_, _, err = mapStorageConfig(&config.Config{Storage: &config.StorageConfig{Driver: "redis"}})
	assert.Error(t, err)
}
