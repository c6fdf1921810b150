package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/app"
	"tickbot/internal/control"
	"tickbot/internal/robot"
	"tickbot/internal/routines"
	"tickbot/internal/task"
	"tickbot/internal/task/scheduler"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutinesListBuiltins(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "routines", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "auto/*/cross")
	assert.Contains(t, out, "auto/center/score_low")
	assert.Contains(t, out, "macro/stow")
}

func TestRoutinesCheckBuiltins(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "routines", "check")
	require.NoError(t, err)
	assert.Equal(t, "9 routines ok\n", out)
}

func TestRoutinesCheckReportsConflicts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routines.yaml"), []byte(`
macros:
  - name: tug
    tree:
      all:
        - drive: {distance: 1, velocity: 1}
        - drive: {distance: 1, velocity: -1}
`), 0o600))
	cfg := filepath.Join(dir, "tickbot.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("routines_file: routines.yaml\n"), 0o600))

	_, err := execute(t, "routines", "check", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macro/tug")
	assert.Contains(t, err.Error(), "drivetrain.velocity")
}

func TestRoutinesShow(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "routines", "show", "cross")
	require.NoError(t, err)
	assert.Equal(t, "leaf drive 2.00m @ 1.50m/s [drivetrain.velocity!]\n", out)

	out, err = execute(t, "routines", "show", "macro/intake")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "seq intake", lines[0])

	_, err = execute(t, "routines", "show", "macro/moonwalk")
	assert.ErrorIs(t, err, routines.ErrUnknownRoutine)
}

func TestRoutinesSim(t *testing.T) {
	t.Parallel()
	out, err := execute(t, "routines", "sim", "auto/cross")
	require.NoError(t, err)
	assert.Contains(t, out, "auto/*/cross: succeeded")

	out, err = execute(t, "routines", "sim", "score_high", "--target", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "auto/*/score_high: succeeded")
}

func TestSimulateStopsAtLimit(t *testing.T) {
	t.Parallel()
	cat := routines.NewCatalog()
	require.NoError(t, cat.AddMacro("creep", "", "test", func(d routines.Deps) (task.Task, error) {
		return robot.DriveTime(d.Robot.Drive, d.Clock, 0.5, time.Minute), nil
	}, false))
	sim := robot.NewSim(robot.SimConfig{})

	res, err := simulate(cat, sim, "macro/creep", simOptions{limit: time.Second})
	require.NoError(t, err)
	assert.Equal(t, scheduler.OutcomeCancelled, res.Outcome)
	assert.Equal(t, 50, res.Ticks)
	assert.True(t, sim.Neutral())
}

type fakeOperator struct {
	modes   []control.Mode
	macros  []string
	cancels int
	err     error
}

func (f *fakeOperator) SetMode(_ context.Context, m control.Mode) error {
	f.modes = append(f.modes, m)
	return f.err
}

func (f *fakeOperator) RunMacro(_ context.Context, name string) error {
	f.macros = append(f.macros, name)
	return f.err
}

func (f *fakeOperator) Cancel(context.Context) error { f.cancels++; return f.err }

func (f *fakeOperator) Status() app.Status {
	return app.Status{
		Mode:      control.ModeTeleop,
		Scheduler: scheduler.Snapshot{Current: &scheduler.Info{Name: "macro/eject", Ticks: 7}},
	}
}

func (f *fakeOperator) Catalog() *routines.Catalog { return routines.Builtin() }

func TestConsoleCommands(t *testing.T) {
	t.Parallel()
	op := &fakeOperator{}
	in := strings.NewReader("teleop\nmacro eject\n\ncancel\nstatus\nmacros\nauto\ndisable\nquit\nteleop\n")
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), in, &out, op))
	assert.Equal(t, []control.Mode{control.ModeTeleop, control.ModeAutonomous, control.ModeDisabled}, op.modes)
	assert.Equal(t, []string{"eject"}, op.macros)
	assert.Equal(t, 1, op.cancels)
	assert.Contains(t, out.String(), "routine:   macro/eject (7 ticks)")
	assert.Contains(t, out.String(), "score_high")
}

func TestConsoleReportsErrorsAndContinues(t *testing.T) {
	t.Parallel()
	op := &fakeOperator{err: control.ErrDisabled}
	in := strings.NewReader("dance\nmacro\nmacro stow\n")
	var out bytes.Buffer

	require.NoError(t, runConsole(context.Background(), in, &out, op))
	text := out.String()
	assert.Contains(t, text, `unknown command "dance"`)
	assert.Contains(t, text, "usage: macro <name>")
	assert.Contains(t, text, "error: robot disabled")
	assert.Equal(t, []string{"stow"}, op.macros)
}

func TestExecConsoleQuit(t *testing.T) {
	t.Parallel()
	err := execConsole(context.Background(), &bytes.Buffer{}, &fakeOperator{}, "exit")
	assert.True(t, errors.Is(err, errQuit))
}
