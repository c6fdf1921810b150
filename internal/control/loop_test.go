package control_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/control"
	"tickbot/internal/eventbus"
	"tickbot/internal/task"
	"tickbot/internal/task/scheduler"
	"tickbot/internal/task/tasktest"
	logx "tickbot/pkg/logx"
)

type rig struct {
	loop  *control.Loop
	sched *scheduler.Service
	clock *tasktest.FakeClock
	rec   *tasktest.Recorder
	auto  *tasktest.Script
	beats int
}

func newRig(t *testing.T, cfg control.Config) *rig {
	t.Helper()
	r := &rig{clock: tasktest.NewFakeClock(), rec: tasktest.NewRecorder()}
	r.auto = r.rec.Never("auto")
	r.sched = scheduler.New(scheduler.Config{}, r.clock, logx.Nop(), eventbus.New())
	r.loop = control.New(cfg, control.Deps{
		Scheduler: r.sched,
		Clock:     r.clock,
		Select: func() (string, task.Task, error) {
			return "auto.test", r.auto, nil
		},
		Step: func(dt time.Duration) {
			r.rec.Tick++
			r.clock.Advance(dt)
		},
		Heartbeat: func() { r.beats++ },
	})
	return r
}

func (r *rig) submit(t *testing.T, req control.Request) <-chan error {
	t.Helper()
	req, done := req.WithDone()
	require.NoError(t, r.loop.Submit(req))
	return done
}

func TestInstallRejectedWhileDisabled(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{})
	done := r.submit(t, control.Install("macro", r.rec.Never("m")))
	r.loop.Step()
	assert.ErrorIs(t, <-done, control.ErrDisabled)
	assert.False(t, r.sched.Active())
	assert.Equal(t, 1, r.beats)
}

func TestAutonomousInstallsSelectedRoutine(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{})
	done := r.submit(t, control.SetMode(control.ModeAutonomous))
	r.loop.Step()
	require.NoError(t, <-done)
	assert.Equal(t, control.ModeAutonomous, r.loop.Mode())

	cur, ok := r.sched.Current()
	require.True(t, ok)
	assert.Equal(t, "auto.test", cur.Name)
	assert.Equal(t, 1, r.rec.Count("auto", tasktest.PhaseUpdate))

	r.loop.Step()
	done = r.submit(t, control.SetMode(control.ModeDisabled))
	r.loop.Step()
	require.NoError(t, <-done)
	assert.True(t, r.auto.Neutral)
	assert.Equal(t, 1, r.rec.Count("auto", tasktest.PhaseEnd))
	assert.False(t, r.sched.Active())
}

func TestRequestsApplyInOrder(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{})
	a, b := r.rec.Never("a"), r.rec.Never("b")
	require.NoError(t, r.loop.Submit(control.SetMode(control.ModeTeleop)))
	require.NoError(t, r.loop.Submit(control.Install("a", a)))
	require.NoError(t, r.loop.Submit(control.Install("b", b)))
	r.loop.Step()

	cur, ok := r.sched.Current()
	require.True(t, ok)
	assert.Equal(t, "b", cur.Name)
	assert.Equal(t, 1, r.rec.Count("a", tasktest.PhaseEnd))
	assert.Zero(t, r.rec.Count("a", tasktest.PhaseUpdate))
	assert.Equal(t, 1, r.rec.Count("b", tasktest.PhaseUpdate))

	require.NoError(t, r.loop.Submit(control.Cancel()))
	r.loop.Step()
	assert.True(t, b.Neutral)
	assert.Equal(t, control.ModeTeleop, r.loop.Mode())
}

func TestTeleopAfterAutonomousPeriod(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{AutoPeriod: 100 * time.Millisecond, TeleopAfterAuto: true})
	require.NoError(t, r.loop.Submit(control.SetMode(control.ModeAutonomous)))
	for i := 0; i < 5; i++ {
		r.loop.Step()
	}
	assert.Equal(t, control.ModeAutonomous, r.loop.Mode())
	assert.True(t, r.sched.Active())

	r.loop.Step()
	assert.Equal(t, control.ModeTeleop, r.loop.Mode())
	assert.False(t, r.sched.Active())
	assert.True(t, r.auto.Neutral)
}

func TestReselectOnlyInAutonomous(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{})
	require.NoError(t, r.loop.Submit(control.SetMode(control.ModeTeleop)))
	require.NoError(t, r.loop.Submit(control.Reselect()))
	r.loop.Step()
	assert.False(t, r.sched.Active())

	require.NoError(t, r.loop.Submit(control.SetMode(control.ModeAutonomous)))
	r.loop.Step()
	require.NoError(t, r.loop.Submit(control.Reselect()))
	r.loop.Step()
	assert.Equal(t, 2, r.rec.Count("auto", tasktest.PhaseBegin))
	assert.Equal(t, uint64(2), r.sched.Snapshot().Installed)
}

func TestSelectorErrorLeavesRobotIdle(t *testing.T) {
	t.Parallel()
	sched := scheduler.New(scheduler.Config{}, tasktest.NewFakeClock(), logx.Nop(), nil)
	boom := errors.New("no such routine")
	loop := control.New(control.Config{}, control.Deps{
		Scheduler: sched,
		Clock:     tasktest.NewFakeClock(),
		Select:    func() (string, task.Task, error) { return "", nil, boom },
	})
	req, done := control.SetMode(control.ModeAutonomous).WithDone()
	require.NoError(t, loop.Submit(req))
	loop.Step()
	assert.ErrorIs(t, <-done, boom)
	assert.Equal(t, control.ModeAutonomous, loop.Mode())
	assert.False(t, sched.Active())
}

func TestOverrunsAreCounted(t *testing.T) {
	t.Parallel()
	clock := tasktest.NewFakeClock()
	loop := control.New(control.Config{Period: 20 * time.Millisecond}, control.Deps{
		Scheduler: scheduler.New(scheduler.Config{}, clock, logx.Nop(), nil),
		Clock:     clock,
		Step:      func(time.Duration) { clock.Advance(30 * time.Millisecond) },
	})
	loop.Step()
	loop.Step()
	st := loop.Stats()
	assert.Equal(t, uint64(2), st.Ticks)
	assert.Equal(t, uint64(2), st.Overruns)
	assert.Equal(t, 30*time.Millisecond, st.MaxTick)
	assert.Equal(t, control.ModeDisabled, st.Mode)
}

func TestSubmitQueueFull(t *testing.T) {
	t.Parallel()
	r := newRig(t, control.Config{QueueSize: 1})
	require.NoError(t, r.loop.Submit(control.Cancel()))
	assert.ErrorIs(t, r.loop.Submit(control.Cancel()), control.ErrQueueFull)
	assert.Equal(t, uint64(1), r.loop.Stats().Rejected)
}

func TestRunStopsAndCancels(t *testing.T) {
	t.Parallel()
	sched := scheduler.New(scheduler.Config{}, nil, logx.Nop(), nil)
	loop := control.New(control.Config{Period: time.Millisecond}, control.Deps{Scheduler: sched})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	wait, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, loop.Do(wait, control.SetMode(control.ModeTeleop)))
	require.NoError(t, loop.Do(wait, control.Install("hold", task.Wait(task.SystemClock{}, time.Hour))))
	require.Eventually(t, sched.Active, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-errc)
	assert.False(t, sched.Active())
	assert.Equal(t, control.ModeDisabled, loop.Mode())
	assert.ErrorIs(t, loop.Submit(control.Cancel()), control.ErrStopped)
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	cases := map[string]control.Mode{
		"":           control.ModeDisabled,
		"Autonomous": control.ModeAutonomous,
		"auto":       control.ModeAutonomous,
		" teleop ":   control.ModeTeleop,
	}
	for in, want := range cases {
		got, err := control.ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := control.ParseMode("practice")
	assert.Error(t, err)
}
