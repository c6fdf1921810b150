package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/eventbus"
	"tickbot/internal/task"
	"tickbot/internal/task/tasktest"
)

func newTestService(t *testing.T) (*Service, *tasktest.FakeClock, eventbus.Bus) {
	t.Helper()
	clock := tasktest.NewFakeClock()
	bus := eventbus.New()
	s := New(Config{HistorySize: 3}, clock, logxNop(), bus)
	n := 0
	s.newID = func() string { n++; return "run-" + string(rune('0'+n)) }
	return s, clock, bus
}

func TestInstallTickToCompletion(t *testing.T) {
	t.Parallel()
	s, clock, bus := newTestService(t)
	finished, unsub := bus.Subscribe(4, EventRunFinished)
	defer unsub()

	rec := tasktest.NewRecorder()
	require.NoError(t, s.Install("auto.cross", task.Sequence(rec.SucceedAt("drive", 2), rec.SucceedAt("stop", 1))))
	assert.True(t, s.Active())
	assert.Equal(t, 1, rec.Count("drive", tasktest.PhaseBegin))

	var got []Outcome
	for i := 0; i < 6; i++ {
		rec.Tick++
		clock.Advance(20 * time.Millisecond)
		got = append(got, s.Tick())
	}
	assert.Equal(t, []Outcome{OutcomeRunning, OutcomeRunning, OutcomeRunning, OutcomeSucceeded, OutcomeIdle, OutcomeIdle}, got)
	assert.False(t, s.Active())
	_, ok := s.Current()
	assert.False(t, ok)

	require.Len(t, finished, 1)
	ev := <-finished
	r := ev.Data.(RunRecord)
	assert.Equal(t, "auto.cross", r.Name)
	assert.Equal(t, OutcomeSucceeded, r.Outcome)
	assert.Equal(t, 4, r.Ticks)
	assert.Equal(t, 80*time.Millisecond, r.Duration)
}

func TestInstallCancelsPreviousRoot(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t)
	rec := tasktest.NewRecorder()
	first := rec.Never("first")
	require.NoError(t, s.Install("macro.intake", first))
	rec.Tick++
	s.Tick()

	rec.Tick++
	require.NoError(t, s.Install("macro.stow", rec.Never("second")))
	assert.True(t, first.Neutral)
	assert.Equal(t, 2, rec.TickOf("first", tasktest.PhaseEnd, 0))
	assert.Equal(t, 2, rec.TickOf("second", tasktest.PhaseBegin, 0))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "macro.stow", cur.Name)

	snap := s.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, OutcomeReplaced, snap.History[0].Outcome)
	assert.Equal(t, uint64(2), snap.Installed)
	assert.Equal(t, uint64(1), snap.Cancelled)
}

func TestInvalidTreeKeepsCurrentRoutine(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t)
	rec := tasktest.NewRecorder()
	keep := rec.Never("keep")
	require.NoError(t, s.Install("auto.ok", keep))

	op := task.Operation("elevator.height")
	bad := task.All(rec.Never("a", task.Exclusive(op)), rec.Never("b", task.Exclusive(op)))
	err := s.Install("auto.bad", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTree)
	assert.ErrorIs(t, err, task.ErrClaimConflict)
	assert.Zero(t, rec.Count("a", tasktest.PhaseBegin))
	assert.Zero(t, rec.Count("keep", tasktest.PhaseEnd))

	assert.ErrorIs(t, s.Install("", keep), ErrNoName)
	assert.ErrorIs(t, s.Install("x", nil), ErrNilRoot)
	assert.Equal(t, uint64(3), s.Snapshot().Rejected)
	assert.True(t, s.Active())
}

func TestCancelCurrentIsIdempotent(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t)
	rec := tasktest.NewRecorder()
	assert.False(t, s.CancelCurrent())

	require.NoError(t, s.Install("auto", rec.SucceedAt("done", 1)))
	rec.Tick++
	require.Equal(t, OutcomeSucceeded, s.Tick())
	assert.False(t, s.CancelCurrent())
	assert.Equal(t, 1, rec.Count("done", tasktest.PhaseEnd))

	require.NoError(t, s.Install("macro", rec.Never("hold")))
	assert.True(t, s.CancelCurrent())
	assert.False(t, s.CancelCurrent())
	assert.Equal(t, 1, rec.Count("hold", tasktest.PhaseEnd))
	assert.Equal(t, OutcomeIdle, s.Tick())
}

func TestFailedRootEndsEveryActiveNode(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t)
	rec := tasktest.NewRecorder()
	drive := rec.Never("drive", task.Exclusive("drivetrain.velocity"))
	lift := rec.Never("lift", task.Exclusive("elevator.height"))
	require.NoError(t, s.Install("auto", task.All(drive, lift, rec.FailAt("vision", 3))))

	var out Outcome
	for out != OutcomeFailed {
		rec.Tick++
		out = s.Tick()
		require.LessOrEqual(t, rec.Tick, 3)
	}
	assert.True(t, drive.Neutral)
	assert.True(t, lift.Neutral)
	assert.Equal(t, uint64(1), s.Snapshot().Failed)
}

func TestHistoryIsBounded(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestService(t)
	rec := tasktest.NewRecorder()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Install("r", rec.SucceedAt("x", 1)))
		s.Tick()
	}
	snap := s.Snapshot()
	assert.Len(t, snap.History, 3)
	assert.Equal(t, uint64(5), snap.Succeeded)
	assert.Equal(t, "run-5", snap.History[2].ID)
}
