package sdnotify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tickbot/pkg/logx"
)

type fakeSender struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (f *fakeSender) send(state string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.states = append(f.states, state)
	return true, nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.states...)
}

func TestNotifierDisabledSendsNothing(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	n := New(false, logx.Nop())
	n.send = f.send
	n.Ready()
	n.Stopping()
	assert.Empty(t, f.sent())
}

func TestNotifierStates(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	n := New(true, logx.Nop())
	n.send = f.send
	n.Ready()
	n.Status("autonomous")
	n.Stopping()
	assert.Equal(t, []string{"READY=1", "STATUS=autonomous", "STOPPING=1"}, f.sent())

	var nilN *Notifier
	assert.NotPanics(t, func() { nilN.Ready() })
}

func TestWatchdogWithholdsPingWhenHeartbeatStale(t *testing.T) {
	t.Parallel()
	f := &fakeSender{}
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	w := newWatchdog(2*time.Second, f.send, clock, logx.Nop())

	now = now.Add(500 * time.Millisecond)
	require.True(t, w.check())

	now = now.Add(2 * time.Second)
	assert.False(t, w.check())

	w.Beat()
	now = now.Add(100 * time.Millisecond)
	assert.True(t, w.check())

	pings, withheld := w.Stats()
	assert.Equal(t, uint64(2), pings)
	assert.Equal(t, uint64(1), withheld)
	assert.Equal(t, []string{"WATCHDOG=1", "WATCHDOG=1"}, f.sent())
}

func TestWatchdogSendError(t *testing.T) {
	t.Parallel()
	f := &fakeSender{err: errors.New("socket gone")}
	w := newWatchdog(time.Second, f.send, time.Now, logx.Nop())
	assert.False(t, w.check())
	pings, _ := w.Stats()
	assert.Zero(t, pings)
}

func TestNilWatchdogIsInert(t *testing.T) {
	t.Parallel()
	var w *Watchdog
	assert.Zero(t, w.Interval())
	assert.NotPanics(t, w.Beat)
	pings, withheld := w.Stats()
	assert.Zero(t, pings+withheld)
}
