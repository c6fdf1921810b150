package runlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/eventbus"
	"tickbot/internal/storage"
	"tickbot/internal/task/scheduler"
	logx "tickbot/pkg/logx"
)

type memStore struct {
	mu    sync.Mutex
	runs  []storage.RunRecord
	fail  int // fail this many appends before succeeding
	err   error
	calls int
}

func (m *memStore) AppendRun(_ context.Context, r storage.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail > 0 {
		m.fail--
		return m.err
	}
	m.runs = append(m.runs, r)
	return nil
}

func (m *memStore) RecentRuns(context.Context, int) ([]storage.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.RunRecord(nil), m.runs...), nil
}

func (m *memStore) PruneRuns(context.Context, time.Time) (int, error) { return 0, nil }
func (m *memStore) Close() error                                      { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

var fast = Config{RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond}

func TestWriterPersistsFinishedRuns(t *testing.T) {
	t.Parallel()
	store := &memStore{}
	bus := eventbus.New()
	w := New(fast, store, bus, func() string { return "autonomous" }, logx.Nop())
	w.Start(context.Background())

	started := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	bus.Publish(eventbus.Event{Type: scheduler.EventRunStarted, Data: scheduler.RunRecord{ID: "ignored"}})
	bus.Publish(eventbus.Event{Type: scheduler.EventRunFinished, Data: scheduler.RunRecord{
		ID: "r1", Name: "auto.cross", Started: started, Duration: 1500 * time.Millisecond, Ticks: 75, Outcome: scheduler.OutcomeSucceeded,
	}})

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))

	runs, _ := store.RecentRuns(context.Background(), 0)
	assert.Equal(t, storage.RunRecord{
		ID: "r1", Routine: "auto.cross", Mode: "autonomous", Started: started, DurationMS: 1500, Ticks: 75, Outcome: "succeeded",
	}, runs[0])
	assert.Equal(t, uint64(1), w.Stats().Written)
}

func TestWriteRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	store := &memStore{fail: 2, err: errors.New("database is locked")}
	w := New(fast, store, nil, nil, logx.Nop())

	require.NoError(t, w.Write(context.Background(), storage.RunRecord{ID: "a"}, nil))
	assert.Equal(t, 3, store.calls)
	st := w.Stats()
	assert.Equal(t, uint64(2), st.Retries)
	assert.Equal(t, uint64(1), st.Written)
}

func TestWriteStopsOnPermanentErrors(t *testing.T) {
	t.Parallel()
	for _, err := range []error{NoRetry(errors.New("bad row")), storage.ErrClosed} {
		store := &memStore{fail: 5, err: err}
		w := New(fast, store, nil, nil, logx.Nop())
		got := w.Write(context.Background(), storage.RunRecord{ID: "a"}, nil)
		require.Error(t, got)
		assert.Equal(t, 1, store.calls, err.Error())
	}
	assert.True(t, IsNoRetry(NoRetry(errors.New("x"))))
	assert.Nil(t, NoRetry(nil))
}

func TestBreakerPausesWrites(t *testing.T) {
	t.Parallel()
	store := &memStore{fail: 100, err: errors.New("disk full")}
	cfg := fast
	cfg.RetryMax = -1
	cfg.TripFailures = 2
	cfg.Cooldown = time.Minute
	w := New(cfg, store, nil, nil, logx.Nop())
	now := time.Date(2026, 5, 2, 14, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	ctx := context.Background()
	assert.Error(t, w.Write(ctx, storage.RunRecord{ID: "a"}, nil))
	assert.Error(t, w.Write(ctx, storage.RunRecord{ID: "b"}, nil))
	assert.ErrorIs(t, w.Write(ctx, storage.RunRecord{ID: "c"}, nil), ErrCircuitOpen)
	assert.Equal(t, 2, store.calls)

	now = now.Add(2 * time.Minute)
	store.fail = 0
	require.NoError(t, w.Write(ctx, storage.RunRecord{ID: "d"}, nil))
	st := w.Stats()
	assert.Equal(t, uint64(2), st.Failed)
	assert.Equal(t, uint64(1), st.Skipped)
	assert.Equal(t, uint64(1), st.Written)
}

func TestStartWithoutStoreIsNoop(t *testing.T) {
	t.Parallel()
	w := New(Config{}, nil, eventbus.New(), nil, logx.Nop())
	w.Start(context.Background())
	assert.NoError(t, w.Stop(context.Background()))
}
