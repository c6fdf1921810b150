package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tickbot/pkg/logx"
)

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func rec(id string, startedMin int, outcome string) RunRecord {
	return RunRecord{
		ID:         id,
		Routine:    "auto.score_high",
		Mode:       "autonomous",
		Started:    base.Add(time.Duration(startedMin) * time.Minute),
		DurationMS: 4200,
		Ticks:      210,
		Outcome:    outcome,
	}
}

// exerciseStore runs the behaviour every driver must share.
func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, st.AppendRun(ctx, rec("a", 0, "succeeded")))
	require.NoError(t, st.AppendRun(ctx, rec("b", 10, "failed")))
	require.NoError(t, st.AppendRun(ctx, rec("c", 20, "cancelled")))
	require.NoError(t, st.AppendRun(ctx, rec("b", 10, "replaced")))

	got, err := st.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "replaced", got[1].Outcome)
	assert.True(t, got[1].Started.Equal(base.Add(10*time.Minute)))
	assert.Equal(t, 210, got[1].Ticks)

	n, err := st.PruneRuns(ctx, base.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = st.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	require.NoError(t, st.AppendRun(ctx, rec("d", 30, "succeeded")))
	got, err = st.RecentRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	require.NoError(t, st.Close())
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "etcd"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestFileStore(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "runs")}, logx.Nop())
	require.NoError(t, err)
	exerciseStore(t, st)
}

func TestFileStoreSurvivesReopenAndJunk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := Config{Driver: "file", Path: filepath.Join(dir, "runs.db")}
	ctx := context.Background()

	st, err := Open(cfg, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.AppendRun(ctx, rec("a", 0, "succeeded")))
	require.NoError(t, st.Close())

	f, err := os.OpenFile(filepath.Join(dir, "runs.runs.jsonl"), os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	st, err = Open(cfg, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	got, err := st.RecentRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestFileStoreClosed(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "runs")}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.AppendRun(context.Background(), rec("a", 0, "succeeded")), ErrClosed)
	_, err = st.PruneRuns(context.Background(), base)
	assert.ErrorIs(t, err, ErrClosed)
}
