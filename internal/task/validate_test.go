package task_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbot/internal/task"
	"tickbot/internal/task/tasktest"
)

const (
	opDrive    task.Operation = "drivetrain.velocity"
	opElevator task.Operation = "elevator.height"
	opLights   task.Operation = "lights.pattern"
)

func TestValidateClaims(t *testing.T) {
	t.Parallel()
	rec := tasktest.NewRecorder()

	tests := []struct {
		name    string
		root    task.Task
		wantErr error
	}{
		{
			name: "disjoint exclusive claims",
			root: task.All(rec.Never("drive", task.Exclusive(opDrive)), rec.Never("lift", task.Exclusive(opElevator))),
		},
		{
			name: "shared claims coexist",
			root: task.Any(rec.Never("a", task.Shared(opLights)), rec.Never("b", task.Shared(opLights))),
		},
		{
			name: "sequence children may reuse an operation",
			root: task.Sequence(rec.Never("a", task.Exclusive(opDrive)), rec.Never("b", task.Exclusive(opDrive))),
		},
		{
			name:    "exclusive overlap in all",
			root:    task.All(rec.Never("a", task.Exclusive(opDrive)), rec.Never("b", task.Exclusive(opDrive))),
			wantErr: task.ErrClaimConflict,
		},
		{
			name:    "exclusive against shared",
			root:    task.Any(rec.Never("a", task.Exclusive(opLights)), rec.Never("b", task.Shared(opLights))),
			wantErr: task.ErrClaimConflict,
		},
		{
			name: "conflict through nested sequence",
			root: task.Sequence(task.All(
				task.Sequence(rec.Never("a"), rec.Never("b", task.Exclusive(opElevator))),
				rec.Never("c", task.Exclusive(opElevator)),
			)),
			wantErr: task.ErrClaimConflict,
		},
		{
			name:    "empty any",
			root:    task.Any(),
			wantErr: task.ErrEmptyGroup,
		},
		{
			name:    "nil child",
			root:    task.Sequence(rec.Never("a"), nil),
			wantErr: task.ErrNilTask,
		},
		{
			name:    "missing fallback alternate",
			root:    task.Fallback(rec.Never("a"), nil),
			wantErr: task.ErrMissingBranch,
		},
		{
			name:    "decision without period",
			root:    task.TimeDecision(nil, time.Second, rec.Never("a"), rec.Never("b")),
			wantErr: task.ErrMissingInput,
		},
		{
			name:    "wait without clock",
			root:    task.Wait(nil, time.Second),
			wantErr: task.ErrMissingInput,
		},
	}
	for _, tt := range tests {
		err := task.Validate(tt.root)
		if tt.wantErr == nil {
			assert.NoError(t, err, tt.name)
			continue
		}
		require.Error(t, err, tt.name)
		assert.ErrorIs(t, err, tt.wantErr, tt.name)
	}
}

func TestValidateReportsPath(t *testing.T) {
	t.Parallel()
	rec := tasktest.NewRecorder()
	root := task.Sequence(
		rec.Never("warmup"),
		task.All(rec.Never("drive", task.Exclusive(opDrive)), rec.Never("aim", task.Exclusive(opDrive))).Named("score"),
	)
	err := task.Validate(root)
	require.Error(t, err)

	var be *task.BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "root/seq[1](score)", be.Path)
	assert.Contains(t, be.Error(), "drivetrain.velocity")
	assert.Contains(t, be.Error(), "all[0](drive)")
}

func TestValidateRejectsSharedNode(t *testing.T) {
	t.Parallel()
	rec := tasktest.NewRecorder()
	leaf := rec.Never("twice")
	err := task.Validate(task.Sequence(leaf, leaf))
	assert.ErrorIs(t, err, task.ErrSharedNode)
}

func TestKindAndDump(t *testing.T) {
	t.Parallel()
	rec := tasktest.NewRecorder()
	root := task.Sequence(
		rec.Never("a", task.Exclusive(opDrive)),
		task.Fallback(rec.Never("b"), rec.Never("c", task.Shared(opLights))),
	).Named("demo")

	assert.Equal(t, task.KindSequential, task.KindOf(root))
	assert.Equal(t, task.KindLeaf, task.KindOf(task.Noop()))
	assert.Equal(t, 5, task.Count(root))
	assert.Equal(t, []task.Claim{task.Exclusive(opDrive), task.Shared(opLights)}, root.Claims())

	var buf bytes.Buffer
	require.NoError(t, task.Dump(&buf, root))
	assert.Equal(t, "seq demo\n  leaf a [drivetrain.velocity!]\n  fallback\n    leaf b\n    leaf c [lights.pattern]\n", buf.String())
}
