package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/testutil"
)

func TestBeginRun_Defaults(t *testing.T) {
	s := createTestStore(t).WithSequencer(testutil.NewDeterministicClock())
	run := createTestRun(t, s, "run-1")

	assert.Equal(t, StatusRunning, run.Status)
	assert.Equal(t, "{}", run.Options)
	assert.Equal(t, ir.EngineVersion, run.EngineVersion)
	assert.Equal(t, ir.IRVersion, run.IRVersion)
	assert.Equal(t, int64(1), run.Seq)

	got, err := s.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}

func TestFinishRun(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	require.NoError(t, s.FinishRun(ctx, "run-1", StatusComplete, 7))
	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, got.Status)
	assert.Equal(t, 7, got.StateCount)

	err = s.FinishRun(ctx, "missing", StatusComplete, 0)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWriteState_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := createTestRun(t, s, "run-1")

	require.NoError(t, s.WriteState(ctx, run.ID, snap(1)))
	first, err := s.ReadStates(ctx, run.ID)
	require.NoError(t, err)

	require.NoError(t, s.WriteState(ctx, run.ID, snap(1)))
	again, err := s.ReadStates(ctx, run.ID)
	require.NoError(t, err)

	require.Len(t, again, 1)
	assert.Equal(t, first, again)
	assert.Equal(t, snap(1).Key(), again[0].Key)
	assert.Equal(t, string(snap(1).Canonical()), again[0].Canonical)
	assert.Equal(t, snap(1).Describe(), again[0].Summary)
}

func TestWriteState_SameKeyInTwoRuns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	createTestRun(t, s, "a")
	createTestRun(t, s, "b")

	require.NoError(t, s.WriteState(ctx, "a", snap(1)))
	require.NoError(t, s.WriteState(ctx, "b", snap(1)))

	for _, id := range []string{"a", "b"} {
		states, err := s.ReadStates(ctx, id)
		require.NoError(t, err)
		assert.Len(t, states, 1)
	}
}

func TestWriteTransition(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := createTestRun(t, s, "run-1")
	from, to := snap(0), snap(1)
	require.NoError(t, s.WriteState(ctx, run.ID, from))
	require.NoError(t, s.WriteState(ctx, run.ID, to))

	inf := ir.IRObject{"reads": ir.StringArray([]string{"x"})}
	id, err := s.WriteTransition(ctx, run.ID, from.Key(), to.Key(), "process:p", inf)
	require.NoError(t, err)
	assert.Equal(t, ir.TransitionID(from.Key(), to.Key(), "process:p"), id)

	// The first info wins.
	_, err = s.WriteTransition(ctx, run.ID, from.Key(), to.Key(), "process:p", ir.IRObject{})
	require.NoError(t, err)

	edges, err := s.ReadTransitions(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, `{"reads":["x"]}`, edges[0].Info)
	assert.Equal(t, "process:p", edges[0].Label)
}

func TestWriteFinding(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	run := createTestRun(t, s, "run-1")
	require.NoError(t, s.WriteState(ctx, run.ID, snap(0)))

	f := Finding{
		StateKey: snap(0).Key(),
		Thread:   "process:p",
		Code:     "INSUFFICIENT_PRECISION",
		Message:  "wait argument top(int) is not determined",
	}
	written, err := s.WriteFinding(ctx, run.ID, f)
	require.NoError(t, err)
	assert.Equal(t, ir.FindingID(f.StateKey, f.Thread, f.Code, f.Message), written.ID)

	_, err = s.WriteFinding(ctx, run.ID, f)
	require.NoError(t, err)

	got, err := s.ReadFindings(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, written, got[0])
}
