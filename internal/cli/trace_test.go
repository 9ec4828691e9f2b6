package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/absim/internal/store"
)

// recordRun explores model into a fresh database and returns its path.
func recordRun(t *testing.T, model, runID string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := execute(t, NewExploreCommand, "text", "--db", db, "--run-id", runID, model)
	require.NoError(t, err)
	return db
}

func TestRuns(t *testing.T) {
	db := recordRun(t, tickerModel, "run-a")
	_, err := execute(t, NewExploreCommand, "text", "--db", db, "--run-id", "run-b", "--max-states", "2", tickerModel)
	require.NoError(t, err)

	out, err := execute(t, NewRunsCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "run-b")
	assert.Contains(t, out, "truncated")

	var runs []store.Run
	out, err = execute(t, NewRunsCommand, "json", "--db", db)
	require.NoError(t, err)
	decode(t, out, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-a", runs[0].ID)
	assert.Equal(t, 3, runs[0].StateCount)
	assert.Equal(t, store.StatusTruncated, runs[1].Status)
}

func TestRuns_MissingDatabase(t *testing.T) {
	_, err := execute(t, NewRunsCommand, "text", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTrace_NoFindings(t *testing.T) {
	db := recordRun(t, tickerModel, "run-t")

	out, err := execute(t, NewTraceCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Run run-t (ticker)")
	assert.Contains(t, out, "No findings to trace.")
}

func TestTrace_ByPrefix(t *testing.T) {
	db := recordRun(t, tickerModel, "run-t")

	st, err := store.Open(db)
	require.NoError(t, err)
	states, err := st.ReadStates(context.Background(), "run-t")
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, states, 3)
	target := states[2].Key

	var result TraceResult
	out, err := execute(t, NewTraceCommand, "json", "--db", db, "--run", "run-t", target[:16])
	require.NoError(t, err)
	decode(t, out, &result)

	require.Len(t, result.Paths, 1)
	path := result.Paths[0]
	assert.Equal(t, target, path.Target)
	require.Len(t, path.Steps, 2)
	assert.Equal(t, "process:p", path.Steps[0].Label)
	assert.Equal(t, "end_evaluation", path.Steps[1].Label)
	assert.Equal(t, states[0].Key, path.Steps[0].From)
	assert.Equal(t, target, path.Steps[1].To)
	assert.Equal(t, states[2].Summary, path.Steps[1].Summary)
	assert.Empty(t, path.Findings)

	text, err := execute(t, NewTraceCommand, "text", "--db", db, target[:16])
	require.NoError(t, err)
	assert.Contains(t, text, "(2 steps)")
	assert.Contains(t, text, "[2] end_evaluation")
}

func TestTrace_Findings(t *testing.T) {
	db := recordRun(t, writeModel(t, fuzzySource), "run-f")

	var result TraceResult
	out, err := execute(t, NewTraceCommand, "json", "--db", db)
	require.NoError(t, err)
	decode(t, out, &result)

	assert.Equal(t, "fuzzy", result.Model)
	require.Len(t, result.Paths, 1)
	assert.Empty(t, result.Paths[0].Steps)
	require.Len(t, result.Paths[0].Findings, 1)
	assert.Equal(t, "INSUFFICIENT_PRECISION", result.Paths[0].Findings[0].Code)
}

func TestTrace_Errors(t *testing.T) {
	db := recordRun(t, tickerModel, "run-t")

	_, err := execute(t, NewTraceCommand, "text", "--db", db, "zzzz")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no such state")

	_, err = execute(t, NewTraceCommand, "text", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")
}
