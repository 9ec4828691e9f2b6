package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun begins a run with minimal required fields.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), Run{
		ID:        id,
		ModelName: "test-model",
		ModelHash: "test-hash",
	})
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return run
}

// snap builds a distinct snapshot per n.
func snap(n int64) *state.Snapshot {
	b := state.New()
	b.Global.Vars["n"] = value.Int(n)
	return b.Freeze()
}
