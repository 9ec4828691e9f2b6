package store

import (
	"context"

	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/record"
	"github.com/roach88/absim/internal/state"
)

// Recorder writes an exploration into the store under one run.
type Recorder[I info.Info[I]] struct {
	store *Store
	runID string
}

// NewRecorder returns a recorder for a run already begun with BeginRun.
func NewRecorder[I info.Info[I]](s *Store, runID string) *Recorder[I] {
	return &Recorder[I]{store: s, runID: runID}
}

// RunID returns the run being recorded.
func (r *Recorder[I]) RunID() string { return r.runID }

func (r *Recorder[I]) StateReached(ctx context.Context, s *state.Snapshot) error {
	return r.store.WriteState(ctx, r.runID, s)
}

func (r *Recorder[I]) ExplorationMade(ctx context.Context, from, to *state.Snapshot, label string, inf I) error {
	if err := r.store.WriteState(ctx, r.runID, from); err != nil {
		return err
	}
	if err := r.store.WriteState(ctx, r.runID, to); err != nil {
		return err
	}
	_, err := r.store.WriteTransition(ctx, r.runID, from.Key(), to.Key(), label, inf.Canonical())
	return err
}

func (r *Recorder[I]) FindingReported(ctx context.Context, at *state.Snapshot, f record.Finding) error {
	if err := r.store.WriteState(ctx, r.runID, at); err != nil {
		return err
	}
	_, err := r.store.WriteFinding(ctx, r.runID, Finding{
		StateKey: at.Key(),
		Thread:   f.Thread,
		Code:     f.Code,
		Message:  f.Message,
	})
	return err
}

var (
	_ record.Record[info.None] = (*Recorder[info.None])(nil)
	_ record.FindingRecord     = (*Recorder[info.None])(nil)
)
