package store

import (
	"context"
	"fmt"

	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
)

// BeginRun inserts a run in the running status.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) BeginRun(ctx context.Context, run Run) (Run, error) {
	if run.Options == "" {
		run.Options = "{}"
	}
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	run.Status = StatusRunning
	run.Seq = s.clock.Next()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, model_name, model_hash, options, engine_version, ir_version, status, state_count, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ModelName,
		run.ModelHash,
		run.Options,
		run.EngineVersion,
		run.IRVersion,
		run.Status,
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	return run, nil
}

// FinishRun records the final status and state count of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string, states int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, state_count = ? WHERE id = ?
	`, status, states, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// WriteState inserts a state for a run.
// Uses ON CONFLICT DO NOTHING: a state keeps the seq of its first write.
func (s *Store) WriteState(ctx context.Context, runID string, snap *state.Snapshot) error {
	summary, err := marshalSummary(snap.Describe())
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO states (run_id, key, canonical, summary, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, key) DO NOTHING
	`,
		runID,
		snap.Key(),
		string(snap.Canonical()),
		summary,
		s.clock.Next(),
	)
	if err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// WriteTransition inserts an exploration edge. Both endpoint states must
// already be written (foreign key constraint).
//
// Rewriting an existing edge is ignored; the info stored is the info of the
// first write.
func (s *Store) WriteTransition(ctx context.Context, runID, from, to, label string, inf ir.IRObject) (string, error) {
	infoJSON, err := marshalObject("info", inf)
	if err != nil {
		return "", fmt.Errorf("write transition: %w", err)
	}

	id := ir.TransitionID(from, to, label)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transitions (id, run_id, from_key, to_key, label, info, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`,
		id,
		runID,
		from,
		to,
		label,
		infoJSON,
		s.clock.Next(),
	)
	if err != nil {
		return "", fmt.Errorf("write transition: %w", err)
	}
	return id, nil
}

// WriteFinding records a problem found while expanding a state.
// Identical findings at the same state are written once.
func (s *Store) WriteFinding(ctx context.Context, runID string, f Finding) (Finding, error) {
	f.ID = ir.FindingID(f.StateKey, f.Thread, f.Code, f.Message)
	f.Seq = s.clock.Next()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO findings (id, run_id, state_key, thread, code, message, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO NOTHING
	`,
		f.ID,
		runID,
		f.StateKey,
		f.Thread,
		f.Code,
		f.Message,
		f.Seq,
	)
	if err != nil {
		return Finding{}, fmt.Errorf("write finding: %w", err)
	}
	return f, nil
}
