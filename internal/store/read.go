package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ReadRun returns a single run by ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model_name, model_hash, options, engine_version, ir_version, status, state_count, seq
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns every run, oldest first.
//
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model_name, model_hash, options, engine_version, ir_version, status, state_count, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadStates returns the states of a run in the order they were reached.
//
// Returns an empty slice (not nil) if the run has no states.
func (s *Store) ReadStates(ctx context.Context, runID string) ([]StateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, canonical, summary, seq
		FROM states
		WHERE run_id = ?
		ORDER BY seq ASC, key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}
	defer rows.Close()

	states := []StateRecord{}
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate states: %w", err)
	}
	return states, nil
}

// ResolveState finds the state whose key starts with prefix.
func (s *Store) ResolveState(ctx context.Context, runID, prefix string) (StateRecord, error) {
	if prefix == "" || strings.ContainsAny(prefix, "%_") {
		return StateRecord{}, fmt.Errorf("state %q: %w", prefix, ErrNotFound)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, canonical, summary, seq
		FROM states
		WHERE run_id = ? AND key LIKE ? || '%'
		ORDER BY seq ASC, key COLLATE BINARY ASC
		LIMIT 2
	`, runID, prefix)
	if err != nil {
		return StateRecord{}, fmt.Errorf("query state: %w", err)
	}
	defer rows.Close()

	var found []StateRecord
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return StateRecord{}, err
		}
		found = append(found, st)
	}
	if err := rows.Err(); err != nil {
		return StateRecord{}, fmt.Errorf("iterate state: %w", err)
	}

	switch len(found) {
	case 0:
		return StateRecord{}, fmt.Errorf("state %q: %w", prefix, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return StateRecord{}, fmt.Errorf("state %q: %w", prefix, ErrAmbiguous)
	}
}

// ReadTransitions returns every edge of a run in recording order.
//
// Returns an empty slice (not nil) if the run has no transitions.
func (s *Store) ReadTransitions(ctx context.Context, runID string) ([]TransitionRecord, error) {
	return s.queryTransitions(ctx, `
		SELECT id, from_key, to_key, label, info, seq
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
}

// Successors returns the edges leaving a state in recording order.
func (s *Store) Successors(ctx context.Context, runID, key string) ([]TransitionRecord, error) {
	return s.queryTransitions(ctx, `
		SELECT id, from_key, to_key, label, info, seq
		FROM transitions
		WHERE run_id = ? AND from_key = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID, key)
}

func (s *Store) queryTransitions(ctx context.Context, query string, args ...any) ([]TransitionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	out := []TransitionRecord{}
	for rows.Next() {
		var t TransitionRecord
		if err := rows.Scan(&t.ID, &t.From, &t.To, &t.Label, &t.Info, &t.Seq); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// ReadFindings returns the findings of a run in the order they were found.
//
// Returns an empty slice (not nil) if the run has no findings.
func (s *Store) ReadFindings(ctx context.Context, runID string) ([]Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, state_key, thread, code, message, seq
		FROM findings
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	out := []Finding{}
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.StateKey, &f.Thread, &f.Code, &f.Message, &f.Seq); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}

// Trace returns a shortest path of edges from the first state of a run to
// the state with the given key. Ties are broken by recording order. The path
// to the first state itself is empty.
func (s *Store) Trace(ctx context.Context, runID, to string) ([]TransitionRecord, error) {
	states, err := s.ReadStates(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("run %s has no states: %w", runID, ErrNotFound)
	}
	edges, err := s.ReadTransitions(ctx, runID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]TransitionRecord)
	for _, e := range edges {
		out[e.From] = append(out[e.From], e)
	}

	root := states[0].Key
	via := map[string]TransitionRecord{}
	seen := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 && !seen[to] {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range out[cur] {
			if seen[e.To] {
				continue
			}
			seen[e.To] = true
			via[e.To] = e
			queue = append(queue, e.To)
		}
	}
	if !seen[to] {
		return nil, fmt.Errorf("state %s unreachable in run %s: %w", to, runID, ErrNotFound)
	}

	var path []TransitionRecord
	for k := to; k != root; k = via[k].From {
		path = append(path, via[k])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if path == nil {
		path = []TransitionRecord{}
	}
	return path, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.ModelName, &r.ModelHash, &r.Options, &r.EngineVersion, &r.IRVersion, &r.Status, &r.StateCount, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

func scanState(row scanner) (StateRecord, error) {
	var st StateRecord
	var summary string
	if err := row.Scan(&st.Key, &st.Canonical, &summary, &st.Seq); err != nil {
		return StateRecord{}, fmt.Errorf("scan state: %w", err)
	}
	lines, err := unmarshalSummary(summary)
	if err != nil {
		return StateRecord{}, err
	}
	st.Summary = lines
	return st, nil
}
