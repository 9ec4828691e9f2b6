// Package fixpoint runs a small-step function over a worklist until every
// path reaches a block point.
//
// It is the loop shared by a process big step and by the evaluation of one
// channel update: pop an item in FIFO order, run one small step, and route
// each successor by its classification:
//
//   - EndOfStep: merge into the results, composing info on equal states.
//   - PossiblyRepeating: freeze and look the state up in the memo. If
//     composing the new info into the memo entry changes nothing, the branch
//     has reached its fixpoint and is dropped. Otherwise the memo is updated
//     and the state re-enqueued with the composed info.
//   - Continuing: merge into the queue, composing info on equal states.
//
// Termination holds whenever the info domain has finite join height and the
// interpreted program only loops through PossiblyRepeating steps. A Quota
// bounds everything else.
package fixpoint

import (
	"context"
	"fmt"

	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/state"
)

// Class classifies the outcome of one small step.
type Class int

const (
	// Continuing successors are re-enqueued.
	Continuing Class = iota
	// EndOfStep successors have reached a genuine block point.
	EndOfStep
	// PossiblyRepeating successors may revisit an earlier state, such as
	// the re-test of a loop condition.
	PossiblyRepeating
)

func (c Class) String() string {
	switch c {
	case EndOfStep:
		return "end-of-step"
	case PossiblyRepeating:
		return "possibly-repeating"
	}
	return "continuing"
}

// Successor is one outcome of a small step. State is owned by the loop from
// the moment it is returned.
type Successor[I info.Info[I]] struct {
	State *state.Builder
	Info  I
	Class Class
}

// StepFunc runs one small step on an exclusively owned builder.
type StepFunc[I info.Info[I]] func(ctx context.Context, b *state.Builder, cur I) ([]Successor[I], error)

// Result is a frozen end-of-step state with its composed info.
type Result[I info.Info[I]] struct {
	State *state.Snapshot
	Info  I
}

// Quota limits the number of small steps. Check is called once per step.
type Quota interface {
	Check(label string) error
}

// Stats reports how much work a run did.
type Stats struct {
	Steps    int
	Merged   int
	Repeated int
	Dropped  int
}

type entry[I info.Info[I]] struct {
	snap *state.Snapshot
	info I
}

// keyedQueue is a FIFO queue of snapshots in which equal states merge.
type keyedQueue[I info.Info[I]] struct {
	order   []string
	entries map[string]*entry[I]
}

func newKeyedQueue[I info.Info[I]]() *keyedQueue[I] {
	return &keyedQueue[I]{entries: make(map[string]*entry[I])}
}

// push adds a state or composes into the queued entry of an equal state.
// Returns true when it merged.
func (q *keyedQueue[I]) push(snap *state.Snapshot, cur I) bool {
	if e, ok := q.entries[snap.Key()]; ok {
		e.info = e.info.Compose(cur)
		return true
	}
	q.entries[snap.Key()] = &entry[I]{snap: snap, info: cur}
	q.order = append(q.order, snap.Key())
	return false
}

func (q *keyedQueue[I]) pop() (*entry[I], bool) {
	if len(q.order) == 0 {
		return nil, false
	}
	key := q.order[0]
	q.order[0] = ""
	q.order = q.order[1:]
	e := q.entries[key]
	delete(q.entries, key)
	return e, true
}

func (q *keyedQueue[I]) len() int { return len(q.order) }

// Runner holds the configuration of a fixpoint run.
type Runner[I info.Info[I]] struct {
	Step  StepFunc[I]
	Quota Quota
	Label string
}

// Run evaluates from the given start states until the queue is empty and
// returns the end-of-step results in first-reached order. Start states are
// enqueued as Continuing.
//
// Cancellation is observed once per iteration; a cancelled run returns the
// context error and no results.
func (r Runner[I]) Run(ctx context.Context, start []Result[I]) ([]Result[I], Stats, error) {
	var stats Stats
	queue := newKeyedQueue[I]()
	memo := make(map[string]I)
	results := newKeyedQueue[I]()

	for _, s := range start {
		queue.push(s.State, s.Info)
	}

	for queue.len() > 0 {
		select {
		case <-ctx.Done():
			return nil, stats, fmt.Errorf("%s: %w", r.label(), ctx.Err())
		default:
		}

		if r.Quota != nil {
			if err := r.Quota.Check(r.label()); err != nil {
				return nil, stats, err
			}
		}

		item, _ := queue.pop()
		stats.Steps++

		successors, err := r.Step(ctx, item.snap.Thaw(), item.info)
		if err != nil {
			return nil, stats, err
		}

		for _, succ := range successors {
			snap := succ.State.Freeze()
			switch succ.Class {
			case EndOfStep:
				results.push(snap, succ.Info)
			case PossiblyRepeating:
				composed := succ.Info
				if prev, seen := memo[snap.Key()]; seen {
					composed = prev.Compose(succ.Info)
					if composed.Equal(prev) {
						stats.Dropped++
						continue
					}
				}
				memo[snap.Key()] = composed
				stats.Repeated++
				if queue.push(snap, composed) {
					stats.Merged++
				}
			default:
				if queue.push(snap, succ.Info) {
					stats.Merged++
				}
			}
		}
	}

	out := make([]Result[I], 0, results.len())
	for {
		e, ok := results.pop()
		if !ok {
			break
		}
		out = append(out, Result[I]{State: e.snap, Info: e.info})
	}
	return out, stats, nil
}

func (r Runner[I]) label() string {
	if r.Label == "" {
		return "fixpoint"
	}
	return r.Label
}
