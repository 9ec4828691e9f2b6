package engine

import (
	"context"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

// Readiness classifies whether a process may run in the current evaluation
// phase.
type Readiness int

const (
	NotReady Readiness = iota
	// MaybeReady processes wait on events whose notification is not
	// tracked, so they may or may not have been woken.
	MaybeReady
	Ready
)

func (r Readiness) String() string {
	switch r {
	case Ready:
		return "ready"
	case MaybeReady:
		return "maybe-ready"
	}
	return "not-ready"
}

// ReadySet lists the processes that may run, in sorted order.
type ReadySet struct {
	Ready []string
	Maybe []string
}

// All returns guaranteed and maybe-ready processes.
func (r ReadySet) All() []string {
	out := make([]string, 0, len(r.Ready)+len(r.Maybe))
	out = append(out, r.Ready...)
	out = append(out, r.Maybe...)
	slices.Sort(out)
	return out
}

// Empty reports whether nothing can run.
func (r ReadySet) Empty() bool {
	return len(r.Ready) == 0 && len(r.Maybe) == 0
}

func (e *Engine[I]) stoppedNow(s *state.Snapshot) bool {
	return s.Stopped() && e.stopMode == ir.StopImmediate
}

// Readiness classifies one process.
func (e *Engine[I]) Readiness(s *state.Snapshot, name string) Readiness {
	if e.stoppedNow(s) {
		return NotReady
	}
	switch w := s.WaitingFor(name).(type) {
	case blocker.None:
		return Ready
	case blocker.EventWait:
		untracked := 0
		for _, ev := range w.Events {
			if !e.IsConsidered(ev) {
				untracked++
			}
		}
		if (w.Choice && untracked > 0) || (untracked > 0 && untracked == len(w.Events)) {
			return MaybeReady
		}
	}
	return NotReady
}

// ReadySet computes the processes that may run in a state.
func (e *Engine[I]) ReadySet(s *state.Snapshot) ReadySet {
	var rs ReadySet
	for _, name := range s.ProcessNames() {
		switch e.Readiness(s, name) {
		case Ready:
			rs.Ready = append(rs.Ready, name)
		case MaybeReady:
			rs.Maybe = append(rs.Maybe, name)
		}
	}
	return rs
}

// ReadyCache remembers the ready set of the last state it was asked about.
// It is not safe for concurrent use: keep one per worker.
type ReadyCache struct {
	key    string
	set    ReadySet
	Hits   int
	Misses int
}

// CachedReadySet is ReadySet backed by a per-worker cache.
func (e *Engine[I]) CachedReadySet(c *ReadyCache, s *state.Snapshot) ReadySet {
	if c.key != "" && c.key == s.Key() {
		c.Hits++
		return c.set
	}
	c.Misses++
	c.key = s.Key()
	c.set = e.ReadySet(s)
	return c.set
}

// CanEndEvaluation reports whether EndEvaluation may be called. A state
// stopped under the immediate stop mode is drained: nothing runs and time
// does not move.
func (e *Engine[I]) CanEndEvaluation(s *state.Snapshot) bool {
	return !e.stoppedNow(s)
}

// EndEvaluation ends the evaluation phase: it runs the update phase and then
// advances the simulation from every state the updates produced. An empty
// result means the state is terminal.
func (e *Engine[I]) EndEvaluation(ctx context.Context, s *state.Snapshot) ([]Transition[I], error) {
	if !e.CanEndEvaluation(s) {
		return nil, nil
	}
	updated, err := e.DoUpdateCycle(ctx, s, e.handler.Empty())
	if err != nil {
		return nil, err
	}
	var out []Transition[I]
	for _, u := range updated {
		if err := ctx.Err(); err != nil {
			return nil, NewAbortError("scheduler", err)
		}
		next, err := e.AdvanceSimulation(u.State, u.Info)
		if err != nil {
			return nil, err
		}
		out = append(out, next...)
	}
	return mergeTransitions(out), nil
}

// DoUpdateCycle drains the pending update requests in request order. Every
// state produced by one channel's update is the input of the next.
func (e *Engine[I]) DoUpdateCycle(ctx context.Context, s *state.Snapshot, cur I) ([]Transition[I], error) {
	b := s.Thaw()
	requests := b.Global.UpdateRequests
	b.Global.UpdateRequests = nil

	current := []Transition[I]{{State: b.Freeze(), Info: cur}}
	for _, ch := range requests {
		var next []Transition[I]
		for _, t := range current {
			rs, err := e.UpdatePort(ctx, t.State, t.Info, ch)
			if err != nil {
				return nil, err
			}
			next = append(next, rs...)
		}
		current = mergeTransitions(next)
	}
	return current, nil
}

// UpdatePort runs the update function of one channel to completion.
func (e *Engine[I]) UpdatePort(ctx context.Context, s *state.Snapshot, cur I, channel string) ([]Transition[I], error) {
	ch, ok := e.model.Channel(channel)
	if !ok {
		return nil, NewContractViolation("", "unknown channel %q", channel)
	}
	th := state.UpdateThreadOf(channel)
	b := s.Thaw()
	b.Global.Update = &state.UpdateThread{
		Channel: channel,
		Frames:  []state.Frame{{Function: ch.Update, Receiver: value.Channel(channel)}},
	}
	cur = e.handler.OnStartOfCode(cur, th.String())

	results, err := e.run(ctx, th, b, cur, updateOwner[I]{thread: th.String()})
	if err != nil {
		return nil, err
	}
	return toTransitions(results), nil
}

// updateOwner runs channel update functions, which may not block.
type updateOwner[I info.Info[I]] struct {
	thread string
}

func (o updateOwner[I]) wait(_ *state.Builder, cur I, _ []value.Value) (I, error) {
	return cur, NewContractViolation(o.thread, "wait inside a channel update")
}

func (o updateOwner[I]) endOfCode(b *state.Builder, cur I) (I, error) {
	b.Global.Update = nil
	return cur, nil
}

// AdvanceSimulation moves a state past the end of an evaluation phase: a
// delta cycle when anything waits for one, otherwise a time advance by the
// earliest pending timer. It returns no transition when the state is stopped
// or quiescent.
func (e *Engine[I]) AdvanceSimulation(s *state.Snapshot, cur I) ([]Transition[I], error) {
	if s.Stopped() {
		return nil, nil
	}
	b := s.Thaw()

	elapsed, reason, ok := e.nextAdvance(b)
	if !ok {
		e.log.WithField("state", s.Key()).Debug("quiescent")
		return nil, nil
	}
	cur, err := e.advance(b, cur, elapsed, reason)
	if err != nil {
		return nil, err
	}
	return []Transition[I]{{State: b.Freeze(), Info: cur}}, nil
}

// nextAdvance finds how far the simulation moves: a delta cycle if anything
// waits for one, otherwise the earliest timer.
func (e *Engine[I]) nextAdvance(b *state.Builder) (blocker.Timer, info.Reason, bool) {
	var timers []blocker.Timer
	for _, t := range b.Global.Pending {
		timers = append(timers, t)
	}
	for _, p := range b.Processes {
		if t, ok := blocker.TimerOf(p.WaitingFor); ok {
			timers = append(timers, t)
		}
	}
	earliest, ok := blocker.Earliest(timers...)
	if !ok {
		return nil, "", false
	}
	if _, delta := earliest.(blocker.Delta); delta {
		return earliest, info.ReasonDelta, true
	}
	return earliest, info.ReasonTime, true
}

// advance fires every timer equal to elapsed and shortens the rest. Events
// whose notification fires are delivered to event-waiting processes.
func (e *Engine[I]) advance(b *state.Builder, cur I, elapsed blocker.Timer, reason info.Reason) (I, error) {
	var fired []string
	for _, ev := range maps.Keys(b.Global.Pending) {
		t := b.Global.Pending[ev]
		if blocker.Compare(t, elapsed) == 0 {
			fired = append(fired, ev)
			delete(b.Global.Pending, ev)
			continue
		}
		rest, err := blocker.Subtract(t, elapsed)
		if err != nil {
			return cur, NewContractViolation("scheduler", "pending %s: %v", ev, err)
		}
		b.Global.Pending[ev] = rest
	}
	slices.Sort(fired)

	for _, name := range b.ProcessNames() {
		p := b.Processes[name]
		switch w := p.WaitingFor.(type) {
		case blocker.Delta:
			p.WaitingFor = blocker.None{}
			cur = e.handler.OnUnblocked(cur, name, info.ReasonDelta)

		case blocker.Timed:
			nb, done, err := blocker.Advance(w, elapsed)
			if err != nil {
				return cur, NewContractViolation("scheduler", "process %s: %v", name, err)
			}
			p.WaitingFor = nb
			if done {
				cur = e.handler.OnUnblocked(cur, name, reason)
			}

		case blocker.EventWait:
			if len(fired) > 0 {
				nb, changed := blocker.Fire(w, fired)
				if changed && blocker.IsReady(nb) {
					p.WaitingFor = nb
					cur = e.handler.OnUnblocked(cur, name, info.ReasonEvents)
					continue
				}
				w = nb.(blocker.EventWait)
			}
			nb, done, err := blocker.Advance(w, elapsed)
			if err != nil {
				return cur, NewContractViolation("scheduler", "process %s: %v", name, err)
			}
			p.WaitingFor = nb
			if done {
				cur = e.handler.OnUnblocked(cur, name, reason)
			}
		}
	}
	return cur, nil
}

// NotifyEvents notifies an event. A nil delay notifies immediately: the
// event leaves the pending set and wakes the processes waiting on it. A
// delay schedules the notification; an earlier pending one is kept.
// Notifications of events that are not considered are ignored.
func (e *Engine[I]) NotifyEvents(b *state.Builder, cur I, event string, delay blocker.Timer) I {
	if !e.IsConsidered(event) {
		return cur
	}
	if b.Global.Pending == nil {
		b.Global.Pending = make(map[string]blocker.Timer)
	}
	if delay != nil {
		b.Global.Pending[event] = blocker.Min(b.Global.Pending[event], delay)
		return cur
	}

	delete(b.Global.Pending, event)
	fired := []string{event}
	for _, name := range b.ProcessNames() {
		p := b.Processes[name]
		w, ok := p.WaitingFor.(blocker.EventWait)
		if !ok {
			continue
		}
		nb, changed := blocker.Fire(w, fired)
		if !changed {
			continue
		}
		p.WaitingFor = nb
		if blocker.IsReady(nb) {
			cur = e.handler.OnUnblocked(cur, name, info.ReasonEvents)
		}
	}
	return cur
}

// StopSimulation sets the stopped flag and drops pending notifications.
// Under the immediate stop mode every process terminates. Under after_delta
// ready and event-waiting processes finish the current delta cycle; the rest
// terminate.
func (e *Engine[I]) StopSimulation(b *state.Builder, cur I) I {
	b.Global.Stopped = true
	b.Global.Pending = make(map[string]blocker.Timer)
	for _, p := range b.Processes {
		if e.stopMode != ir.StopImmediate {
			switch p.WaitingFor.(type) {
			case nil, blocker.None, blocker.EventWait:
				continue
			}
		}
		p.WaitingFor = blocker.Terminated{}
		p.Frames = nil
	}
	return cur
}

// Successors returns every transition leaving a state: one big step per
// process that may run, plus the end of the evaluation phase when no process
// is guaranteed to be ready. Results are keyed by the step that made them.
//
// A big step that fails for lack of precision or by exceeding its quota is
// returned with Err set and no transitions; the other steps are unaffected.
// Aborts and contract violations fail the whole call.
func (e *Engine[I]) Successors(ctx context.Context, s *state.Snapshot, cache *ReadyCache) ([]Step[I], error) {
	var rs ReadySet
	if cache != nil {
		rs = e.CachedReadySet(cache, s)
	} else {
		rs = e.ReadySet(s)
	}

	var out []Step[I]
	add := func(label string, ts []Transition[I], err error) error {
		if err != nil && !IsPrecisionError(err) && !IsQuotaError(err) {
			return err
		}
		out = append(out, Step[I]{Label: label, Transitions: ts, Err: err})
		return nil
	}

	for _, name := range rs.All() {
		ts, err := e.MakeStep(ctx, s, name)
		if err := add(state.ProcessThread(name).String(), ts, err); err != nil {
			return nil, err
		}
	}
	if len(rs.Ready) == 0 && e.CanEndEvaluation(s) {
		ts, err := e.EndEvaluation(ctx, s)
		if err := add(EndEvaluationLabel, ts, err); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EndEvaluationLabel labels transitions made by EndEvaluation.
const EndEvaluationLabel = "end_evaluation"

// Step groups the transitions of one big step.
type Step[I info.Info[I]] struct {
	Label       string
	Transitions []Transition[I]
	Err         error
}

var _ owner[info.None] = updateOwner[info.None]{}
var _ owner[info.None] = processOwner[info.None]{}
