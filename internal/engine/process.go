package engine

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/fixpoint"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

// MakeStep runs a ready process until every path through its code blocks,
// and returns the distinct resulting states with the information composed
// along the paths reaching each.
//
// A maybe-ready process (waiting on events that are not tracked) is resumed
// as if the events had fired. The snapshot is never modified.
func (e *Engine[I]) MakeStep(ctx context.Context, s *state.Snapshot, name string) ([]Transition[I], error) {
	proc, ok := e.model.Process(name)
	if !ok {
		return nil, NewContractViolation("", "unknown process %q", name)
	}
	th := state.ProcessThread(name)
	if e.Readiness(s, name) == NotReady {
		return nil, NewContractViolation(th.String(), "process is not ready (%s)", s.WaitingFor(name))
	}

	b := s.Thaw()
	cur := e.handler.Empty()
	p := b.Process(name)
	if _, waiting := p.WaitingFor.(blocker.EventWait); waiting {
		cur = e.handler.OnUnblocked(cur, name, info.ReasonEvents)
	}
	p.WaitingFor = blocker.None{}

	if len(p.Frames) == 0 {
		var recv value.Value
		if proc.Receiver != nil {
			v, err := e.domain.FromLiteral(*proc.Receiver)
			if err != nil {
				return nil, NewContractViolation(th.String(), "receiver: %v", err)
			}
			recv = v
		}
		p.Frames = []state.Frame{{Function: proc.Function, Receiver: recv}}
		cur = e.handler.OnStartOfCode(cur, th.String())
	}

	results, err := e.run(ctx, th, b, cur, processOwner[I]{e: e, proc: proc})
	if err != nil {
		return nil, err
	}
	return toTransitions(results), nil
}

// run drives the crawler of one thread to its fixpoint under a fresh quota.
func (e *Engine[I]) run(ctx context.Context, th state.Thread, b *state.Builder, cur I, o owner[I]) ([]fixpoint.Result[I], error) {
	c := &crawler[I]{e: e, thread: th, owner: o}
	r := fixpoint.Runner[I]{
		Step:  c.step,
		Quota: NewQuotaEnforcer(e.maxSteps),
		Label: th.String(),
	}
	results, stats, err := r.Run(ctx, []fixpoint.Result[I]{{State: b.Freeze(), Info: cur}})
	log := e.log.WithFields(logrus.Fields{
		"thread":   th.String(),
		"steps":    stats.Steps,
		"merged":   stats.Merged,
		"repeated": stats.Repeated,
		"dropped":  stats.Dropped,
	})
	if err != nil {
		err = classify(th.String(), err)
		log.WithError(err).Debug("big step failed")
		return nil, err
	}
	log.WithField("results", len(results)).Debug("big step done")
	return results, nil
}

func toTransitions[I info.Info[I]](rs []fixpoint.Result[I]) []Transition[I] {
	out := make([]Transition[I], len(rs))
	for i, r := range rs {
		out[i] = Transition[I]{State: r.State, Info: r.Info}
	}
	return out
}

// processOwner suspends and re-arms processes.
type processOwner[I info.Info[I]] struct {
	e    *Engine[I]
	proc ir.Process
}

func (o processOwner[I]) thread() string { return state.ProcessThread(o.proc.Name).String() }

func (o processOwner[I]) wait(b *state.Builder, cur I, args []value.Value) (I, error) {
	if err := determined(o.thread(), "wait", args); err != nil {
		return cur, err
	}
	w, err := o.blockerFor(args)
	if err != nil {
		return cur, err
	}
	b.Process(o.proc.Name).WaitingFor = w
	return cur, nil
}

// blockerFor decodes the arguments of wait():
//
//	wait()                     static sensitivity, any-of
//	wait(event | events)       the events
//	wait(time)                 timed, zero is a delta wait
//	wait(amount, unit)         timed, zero is a delta wait
//	wait(time, event | events) events with a timeout
//	wait(amount, unit, event | events)
func (o processOwner[I]) blockerFor(args []value.Value) (blocker.Blocker, error) {
	switch len(args) {
	case 0:
		if len(o.proc.Sensitivity) == 0 {
			return nil, NewContractViolation(o.thread(), "wait() without static sensitivity")
		}
		return blocker.NewEventWait(o.proc.Sensitivity, true, nil), nil

	case 1:
		switch x := args[0].(type) {
		case value.Time:
			return durationTimer(o.thread(), "wait", x)
		case value.Event, value.EventSet:
			return o.eventWait(x, nil)
		}

	case 2:
		switch x := args[0].(type) {
		case value.Int:
			return amountTimer(o.thread(), "wait", x, args[1])
		case value.Time:
			t, err := durationTimer(o.thread(), "wait", x)
			if err != nil {
				return nil, err
			}
			return o.eventWait(args[1], t)
		}

	case 3:
		t, err := amountTimer(o.thread(), "wait", args[0], args[1])
		if err != nil {
			return nil, err
		}
		return o.eventWait(args[2], t)

	default:
		return nil, NewContractViolation(o.thread(), "wait takes at most 3 arguments, got %d", len(args))
	}
	return nil, NewContractViolation(o.thread(), "unrecognized wait(%s)", kinds(args))
}

func (o processOwner[I]) eventWait(v value.Value, timeout blocker.Timer) (blocker.Blocker, error) {
	switch x := v.(type) {
	case value.Event:
		return blocker.NewEventWait([]string{string(x)}, false, timeout), nil
	case value.EventSet:
		return blocker.NewEventWait(x.Events, x.Choice, timeout), nil
	}
	return nil, NewContractViolation(o.thread(), "wait on %s, want an event", v)
}

// endOfCode re-arms a process on its sensitivity, or terminates it.
func (o processOwner[I]) endOfCode(b *state.Builder, cur I) (I, error) {
	p := b.Process(o.proc.Name)
	p.Frames = nil
	if len(o.proc.Sensitivity) > 0 {
		p.WaitingFor = blocker.NewEventWait(o.proc.Sensitivity, true, nil)
	} else {
		p.WaitingFor = blocker.Terminated{}
	}
	return cur, nil
}

func kinds(args []value.Value) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += string(a.Kind())
	}
	return out
}
