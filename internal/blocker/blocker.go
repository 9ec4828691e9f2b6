// Package blocker defines what a process or a pending event notification is
// waiting for.
//
// A Blocker is one of None (ready), Delta, Timed, EventWait or Terminated.
// Delta and Timed are also Timers: durations that are totally ordered and can
// be subtracted, used for timed waits, wait timeouts and pending
// notifications.
package blocker

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

// Kind classifies a blocker.
type Kind string

const (
	KindNone       Kind = "none"
	KindDelta      Kind = "delta"
	KindTimed      Kind = "timed"
	KindEvent      Kind = "event"
	KindTerminated Kind = "terminated"
)

// Blocker is the sum type. Only the types of this package implement it.
type Blocker interface {
	Kind() Kind
	Canonical() ir.IRObject
	String() string
	blocker()
}

// Timer is a Blocker that carries a duration: Delta or Timed.
type Timer interface {
	Blocker
	// Femtos is the duration in femtoseconds; zero for Delta.
	Femtos() int64
}

// None is the ready state.
type None struct{}

// Delta waits for the next delta cycle.
type Delta struct{}

// Timed waits for a positive simulated duration. Build with NewTimer.
type Timed struct {
	Amount int64
	Unit   ir.TimeUnit
}

// EventWait waits on a set of events, any of them (Choice) or all of them,
// optionally bounded by a timeout.
type EventWait struct {
	Events  []string
	Choice  bool
	Timeout Timer
}

// Terminated never becomes ready again.
type Terminated struct{}

func (None) Kind() Kind       { return KindNone }
func (Delta) Kind() Kind      { return KindDelta }
func (Timed) Kind() Kind      { return KindTimed }
func (EventWait) Kind() Kind  { return KindEvent }
func (Terminated) Kind() Kind { return KindTerminated }

func (None) blocker()       {}
func (Delta) blocker()      {}
func (Timed) blocker()      {}
func (EventWait) blocker()  {}
func (Terminated) blocker() {}

func (None) Canonical() ir.IRObject       { return ir.IRObject{"kind": ir.IRString(KindNone)} }
func (Delta) Canonical() ir.IRObject      { return ir.IRObject{"kind": ir.IRString(KindDelta)} }
func (Terminated) Canonical() ir.IRObject { return ir.IRObject{"kind": ir.IRString(KindTerminated)} }

func (t Timed) Canonical() ir.IRObject {
	return ir.IRObject{
		"kind":   ir.IRString(KindTimed),
		"amount": ir.IRInt(t.Amount),
		"unit":   ir.IRString(t.Unit),
	}
}

func (w EventWait) Canonical() ir.IRObject {
	obj := ir.IRObject{
		"kind":   ir.IRString(KindEvent),
		"events": ir.StringArray(w.Events),
		"choice": ir.IRBool(w.Choice),
	}
	if w.Timeout != nil {
		obj["timeout"] = w.Timeout.Canonical()
	}
	return obj
}

func (None) String() string       { return "ready" }
func (Delta) String() string      { return "delta" }
func (Terminated) String() string { return "terminated" }
func (t Timed) String() string    { return fmt.Sprintf("%d%s", t.Amount, t.Unit) }

func (w EventWait) String() string {
	sep := "&"
	if w.Choice {
		sep = "|"
	}
	s := "events(" + strings.Join(w.Events, sep) + ")"
	if w.Timeout != nil {
		s += " timeout " + w.Timeout.String()
	}
	return s
}

func (Delta) Femtos() int64   { return 0 }
func (t Timed) Femtos() int64 { return ir.ToFemtos(t.Amount, t.Unit) }

// NewTimer returns Delta for a zero duration and a normalized Timed
// otherwise. Durations past int64 femtoseconds fail with
// ir.ErrDurationOverflow.
func NewTimer(amount int64, unit ir.TimeUnit) (Timer, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("unknown time unit %q", unit)
	}
	if amount < 0 {
		return nil, fmt.Errorf("negative duration %d%s", amount, unit)
	}
	if amount == 0 {
		return Delta{}, nil
	}
	if err := ir.CheckDuration(amount, unit); err != nil {
		return nil, err
	}
	a, u := ir.Normalize(amount, unit)
	return Timed{Amount: a, Unit: u}, nil
}

// MustTimer is like NewTimer but panics on error.
func MustTimer(amount int64, unit ir.TimeUnit) Timer {
	t, err := NewTimer(amount, unit)
	if err != nil {
		panic(err)
	}
	return t
}

// NewEventWait sorts and deduplicates events.
func NewEventWait(events []string, choice bool, timeout Timer) EventWait {
	sorted := slices.Clone(events)
	slices.Sort(sorted)
	return EventWait{Events: slices.Compact(sorted), Choice: choice, Timeout: timeout}
}

// IsReady reports whether b lets the process run. A nil blocker is ready.
func IsReady(b Blocker) bool {
	if b == nil {
		return true
	}
	_, ok := b.(None)
	return ok
}

// Equal compares blockers structurally.
func Equal(a, b Blocker) bool {
	if a == nil || b == nil {
		return IsReady(a) && IsReady(b)
	}
	ka, err1 := ir.MarshalCanonical(a.Canonical())
	kb, err2 := ir.MarshalCanonical(b.Canonical())
	return err1 == nil && err2 == nil && string(ka) == string(kb)
}
