// Package value defines the abstracted values the interpreter computes with.
//
// A Value is either determined (exactly one concrete outcome) or abstract (a
// finite set of outcomes, or Top when nothing is known). Control decisions
// fork over Outcomes; primitives that need a single answer, such as wait()
// arguments, require IsDetermined.
package value

import (
	"fmt"
	"strings"

	"github.com/roach88/absim/internal/ir"
)

// Kind names the concrete vocabulary.
type Kind string

const (
	KindAny     Kind = ""
	KindInt     Kind = "int"
	KindBool    Kind = "bool"
	KindStr     Kind = "str"
	KindEvent   Kind = "event"
	KindEvents  Kind = "events"
	KindTime    Kind = "time"
	KindUnit    Kind = "unit"
	KindChannel Kind = "channel"
	KindPort    Kind = "port"
	KindNull    Kind = "null"
)

// Value is an abstracted value.
type Value interface {
	// Kind is the kind of every outcome, or KindAny when outcomes are mixed
	// or unknown.
	Kind() Kind
	IsDetermined() bool
	// Outcomes lists the possible concrete values. A nil result with
	// IsDetermined false means the outcomes are unbounded.
	Outcomes() []Value
	Canonical() ir.IRValue
	String() string
	value()
}

// Int is a determined integer.
type Int int64

// Bool is a determined boolean.
type Bool bool

// Str is a determined string.
type Str string

// Event references a declared event.
type Event string

// EventSet is an event-blocker value built with | (any-of) or & (all-of).
// Events are sorted and unique.
type EventSet struct {
	Events []string
	Choice bool
}

// Time is a duration. Constructed through NewTime so equal durations have
// equal representations.
type Time struct {
	Amount int64
	Unit   ir.TimeUnit
}

// Unit is a time unit constant.
type Unit ir.TimeUnit

// Channel references a primitive channel instance.
type Channel string

// Port references a port instance.
type Port string

// Null is the absence of a value, returned by functions without a result.
type Null struct{}

// NewTime builds a normalized duration.
func NewTime(amount int64, unit ir.TimeUnit) (Time, error) {
	if amount < 0 {
		return Time{}, ErrNegativeTime
	}
	if err := ir.CheckDuration(amount, unit); err != nil {
		return Time{}, err
	}
	a, u := ir.Normalize(amount, unit)
	return Time{Amount: a, Unit: u}, nil
}

// MustTime is like NewTime but panics on error.
func MustTime(amount int64, unit ir.TimeUnit) Time {
	t, err := NewTime(amount, unit)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether t is the zero duration.
func (t Time) IsZero() bool { return t.Amount == 0 }

// Femtos returns t in femtoseconds.
func (t Time) Femtos() int64 { return ir.ToFemtos(t.Amount, t.Unit) }

func (Int) Kind() Kind      { return KindInt }
func (Bool) Kind() Kind     { return KindBool }
func (Str) Kind() Kind      { return KindStr }
func (Event) Kind() Kind    { return KindEvent }
func (EventSet) Kind() Kind { return KindEvents }
func (Time) Kind() Kind     { return KindTime }
func (Unit) Kind() Kind     { return KindUnit }
func (Channel) Kind() Kind  { return KindChannel }
func (Port) Kind() Kind     { return KindPort }
func (Null) Kind() Kind     { return KindNull }

func (Int) IsDetermined() bool      { return true }
func (Bool) IsDetermined() bool     { return true }
func (Str) IsDetermined() bool      { return true }
func (Event) IsDetermined() bool    { return true }
func (EventSet) IsDetermined() bool { return true }
func (Time) IsDetermined() bool     { return true }
func (Unit) IsDetermined() bool     { return true }
func (Channel) IsDetermined() bool  { return true }
func (Port) IsDetermined() bool     { return true }
func (Null) IsDetermined() bool     { return true }

func (v Int) Outcomes() []Value      { return []Value{v} }
func (v Bool) Outcomes() []Value     { return []Value{v} }
func (v Str) Outcomes() []Value      { return []Value{v} }
func (v Event) Outcomes() []Value    { return []Value{v} }
func (v EventSet) Outcomes() []Value { return []Value{v} }
func (v Time) Outcomes() []Value     { return []Value{v} }
func (v Unit) Outcomes() []Value     { return []Value{v} }
func (v Channel) Outcomes() []Value  { return []Value{v} }
func (v Port) Outcomes() []Value     { return []Value{v} }
func (v Null) Outcomes() []Value     { return []Value{v} }

func (v Int) Canonical() ir.IRValue  { return ir.IRObject{"int": ir.IRInt(v)} }
func (v Bool) Canonical() ir.IRValue { return ir.IRObject{"bool": ir.IRBool(v)} }
func (v Str) Canonical() ir.IRValue  { return ir.IRObject{"str": ir.IRString(v)} }
func (v Event) Canonical() ir.IRValue {
	return ir.IRObject{"event": ir.IRString(v)}
}
func (v EventSet) Canonical() ir.IRValue {
	return ir.IRObject{"events": ir.StringArray(v.Events), "choice": ir.IRBool(v.Choice)}
}
func (v Time) Canonical() ir.IRValue {
	return ir.IRObject{"time": ir.IRObject{"amount": ir.IRInt(v.Amount), "unit": ir.IRString(v.Unit)}}
}
func (v Unit) Canonical() ir.IRValue    { return ir.IRObject{"unit": ir.IRString(v)} }
func (v Channel) Canonical() ir.IRValue { return ir.IRObject{"channel": ir.IRString(v)} }
func (v Port) Canonical() ir.IRValue    { return ir.IRObject{"port": ir.IRString(v)} }
func (Null) Canonical() ir.IRValue      { return ir.IRObject{"null": ir.IRBool(true)} }

func (v Int) String() string   { return fmt.Sprintf("%d", int64(v)) }
func (v Bool) String() string  { return fmt.Sprintf("%t", bool(v)) }
func (v Str) String() string   { return fmt.Sprintf("%q", string(v)) }
func (v Event) String() string { return "event:" + string(v) }
func (v EventSet) String() string {
	sep := " & "
	if v.Choice {
		sep = " | "
	}
	return "(" + strings.Join(v.Events, sep) + ")"
}
func (v Time) String() string    { return fmt.Sprintf("%d%s", v.Amount, v.Unit) }
func (v Unit) String() string    { return string(v) }
func (v Channel) String() string { return "channel:" + string(v) }
func (v Port) String() string    { return "port:" + string(v) }
func (Null) String() string      { return "null" }

func (Int) value()      {}
func (Bool) value()     {}
func (Str) value()      {}
func (Event) value()    {}
func (EventSet) value() {}
func (Time) value()     {}
func (Unit) value()     {}
func (Channel) value()  {}
func (Port) value()     {}
func (Null) value()     {}
