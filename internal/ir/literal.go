package ir

import (
	"errors"
	"fmt"
	"math"
)

// TimeUnit is a simulated-time unit. Durations are always an integer amount
// of one of these units.
type TimeUnit string

const (
	UnitFS  TimeUnit = "fs"
	UnitPS  TimeUnit = "ps"
	UnitNS  TimeUnit = "ns"
	UnitUS  TimeUnit = "us"
	UnitMS  TimeUnit = "ms"
	UnitSec TimeUnit = "sec"
)

// Units lists every time unit from finest to coarsest.
var Units = []TimeUnit{UnitFS, UnitPS, UnitNS, UnitUS, UnitMS, UnitSec}

var femtos = map[TimeUnit]int64{
	UnitFS:  1,
	UnitPS:  1_000,
	UnitNS:  1_000_000,
	UnitUS:  1_000_000_000,
	UnitMS:  1_000_000_000_000,
	UnitSec: 1_000_000_000_000_000,
}

// Femtos returns how many femtoseconds one unit spans.
func (u TimeUnit) Femtos() (int64, bool) {
	f, ok := femtos[u]
	return f, ok
}

// Valid reports whether u is a known unit.
func (u TimeUnit) Valid() bool {
	_, ok := femtos[u]
	return ok
}

// ErrDurationOverflow is returned for durations longer than int64
// femtoseconds can hold (about 9223 seconds).
var ErrDurationOverflow = errors.New("duration overflows int64 femtoseconds")

// CheckDuration fails when amount units do not fit in int64 femtoseconds.
// Normalize and ToFemtos expect durations that pass it.
func CheckDuration(amount int64, unit TimeUnit) error {
	f, ok := unit.Femtos()
	if !ok {
		return fmt.Errorf("unknown time unit %q", unit)
	}
	if amount > math.MaxInt64/f || amount < math.MinInt64/f {
		return fmt.Errorf("%d%s: %w", amount, unit, ErrDurationOverflow)
	}
	return nil
}

// Normalize rewrites a duration in the coarsest unit that represents it
// exactly, so 1000ps and 1ns have the same form. Zero normalizes to 0fs.
func Normalize(amount int64, unit TimeUnit) (int64, TimeUnit) {
	f, ok := unit.Femtos()
	if !ok {
		return amount, unit
	}
	if amount == 0 {
		return 0, UnitFS
	}
	total := amount * f
	for i := len(Units) - 1; i >= 0; i-- {
		uf := femtos[Units[i]]
		if total%uf == 0 {
			return total / uf, Units[i]
		}
	}
	return total, UnitFS
}

// ToFemtos converts a duration to femtoseconds.
func ToFemtos(amount int64, unit TimeUnit) int64 {
	return amount * femtos[unit]
}

// ParseTimeUnit accepts both short forms ("ns") and kernel constant
// spellings ("SC_NS").
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch s {
	case "fs", "SC_FS":
		return UnitFS, nil
	case "ps", "SC_PS":
		return UnitPS, nil
	case "ns", "SC_NS":
		return UnitNS, nil
	case "us", "SC_US":
		return UnitUS, nil
	case "ms", "SC_MS":
		return UnitMS, nil
	case "sec", "s", "SC_SEC":
		return UnitSec, nil
	}
	return "", fmt.Errorf("unknown time unit %q", s)
}

// TimeLiteral is a constant duration.
type TimeLiteral struct {
	Amount int64    `json:"amount"`
	Unit   TimeUnit `json:"unit"`
}

// Literal is a constant pushed by an OpConst instruction or used as the
// initial value of a global. Exactly one field is set. Unknown yields the top
// element of the value domain and models inputs the analysis cannot know;
// OneOf yields the set of its members.
type Literal struct {
	Int     *int64       `json:"int,omitempty"`
	Bool    *bool        `json:"bool,omitempty"`
	Str     *string      `json:"str,omitempty"`
	Event   string       `json:"event,omitempty"`
	Unit    TimeUnit     `json:"unit,omitempty"`
	Time    *TimeLiteral `json:"time,omitempty"`
	Channel string       `json:"channel,omitempty"`
	Port    string       `json:"port,omitempty"`
	Null    bool         `json:"null,omitempty"`
	Unknown bool         `json:"unknown,omitempty"`
	OneOf   []Literal    `json:"one_of,omitempty"`
}

// LiteralKind names which field of a Literal is populated.
type LiteralKind string

const (
	LitInvalid LiteralKind = ""
	LitInt     LiteralKind = "int"
	LitBool    LiteralKind = "bool"
	LitStr     LiteralKind = "str"
	LitEvent   LiteralKind = "event"
	LitUnit    LiteralKind = "unit"
	LitTime    LiteralKind = "time"
	LitChannel LiteralKind = "channel"
	LitPort    LiteralKind = "port"
	LitNull    LiteralKind = "null"
	LitUnknown LiteralKind = "unknown"
	LitOneOf   LiteralKind = "one_of"
)

// Kind returns the populated field, or LitInvalid when zero or several
// fields are set.
func (l Literal) Kind() LiteralKind {
	var kinds []LiteralKind
	if l.Int != nil {
		kinds = append(kinds, LitInt)
	}
	if l.Bool != nil {
		kinds = append(kinds, LitBool)
	}
	if l.Str != nil {
		kinds = append(kinds, LitStr)
	}
	if l.Event != "" {
		kinds = append(kinds, LitEvent)
	}
	if l.Unit != "" {
		kinds = append(kinds, LitUnit)
	}
	if l.Time != nil {
		kinds = append(kinds, LitTime)
	}
	if l.Channel != "" {
		kinds = append(kinds, LitChannel)
	}
	if l.Port != "" {
		kinds = append(kinds, LitPort)
	}
	if l.Null {
		kinds = append(kinds, LitNull)
	}
	if l.Unknown {
		kinds = append(kinds, LitUnknown)
	}
	if len(l.OneOf) > 0 {
		kinds = append(kinds, LitOneOf)
	}
	if len(kinds) != 1 {
		return LitInvalid
	}
	return kinds[0]
}

// IntLit, BoolLit, StrLit and friends build literals in tests and loaders.
func IntLit(n int64) Literal { return Literal{Int: &n} }

func BoolLit(b bool) Literal { return Literal{Bool: &b} }

func StrLit(s string) Literal { return Literal{Str: &s} }

func EventLit(name string) Literal { return Literal{Event: name} }

func UnitLit(u TimeUnit) Literal { return Literal{Unit: u} }

func TimeLit(amount int64, u TimeUnit) Literal {
	return Literal{Time: &TimeLiteral{Amount: amount, Unit: u}}
}

func ChannelLit(name string) Literal { return Literal{Channel: name} }

func PortLit(name string) Literal { return Literal{Port: name} }

func NullLit() Literal { return Literal{Null: true} }

func UnknownLit() Literal { return Literal{Unknown: true} }

func OneOfLit(members ...Literal) Literal { return Literal{OneOf: members} }
