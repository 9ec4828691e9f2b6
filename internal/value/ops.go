package value

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

var (
	// ErrDivisionByZero is returned when every outcome of a divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNegativeTime is returned when a duration would be negative.
	ErrNegativeTime = errors.New("negative duration")
)

// TypeError reports operands outside an operator's vocabulary.
type TypeError struct {
	Operator string
	Operands []Kind
}

func (e *TypeError) Error() string {
	kinds := make([]string, len(e.Operands))
	for i, k := range e.Operands {
		if k == KindAny {
			k = "any"
		}
		kinds[i] = string(k)
	}
	return fmt.Sprintf("operator %q not defined on (%s)", e.Operator, strings.Join(kinds, ", "))
}

// Binary applies op pointwise over the outcomes of l and r and joins the
// results. Unknown operands give an unknown result of the operator's kind.
func (d Domain) Binary(op string, l, r Value) (Value, error) {
	_, lTop := l.(Top)
	_, rTop := r.(Top)
	if lTop || rTop {
		kind, err := binaryKind(op, l.Kind(), r.Kind())
		if err != nil {
			return nil, err
		}
		return Top{Of: kind}, nil
	}

	var results []Value
	var firstErr error
	for _, lo := range l.Outcomes() {
		for _, ro := range r.Outcomes() {
			v, err := apply(op, lo, ro)
			if err != nil {
				var te *TypeError
				if errors.As(err, &te) {
					return nil, err
				}
				// Arithmetic faults on one outcome drop that outcome only.
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			results = append(results, v)
		}
	}
	if len(results) == 0 {
		return nil, firstErr
	}
	return d.Join(results...), nil
}

// Unary applies op pointwise over the outcomes of v.
func (d Domain) Unary(op string, v Value) (Value, error) {
	if _, ok := v.(Top); ok {
		switch {
		case op == "!" && (v.Kind() == KindBool || v.Kind() == KindAny):
			return Top{Of: KindBool}, nil
		case op == "-" && (v.Kind() == KindInt || v.Kind() == KindAny):
			return Top{Of: KindInt}, nil
		}
		return nil, &TypeError{Operator: op, Operands: []Kind{v.Kind()}}
	}

	results := make([]Value, 0, len(v.Outcomes()))
	for _, o := range v.Outcomes() {
		switch x := o.(type) {
		case Bool:
			if op == "!" {
				results = append(results, !x)
				continue
			}
		case Int:
			if op == "-" {
				results = append(results, -x)
				continue
			}
		}
		return nil, &TypeError{Operator: op, Operands: []Kind{o.Kind()}}
	}
	return d.Join(results...), nil
}

// Branches returns the truth values a condition may take.
func Branches(v Value) ([]bool, error) {
	if t, ok := v.(Top); ok {
		if t.Of == KindBool || t.Of == KindAny {
			return []bool{false, true}, nil
		}
		return nil, &TypeError{Operator: "branch", Operands: []Kind{t.Of}}
	}
	var out []bool
	for _, o := range v.Outcomes() {
		b, ok := o.(Bool)
		if !ok {
			return nil, &TypeError{Operator: "branch", Operands: []Kind{o.Kind()}}
		}
		if !slices.Contains(out, bool(b)) {
			out = append(out, bool(b))
		}
	}
	return out, nil
}

func binaryKind(op string, l, r Kind) (Kind, error) {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=", "&&", "||":
		return KindBool, nil
	case "+", "-", "*", "/", "%":
		switch {
		case l == KindTime || r == KindTime:
			return KindTime, nil
		case l == KindInt && (r == KindInt || r == KindAny), r == KindInt && l == KindAny:
			return KindInt, nil
		case l == KindStr && op == "+":
			return KindStr, nil
		case l == KindAny && r == KindAny:
			return KindAny, nil
		}
	case "|", "&":
		switch {
		case l == KindEvent || l == KindEvents || r == KindEvent || r == KindEvents:
			return KindEvents, nil
		case l == KindBool || r == KindBool:
			return KindBool, nil
		case l == KindInt || r == KindInt:
			return KindInt, nil
		case l == KindAny && r == KindAny:
			return KindAny, nil
		}
	}
	return "", &TypeError{Operator: op, Operands: []Kind{l, r}}
}

func apply(op string, a, b Value) (Value, error) {
	switch op {
	case "==":
		if err := sameKind(op, a, b); err != nil {
			return nil, err
		}
		return Bool(Equal(a, b)), nil
	case "!=":
		if err := sameKind(op, a, b); err != nil {
			return nil, err
		}
		return Bool(!Equal(a, b)), nil
	case "<", "<=", ">", ">=":
		c, err := compare(op, a, b)
		if err != nil {
			return nil, err
		}
		switch op {
		case "<":
			return Bool(c < 0), nil
		case "<=":
			return Bool(c <= 0), nil
		case ">":
			return Bool(c > 0), nil
		}
		return Bool(c >= 0), nil
	case "&&", "||":
		x, ok1 := a.(Bool)
		y, ok2 := b.(Bool)
		if !ok1 || !ok2 {
			return nil, typeErr(op, a, b)
		}
		if op == "&&" {
			return x && y, nil
		}
		return x || y, nil
	case "|", "&":
		return combine(op, a, b)
	}
	return arith(op, a, b)
}

func arith(op string, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Int:
		switch y := b.(type) {
		case Int:
			switch op {
			case "+":
				return x + y, nil
			case "-":
				return x - y, nil
			case "*":
				return x * y, nil
			case "/":
				if y == 0 {
					return nil, ErrDivisionByZero
				}
				return x / y, nil
			case "%":
				if y == 0 {
					return nil, ErrDivisionByZero
				}
				return x % y, nil
			}
		case Time:
			if op == "*" {
				return scale(y, int64(x))
			}
		}
	case Time:
		switch y := b.(type) {
		case Time:
			fx, fy := x.Femtos(), y.Femtos()
			switch op {
			case "+":
				if fx > math.MaxInt64-fy {
					return nil, ir.ErrDurationOverflow
				}
				return toValue(NewTime(fx+fy, ir.UnitFS))
			case "-":
				if fy > fx {
					return nil, ErrNegativeTime
				}
				return toValue(NewTime(fx-fy, ir.UnitFS))
			}
		case Int:
			switch op {
			case "*":
				return scale(x, int64(y))
			case "/":
				if y == 0 {
					return nil, ErrDivisionByZero
				}
				if y < 0 {
					return nil, ErrNegativeTime
				}
				return toValue(NewTime(x.Femtos()/int64(y), ir.UnitFS))
			}
		}
	case Str:
		if y, ok := b.(Str); ok && op == "+" {
			return x + y, nil
		}
	}
	return nil, typeErr(op, a, b)
}

// scale multiplies a duration by n, in either operand order.
func scale(t Time, n int64) (Value, error) {
	if n < 0 {
		return nil, ErrNegativeTime
	}
	if n != 0 && t.Amount > math.MaxInt64/n {
		return nil, ir.ErrDurationOverflow
	}
	return toValue(NewTime(t.Amount*n, t.Unit))
}

func toValue(t Time, err error) (Value, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

func compare(op string, a, b Value) (int, error) {
	switch x := a.(type) {
	case Int:
		if y, ok := b.(Int); ok {
			return cmp3(int64(x), int64(y)), nil
		}
	case Time:
		if y, ok := b.(Time); ok {
			return cmp3(x.Femtos(), y.Femtos()), nil
		}
	case Str:
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), nil
		}
	}
	return 0, typeErr(op, a, b)
}

func cmp3(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// combine implements | and &: event-blocker construction on events, logical
// or bitwise combination on booleans and integers. Any-of and all-of cannot
// be mixed in one event-blocker.
func combine(op string, a, b Value) (Value, error) {
	switch x := a.(type) {
	case Bool:
		if y, ok := b.(Bool); ok {
			if op == "|" {
				return x || y, nil
			}
			return x && y, nil
		}
		return nil, typeErr(op, a, b)
	case Int:
		if y, ok := b.(Int); ok {
			if op == "|" {
				return x | y, nil
			}
			return x & y, nil
		}
		return nil, typeErr(op, a, b)
	}

	choice := op == "|"
	left, ok := eventsOf(a, choice)
	if !ok {
		return nil, typeErr(op, a, b)
	}
	right, ok := eventsOf(b, choice)
	if !ok {
		return nil, typeErr(op, a, b)
	}
	return NewEventSet(append(left, right...), choice), nil
}

func eventsOf(v Value, choice bool) ([]string, bool) {
	switch x := v.(type) {
	case Event:
		return []string{string(x)}, true
	case EventSet:
		if x.Choice != choice && len(x.Events) > 1 {
			return nil, false
		}
		return slices.Clone(x.Events), true
	}
	return nil, false
}

// NewEventSet builds an event-blocker value with sorted, unique events.
func NewEventSet(events []string, choice bool) EventSet {
	sorted := slices.Clone(events)
	slices.Sort(sorted)
	return EventSet{Events: slices.Compact(sorted), Choice: choice}
}

func sameKind(op string, a, b Value) error {
	if a.Kind() != b.Kind() {
		return typeErr(op, a, b)
	}
	return nil
}

func typeErr(op string, a, b Value) error {
	return &TypeError{Operator: op, Operands: []Kind{a.Kind(), b.Kind()}}
}
