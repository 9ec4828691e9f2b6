package value

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

// DefaultLimit bounds how many outcomes a Set keeps before widening to Top.
const DefaultLimit = 8

// Top is the unknown value of a kind (or of any kind).
type Top struct {
	Of Kind
}

func (t Top) Kind() Kind       { return t.Of }
func (Top) IsDetermined() bool { return false }
func (t Top) Canonical() ir.IRValue {
	of := string(t.Of)
	if of == "" {
		of = "any"
	}
	return ir.IRObject{"top": ir.IRString(of)}
}

func (Top) Outcomes() []Value { return nil }

func (t Top) String() string {
	if t.Of == "" {
		return "top"
	}
	return "top(" + string(t.Of) + ")"
}

func (Top) value() {}

// Set is a finite set of at least two determined values ordered by canonical
// key. Build it with Domain.Join.
type Set struct {
	members []Value
	kind    Kind
}

func (s Set) Kind() Kind        { return s.kind }
func (Set) IsDetermined() bool  { return false }
func (s Set) Outcomes() []Value { return slices.Clone(s.members) }

func (s Set) Canonical() ir.IRValue {
	arr := make(ir.IRArray, len(s.members))
	for i, m := range s.members {
		arr[i] = m.Canonical()
	}
	return ir.IRObject{"set": arr}
}

func (s Set) String() string {
	parts := make([]string, len(s.members))
	for i, m := range s.members {
		parts[i] = m.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (Set) value() {}

// Key is the canonical identity of a value. Values never encode null or
// floats, so the encoding cannot fail.
func Key(v Value) string {
	data, err := ir.MarshalCanonical(v.Canonical())
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Equal compares two values by canonical identity.
func Equal(a, b Value) bool {
	return Key(a) == Key(b)
}

// Domain is a bounded powerset lattice over the concrete vocabulary.
type Domain struct {
	Limit int
}

// NewDomain returns a domain keeping up to limit outcomes per value.
// A non-positive limit uses DefaultLimit.
func NewDomain(limit int) Domain {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Domain{Limit: limit}
}

// Join returns the least value covering every argument.
func (d Domain) Join(vs ...Value) Value {
	kind, mixed := Kind(""), false
	top := false
	byKey := make(map[string]Value)

	for i, v := range vs {
		if i == 0 {
			kind = v.Kind()
		} else if v.Kind() != kind {
			mixed = true
		}
		if _, ok := v.(Top); ok {
			top = true
			continue
		}
		for _, o := range v.Outcomes() {
			byKey[Key(o)] = o
		}
	}
	if mixed {
		kind = KindAny
	}

	limit := d.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	switch {
	case top || len(byKey) > limit || len(byKey) == 0:
		return Top{Of: kind}
	case kind == KindBool && len(byKey) == 2:
		// Both booleans: nothing is known.
		return Top{Of: KindBool}
	case len(byKey) == 1:
		for _, v := range byKey {
			return v
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	members := make([]Value, len(keys))
	for i, k := range keys {
		members[i] = byKey[k]
	}
	return Set{members: members, kind: kind}
}
