package info

import (
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

// Accesses records which shared variables a big step read and wrote, and why
// processes woke up. Every field is a sorted set, so the domain has finite
// height for a finite model.
type Accesses struct {
	Reads  []string
	Writes []string
	Wakes  []string
}

// Compose is set union.
func (a Accesses) Compose(o Accesses) Accesses {
	return Accesses{
		Reads:  union(a.Reads, o.Reads),
		Writes: union(a.Writes, o.Writes),
		Wakes:  union(a.Wakes, o.Wakes),
	}
}

func (a Accesses) Equal(o Accesses) bool {
	return slices.Equal(a.Reads, o.Reads) &&
		slices.Equal(a.Writes, o.Writes) &&
		slices.Equal(a.Wakes, o.Wakes)
}

func (a Accesses) Canonical() ir.IRObject {
	return ir.IRObject{
		"reads":  ir.StringArray(a.Reads),
		"writes": ir.StringArray(a.Writes),
		"wakes":  ir.StringArray(a.Wakes),
	}
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

func with(set []string, s string) []string {
	if slices.Contains(set, s) {
		return set
	}
	out := append(slices.Clone(set), s)
	slices.Sort(out)
	return out
}

// AccessHandler builds Accesses. Variables are recorded as
// "<thread>:<variable>" and wake-ups as "<process>:<reason>".
type AccessHandler struct{}

func (AccessHandler) Empty() Accesses { return Accesses{} }

func (AccessHandler) OnStartOfCode(cur Accesses, _ string) Accesses { return cur }

func (AccessHandler) OnUnblocked(cur Accesses, process string, reason Reason) Accesses {
	cur.Wakes = with(cur.Wakes, process+":"+string(reason))
	return cur
}

func (AccessHandler) OnAccess(cur Accesses, thread, variable string, write bool) Accesses {
	entry := thread + ":" + variable
	if write {
		cur.Writes = with(cur.Writes, entry)
	} else {
		cur.Reads = with(cur.Reads, entry)
	}
	return cur
}
