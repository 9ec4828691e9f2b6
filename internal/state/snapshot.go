package state

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/value"
)

// Snapshot is a frozen considered state. It is immutable and safe to share
// across goroutines; its Key identifies it.
type Snapshot struct {
	data      *Builder
	canonical []byte
	key       string
}

// Freeze copies the builder into a snapshot. The builder stays usable and
// later changes to it do not affect the snapshot.
func (b *Builder) Freeze() *Snapshot {
	data := b.Clone()
	canonical, err := ir.MarshalCanonical(data.encode())
	if err != nil {
		// Encodings contain no null and no floats.
		panic(err)
	}
	return &Snapshot{
		data:      data,
		canonical: canonical,
		key:       ir.StateKeyFromCanonical(canonical),
	}
}

// Thaw returns a fresh mutable copy.
func (s *Snapshot) Thaw() *Builder {
	return s.data.Clone()
}

// Key is the content hash of the state.
func (s *Snapshot) Key() string { return s.key }

// Canonical is the RFC 8785 encoding the key was computed from.
func (s *Snapshot) Canonical() []byte { return slices.Clone(s.canonical) }

// Equal reports whether two snapshots hold the same state.
func (s *Snapshot) Equal(o *Snapshot) bool {
	return o != nil && s.key == o.key
}

// ProcessNames returns process names in sorted order.
func (s *Snapshot) ProcessNames() []string { return s.data.ProcessNames() }

// WaitingFor returns what a process waits for. Missing processes are
// reported as terminated.
func (s *Snapshot) WaitingFor(name string) blocker.Blocker {
	p := s.data.Processes[name]
	if p == nil {
		return blocker.Terminated{}
	}
	if p.WaitingFor == nil {
		return blocker.None{}
	}
	return p.WaitingFor
}

// Started reports whether a process has a suspended evaluation stack.
func (s *Snapshot) Started(name string) bool {
	p := s.data.Processes[name]
	return p != nil && len(p.Frames) > 0
}

// Stopped reports the global stopped flag.
func (s *Snapshot) Stopped() bool { return s.data.Global.Stopped }

// Pending returns a copy of the pending event notifications.
func (s *Snapshot) Pending() map[string]blocker.Timer {
	return maps.Clone(s.data.Global.Pending)
}

// UpdateRequests returns a copy of the pending update requests in order.
func (s *Snapshot) UpdateRequests() []string {
	return slices.Clone(s.data.Global.UpdateRequests)
}

// Var returns the value of a global variable.
func (s *Snapshot) Var(name string) (value.Value, bool) {
	v, ok := s.data.Global.Vars[name]
	return v, ok
}
