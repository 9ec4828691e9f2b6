// Package state holds considered states: one point of the abstract state
// space, made of the global state and the state of every process.
//
// A state exists in two forms. A Builder is mutable and owned by exactly one
// call; it is never shared and never used as a key. A Snapshot is frozen,
// carries a content hash and may be published to any goroutine. Freeze turns
// a builder into a snapshot; Thaw gives a fresh builder back.
package state

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/value"
)

// Frame is one suspended call of the interpreter: the function, the index of
// the next instruction, the partial operand stack, locals and the receiver.
type Frame struct {
	Function string
	Next     int
	Operands []value.Value
	Locals   map[string]value.Value
	Receiver value.Value
}

// Push appends to the operand stack.
func (f *Frame) Push(v value.Value) {
	f.Operands = append(f.Operands, v)
}

// Pop removes the top operand. The second result is false on underflow.
func (f *Frame) Pop() (value.Value, bool) {
	n := len(f.Operands)
	if n == 0 {
		return nil, false
	}
	v := f.Operands[n-1]
	f.Operands = f.Operands[:n-1]
	return v, true
}

// PopN removes the top n operands and returns them bottom first.
func (f *Frame) PopN(n int) ([]value.Value, bool) {
	if n > len(f.Operands) {
		return nil, false
	}
	start := len(f.Operands) - n
	out := slices.Clone(f.Operands[start:])
	f.Operands = f.Operands[:start]
	return out, true
}

func (f Frame) clone() Frame {
	return Frame{
		Function: f.Function,
		Next:     f.Next,
		Operands: slices.Clone(f.Operands),
		Locals:   maps.Clone(f.Locals),
		Receiver: f.Receiver,
	}
}

func cloneFrames(frames []Frame) []Frame {
	if frames == nil {
		return nil
	}
	out := make([]Frame, len(frames))
	for i, f := range frames {
		out[i] = f.clone()
	}
	return out
}

// Process is the state of one process: its evaluation stack and what it is
// waiting for.
type Process struct {
	Frames     []Frame
	WaitingFor blocker.Blocker
}

func (p *Process) clone() *Process {
	return &Process{Frames: cloneFrames(p.Frames), WaitingFor: p.WaitingFor}
}

// UpdateThread is the evaluation of one channel's update function during
// the update phase.
type UpdateThread struct {
	Channel string
	Frames  []Frame
}

// Global is the state shared by all processes.
type Global struct {
	// Pending maps an event to the delay after which its scheduled
	// notification fires.
	Pending map[string]blocker.Timer
	// UpdateRequests is an ordered set of channel names.
	UpdateRequests []string
	Stopped        bool
	Vars           map[string]value.Value
	Update         *UpdateThread
}

func (g Global) clone() Global {
	out := Global{
		Pending:        maps.Clone(g.Pending),
		UpdateRequests: slices.Clone(g.UpdateRequests),
		Stopped:        g.Stopped,
		Vars:           maps.Clone(g.Vars),
	}
	if g.Update != nil {
		out.Update = &UpdateThread{Channel: g.Update.Channel, Frames: cloneFrames(g.Update.Frames)}
	}
	return out
}

// Builder is a mutable considered state.
type Builder struct {
	Global    Global
	Processes map[string]*Process
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{
		Global: Global{
			Pending: make(map[string]blocker.Timer),
			Vars:    make(map[string]value.Value),
		},
		Processes: make(map[string]*Process),
	}
}

// Clone deep-copies the builder.
func (b *Builder) Clone() *Builder {
	out := &Builder{
		Global:    b.Global.clone(),
		Processes: make(map[string]*Process, len(b.Processes)),
	}
	for name, p := range b.Processes {
		out.Processes[name] = p.clone()
	}
	return out
}

// Process returns the named process, or nil.
func (b *Builder) Process(name string) *Process {
	return b.Processes[name]
}

// ProcessNames returns process names in sorted order.
func (b *Builder) ProcessNames() []string {
	names := maps.Keys(b.Processes)
	slices.Sort(names)
	return names
}

// RequestUpdate adds a channel to the ordered pending-update set.
func (b *Builder) RequestUpdate(channel string) {
	if !slices.Contains(b.Global.UpdateRequests, channel) {
		b.Global.UpdateRequests = append(b.Global.UpdateRequests, channel)
	}
}

// Thread selects whose evaluation stack the interpreter works on: a process,
// or the update thread of a channel.
type Thread struct {
	Process string
	Channel string
}

// ProcessThread selects a process.
func ProcessThread(name string) Thread { return Thread{Process: name} }

// UpdateThreadOf selects the update thread evaluating a channel's update.
func UpdateThreadOf(channel string) Thread { return Thread{Channel: channel} }

// IsUpdate reports whether t is an update thread.
func (t Thread) IsUpdate() bool { return t.Channel != "" }

func (t Thread) String() string {
	if t.IsUpdate() {
		return "update:" + t.Channel
	}
	return "process:" + t.Process
}

// Stack returns the evaluation stack of a thread, or nil when the thread
// does not exist.
func (b *Builder) Stack(t Thread) *[]Frame {
	if t.IsUpdate() {
		if b.Global.Update == nil || b.Global.Update.Channel != t.Channel {
			return nil
		}
		return &b.Global.Update.Frames
	}
	p := b.Processes[t.Process]
	if p == nil {
		return nil
	}
	return &p.Frames
}

// Top returns the innermost frame of a thread.
func (b *Builder) Top(t Thread) *Frame {
	stack := b.Stack(t)
	if stack == nil || len(*stack) == 0 {
		return nil
	}
	return &(*stack)[len(*stack)-1]
}
