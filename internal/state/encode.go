package state

import (
	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/ir"
)

// encode builds the canonical form hashed by Freeze. Absent optional parts
// are omitted rather than encoded as null.
func (b *Builder) encode() ir.IRObject {
	procs := make(ir.IRObject, len(b.Processes))
	for name, p := range b.Processes {
		waiting := blocker.Blocker(blocker.None{})
		if p.WaitingFor != nil {
			waiting = p.WaitingFor
		}
		procs[name] = ir.IRObject{
			"waiting": waiting.Canonical(),
			"frames":  encodeFrames(p.Frames),
		}
	}
	return ir.IRObject{
		"global":    b.Global.encode(),
		"processes": procs,
	}
}

func (g Global) encode() ir.IRObject {
	pending := make(ir.IRObject, len(g.Pending))
	for event, t := range g.Pending {
		pending[event] = t.Canonical()
	}
	vars := make(ir.IRObject, len(g.Vars))
	for name, v := range g.Vars {
		vars[name] = v.Canonical()
	}
	obj := ir.IRObject{
		"pending": pending,
		"updates": ir.StringArray(g.UpdateRequests),
		"stopped": ir.IRBool(g.Stopped),
		"vars":    vars,
	}
	if g.Update != nil {
		obj["update"] = ir.IRObject{
			"channel": ir.IRString(g.Update.Channel),
			"frames":  encodeFrames(g.Update.Frames),
		}
	}
	return obj
}

func encodeFrames(frames []Frame) ir.IRArray {
	arr := make(ir.IRArray, len(frames))
	for i, f := range frames {
		arr[i] = f.encode()
	}
	return arr
}

func (f Frame) encode() ir.IRObject {
	operands := make(ir.IRArray, len(f.Operands))
	for i, v := range f.Operands {
		operands[i] = v.Canonical()
	}
	locals := make(ir.IRObject, len(f.Locals))
	for name, v := range f.Locals {
		locals[name] = v.Canonical()
	}
	obj := ir.IRObject{
		"function": ir.IRString(f.Function),
		"next":     ir.IRInt(f.Next),
		"operands": operands,
		"locals":   locals,
	}
	if f.Receiver != nil {
		obj["receiver"] = f.Receiver.Canonical()
	}
	return obj
}
