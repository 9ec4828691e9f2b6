package testutil

import "github.com/roach88/absim/internal/ir"

// Instruction builders for hand-written model bodies.

func Const(l ir.Literal) ir.Instr { return ir.Instr{Op: ir.OpConst, Lit: &l} }
func Load(v string) ir.Instr      { return ir.Instr{Op: ir.OpLoad, Var: v} }
func Store(v string) ir.Instr     { return ir.Instr{Op: ir.OpStore, Var: v} }
func Binary(o string) ir.Instr    { return ir.Instr{Op: ir.OpBinary, Operator: o} }
func Jump(t int) ir.Instr         { return ir.Instr{Op: ir.OpJump, Target: t} }
func Branch(t int) ir.Instr       { return ir.Instr{Op: ir.OpBranch, Target: t} }

// Op builds an instruction that only needs an argument count.
func Op(o ir.Op, argc int) ir.Instr { return ir.Instr{Op: o, Argc: argc} }

// WaitNS waits for n nanoseconds.
func WaitNS(n int64) []ir.Instr {
	return []ir.Instr{Const(ir.IntLit(n)), Const(ir.UnitLit(ir.UnitNS)), Op(ir.OpWait, 2)}
}

// Notify notifies event immediately.
func Notify(event string) []ir.Instr {
	return []ir.Instr{Const(ir.EventLit(event)), Op(ir.OpNotify, 1)}
}

// Body flattens instructions and instruction slices into one body.
func Body(parts ...any) []ir.Instr {
	var out []ir.Instr
	for _, p := range parts {
		switch x := p.(type) {
		case ir.Instr:
			out = append(out, x)
		case []ir.Instr:
			out = append(out, x...)
		}
	}
	return out
}

// SingleProcess builds a model whose process "p" runs code as function
// "main". Events E and F are declared.
func SingleProcess(code []ir.Instr, sensitivity ...string) *ir.Model {
	return &ir.Model{
		Name:      "single",
		Events:    []string{"E", "F"},
		Processes: []ir.Process{{Name: "p", Function: "main", Sensitivity: sensitivity}},
		Functions: map[string]ir.Function{"main": {Body: code}},
	}
}

// Ticker is a process that waits 1ns forever. Its reachable state space has
// three states: initial, waiting, and woken.
func Ticker() *ir.Model {
	m := SingleProcess(Body(WaitNS(1), Jump(0)))
	m.Name = "ticker"
	return m
}

// PingPong is two processes notifying each other: pinger schedules ping one
// nanosecond ahead, ponger answers with an immediate pong.
func PingPong() *ir.Model {
	return &ir.Model{
		Name:   "pingpong",
		Events: []string{"ping", "pong"},
		Processes: []ir.Process{
			{Name: "pinger", Function: "ping", Sensitivity: []string{"pong"}},
			{Name: "ponger", Function: "pong", Sensitivity: []string{"ping"}, DontInitialize: true},
		},
		Functions: map[string]ir.Function{
			"ping": {Body: Body(
				Const(ir.EventLit("ping")), Const(ir.TimeLit(1, ir.UnitNS)), Op(ir.OpNotify, 2),
			)},
			"pong": {Body: Notify("pong")},
		},
	}
}
