package engine

import (
	"context"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/fixpoint"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

// owner decides what happens when the code of a thread blocks or ends.
// Processes and channel updates differ only here.
type owner[I info.Info[I]] interface {
	wait(b *state.Builder, cur I, args []value.Value) (I, error)
	endOfCode(b *state.Builder, cur I) (I, error)
}

// crawler interprets the code of one thread, one instruction per small step.
type crawler[I info.Info[I]] struct {
	e      *Engine[I]
	thread state.Thread
	owner  owner[I]
}

func (c *crawler[I]) name() string { return c.thread.String() }

func (c *crawler[I]) one(b *state.Builder, cur I, class fixpoint.Class) []fixpoint.Successor[I] {
	return []fixpoint.Successor[I]{{State: b, Info: cur, Class: class}}
}

// step executes the next instruction of the thread's innermost frame.
func (c *crawler[I]) step(_ context.Context, b *state.Builder, cur I) ([]fixpoint.Successor[I], error) {
	stack := b.Stack(c.thread)
	if stack == nil || len(*stack) == 0 {
		return nil, NewContractViolation(c.name(), "no frame to evaluate")
	}
	f := &(*stack)[len(*stack)-1]
	fn, ok := c.e.model.Function(f.Function)
	if !ok {
		return nil, NewContractViolation(c.name(), "unknown function %q", f.Function)
	}
	if f.Next >= len(fn.Body) {
		return c.ret(b, cur, value.Null{})
	}

	pc := f.Next
	in := fn.Body[pc]
	f.Next++

	switch in.Op {
	case ir.OpConst:
		if in.Lit == nil {
			return nil, NewContractViolation(c.name(), "%s:%d: const without literal", f.Function, pc)
		}
		v, err := c.e.domain.FromLiteral(*in.Lit)
		if err != nil {
			return nil, NewContractViolation(c.name(), "%s:%d: %v", f.Function, pc, err)
		}
		f.Push(v)

	case ir.OpLoad:
		if v, ok := f.Locals[in.Var]; ok {
			f.Push(v)
			break
		}
		v, ok := b.Global.Vars[in.Var]
		if !ok {
			return nil, NewContractViolation(c.name(), "%s:%d: undefined variable %q", f.Function, pc, in.Var)
		}
		cur = c.e.handler.OnAccess(cur, c.name(), in.Var, false)
		f.Push(v)

	case ir.OpStore:
		v, err := c.pop(f, pc)
		if err != nil {
			return nil, err
		}
		if _, ok := f.Locals[in.Var]; !ok && c.e.model.IsGlobal(in.Var) {
			b.Global.Vars[in.Var] = v
			cur = c.e.handler.OnAccess(cur, c.name(), in.Var, true)
			break
		}
		if f.Locals == nil {
			f.Locals = make(map[string]value.Value)
		}
		f.Locals[in.Var] = v

	case ir.OpBinary:
		args, ok := f.PopN(2)
		if !ok {
			return nil, c.underflow(f, pc)
		}
		v, err := c.e.domain.Binary(in.Operator, args[0], args[1])
		if err != nil {
			return nil, NewContractViolation(c.name(), "%s:%d: %v", f.Function, pc, err)
		}
		f.Push(v)

	case ir.OpUnary:
		arg, err := c.pop(f, pc)
		if err != nil {
			return nil, err
		}
		v, err := c.e.domain.Unary(in.Operator, arg)
		if err != nil {
			return nil, NewContractViolation(c.name(), "%s:%d: %v", f.Function, pc, err)
		}
		f.Push(v)

	case ir.OpJump:
		if in.Target < 0 || in.Target > len(fn.Body) {
			return nil, NewContractViolation(c.name(), "%s:%d: jump target %d out of range", f.Function, pc, in.Target)
		}
		f.Next = in.Target
		if in.Target <= pc {
			return c.one(b, cur, fixpoint.PossiblyRepeating), nil
		}

	case ir.OpBranch:
		return c.branch(b, cur, f, fn, pc, in)

	case ir.OpCall:
		callee, ok := c.e.model.Function(in.Function)
		if !ok {
			return nil, NewContractViolation(c.name(), "%s:%d: unknown function %q", f.Function, pc, in.Function)
		}
		if len(callee.Params) != in.Argc {
			return nil, NewContractViolation(c.name(), "%s:%d: %s takes %d arguments, got %d",
				f.Function, pc, in.Function, len(callee.Params), in.Argc)
		}
		args, ok := f.PopN(in.Argc)
		if !ok {
			return nil, c.underflow(f, pc)
		}
		locals := make(map[string]value.Value, len(args))
		for i, p := range callee.Params {
			locals[p] = args[i]
		}
		*stack = append(*stack, state.Frame{Function: in.Function, Locals: locals, Receiver: f.Receiver})

	case ir.OpReturn:
		var v value.Value = value.Null{}
		if in.Value {
			var err error
			if v, err = c.pop(f, pc); err != nil {
				return nil, err
			}
		}
		return c.ret(b, cur, v)

	case ir.OpPop:
		if _, err := c.pop(f, pc); err != nil {
			return nil, err
		}

	case ir.OpDup:
		v, err := c.pop(f, pc)
		if err != nil {
			return nil, err
		}
		f.Push(v)
		f.Push(v)

	case ir.OpThis:
		if f.Receiver == nil {
			f.Push(value.Null{})
		} else {
			f.Push(f.Receiver)
		}

	case ir.OpWait:
		args, ok := f.PopN(in.Argc)
		if !ok {
			return nil, c.underflow(f, pc)
		}
		cur, err := c.owner.wait(b, cur, args)
		if err != nil {
			return nil, err
		}
		return c.one(b, cur, fixpoint.EndOfStep), nil

	case ir.OpNotify:
		args, ok := f.PopN(in.Argc)
		if !ok {
			return nil, c.underflow(f, pc)
		}
		event, delay, err := c.notifyArgs(args)
		if err != nil {
			return nil, err
		}
		cur = c.e.NotifyEvents(b, cur, event, delay)

	case ir.OpStop:
		cur = c.e.StopSimulation(b, cur)
		if !c.thread.IsUpdate() {
			p := b.Process(c.thread.Process)
			if _, done := p.WaitingFor.(blocker.Terminated); done {
				return c.one(b, cur, fixpoint.EndOfStep), nil
			}
		}

	case ir.OpRequestUpdate:
		target := f.Receiver
		if in.Argc == 1 {
			v, err := c.pop(f, pc)
			if err != nil {
				return nil, err
			}
			target = v
		} else if in.Argc != 0 {
			return nil, NewContractViolation(c.name(), "%s:%d: request_update takes at most one argument", f.Function, pc)
		}
		ch, err := c.channelOf(target)
		if err != nil {
			return nil, err
		}
		b.RequestUpdate(ch)

	default:
		return nil, NewContractViolation(c.name(), "%s:%d: unknown instruction %q", f.Function, pc, in.Op)
	}

	return c.one(b, cur, fixpoint.Continuing), nil
}

// branch forks on the possible truth values of the popped condition. The
// false outcome continues at the target.
func (c *crawler[I]) branch(b *state.Builder, cur I, f *state.Frame, fn ir.Function, pc int, in ir.Instr) ([]fixpoint.Successor[I], error) {
	if in.Target < 0 || in.Target > len(fn.Body) {
		return nil, NewContractViolation(c.name(), "%s:%d: branch target %d out of range", f.Function, pc, in.Target)
	}
	cond, err := c.pop(f, pc)
	if err != nil {
		return nil, err
	}
	outcomes, err := value.Branches(cond)
	if err != nil {
		return nil, NewContractViolation(c.name(), "%s:%d: %v", f.Function, pc, err)
	}

	out := make([]fixpoint.Successor[I], 0, len(outcomes))
	for i, taken := range outcomes {
		nb := b
		if i < len(outcomes)-1 {
			nb = b.Clone()
		}
		class := fixpoint.Continuing
		if !taken {
			nb.Top(c.thread).Next = in.Target
			if in.Target <= pc {
				class = fixpoint.PossiblyRepeating
			}
		}
		out = append(out, fixpoint.Successor[I]{State: nb, Info: cur, Class: class})
	}
	return out, nil
}

// ret leaves the innermost frame. Leaving the outermost frame ends the code
// of the thread.
func (c *crawler[I]) ret(b *state.Builder, cur I, v value.Value) ([]fixpoint.Successor[I], error) {
	stack := b.Stack(c.thread)
	*stack = (*stack)[:len(*stack)-1]
	if len(*stack) == 0 {
		cur, err := c.owner.endOfCode(b, cur)
		if err != nil {
			return nil, err
		}
		return c.one(b, cur, fixpoint.EndOfStep), nil
	}
	(*stack)[len(*stack)-1].Push(v)
	return c.one(b, cur, fixpoint.Continuing), nil
}

func (c *crawler[I]) pop(f *state.Frame, pc int) (value.Value, error) {
	v, ok := f.Pop()
	if !ok {
		return nil, c.underflow(f, pc)
	}
	return v, nil
}

func (c *crawler[I]) underflow(f *state.Frame, pc int) error {
	return NewContractViolation(c.name(), "%s:%d: operand stack underflow", f.Function, pc)
}

// determined fails with a precision error for the first argument that is
// not a single concrete value.
func determined(thread, what string, args []value.Value) error {
	for _, a := range args {
		if !a.IsDetermined() {
			return NewPrecisionError(thread, what+" argument "+a.String())
		}
	}
	return nil
}

// notifyArgs decodes notify(event), notify(event, time) and
// notify(event, amount, unit). A nil delay means an immediate notification.
func (c *crawler[I]) notifyArgs(args []value.Value) (string, blocker.Timer, error) {
	if err := determined(c.name(), "notify", args); err != nil {
		return "", nil, err
	}
	if len(args) == 0 || len(args) > 3 {
		return "", nil, NewContractViolation(c.name(), "notify takes 1 to 3 arguments, got %d", len(args))
	}
	ev, ok := args[0].(value.Event)
	if !ok {
		return "", nil, NewContractViolation(c.name(), "notify of %s, want an event", args[0])
	}

	var (
		delay blocker.Timer
		err   error
	)
	switch len(args) {
	case 2:
		t, ok := args[1].(value.Time)
		if !ok {
			return "", nil, NewContractViolation(c.name(), "notify delay %s, want a time", args[1])
		}
		delay, err = durationTimer(c.name(), "notify", t)
	case 3:
		delay, err = amountTimer(c.name(), "notify", args[1], args[2])
	}
	if err != nil {
		return "", nil, err
	}
	return string(ev), delay, nil
}

// durationTimer converts a time value into a timer.
func durationTimer(thread, what string, t value.Time) (blocker.Timer, error) {
	timer, err := blocker.NewTimer(t.Amount, t.Unit)
	if err != nil {
		return nil, NewContractViolation(thread, "%s: %v", what, err)
	}
	return timer, nil
}

// amountTimer builds a timer from an (amount, unit) pair.
func amountTimer(thread, what string, amount, unit value.Value) (blocker.Timer, error) {
	n, ok := amount.(value.Int)
	if !ok {
		return nil, NewContractViolation(thread, "%s amount %s, want an int", what, amount)
	}
	u, ok := unit.(value.Unit)
	if !ok {
		return nil, NewContractViolation(thread, "%s unit %s, want a unit", what, unit)
	}
	timer, err := blocker.NewTimer(int64(n), ir.TimeUnit(u))
	if err != nil {
		return nil, NewContractViolation(thread, "%s: %v", what, err)
	}
	return timer, nil
}

// channelOf resolves the target of request_update: a channel, or a port
// bound to one.
func (c *crawler[I]) channelOf(v value.Value) (string, error) {
	if v == nil {
		return "", NewContractViolation(c.name(), "request_update without receiver")
	}
	if !v.IsDetermined() {
		return "", NewPrecisionError(c.name(), "request_update target "+v.String())
	}
	switch x := v.(type) {
	case value.Channel:
		if _, ok := c.e.model.Channel(string(x)); !ok {
			return "", NewContractViolation(c.name(), "unknown channel %q", string(x))
		}
		return string(x), nil
	case value.Port:
		p, ok := c.e.model.Port(string(x))
		if !ok {
			return "", NewContractViolation(c.name(), "unknown port %q", string(x))
		}
		return p.Channel, nil
	}
	return "", NewContractViolation(c.name(), "request_update on %s, want a channel or port", v)
}
