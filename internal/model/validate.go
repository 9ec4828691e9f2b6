package model

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrModelNameEmpty      = "E201" // model name is required
	ErrDuplicateName       = "E202" // name declared twice
	ErrUndefinedFunction   = "E203" // referenced function is not defined
	ErrUndefinedEvent      = "E204" // sensitivity or config names an undeclared event
	ErrUndefinedChannel    = "E205" // port or literal names an undeclared channel
	ErrInvalidLiteral      = "E206" // literal sets zero or several kinds, or a bad unit
	ErrUnknownOp           = "E207" // unknown instruction
	ErrTargetOutOfRange    = "E208" // jump/branch target outside the body
	ErrArityMismatch       = "E209" // call argc differs from the callee's params
	ErrUnknownOperator     = "E210" // unknown binary/unary operator
	ErrInvalidArgc         = "E211" // argc outside what the instruction accepts
	ErrInvalidStopMode     = "E212" // stop mode is neither immediate nor after_delta
	ErrInvalidReceiver     = "E214" // receiver is not a channel or port literal
	ErrStackUnderflow      = "E215" // straight-line code pops an empty operand stack
	ErrNoProcesses         = "E216" // a model needs at least one process
	ErrMissingInstrOperand = "E217" // instruction lacks its operand field
)

// ValidationError represents a structural error in a model.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`

	// path addresses the offending CUE value, relative to the model struct.
	path []any
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Path returns the location of the error as labels (string) and list
// indices (int).
func (e ValidationError) Path() []any {
	return slices.Clone(e.path)
}

func newError(code, msg string, path ...any) ValidationError {
	return ValidationError{Field: fieldOf(path), Message: msg, Code: code, path: path}
}

func fieldOf(path []any) string {
	var b strings.Builder
	for i, p := range path {
		switch x := p.(type) {
		case int:
			b.WriteString("[" + strconv.Itoa(x) + "]")
		case string:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(x)
		}
	}
	return b.String()
}

// Validate checks a decoded model for structural errors. It returns every
// error found, in a deterministic order.
func Validate(m *ir.Model) []ValidationError {
	v := &validator{m: m}
	v.run()
	return v.errs
}

type validator struct {
	m    *ir.Model
	errs []ValidationError
}

func (v *validator) add(code, msg string, path ...any) {
	v.errs = append(v.errs, newError(code, msg, path...))
}

func (v *validator) run() {
	m := v.m
	if strings.TrimSpace(m.Name) == "" {
		v.add(ErrModelNameEmpty, "name is required and must be non-empty", "name")
	}

	v.unique("events", m.Events)
	v.unique("channels", names(m.Channels, func(c ir.Channel) string { return c.Name }))
	v.unique("ports", names(m.Ports, func(p ir.Port) string { return p.Name }))
	v.unique("processes", names(m.Processes, func(p ir.Process) string { return p.Name }))

	if len(m.Processes) == 0 {
		v.add(ErrNoProcesses, "at least one process is required", "processes")
	}

	for i, c := range m.Channels {
		if _, ok := m.Function(c.Update); !ok {
			v.add(ErrUndefinedFunction, fmt.Sprintf("update function %q is not defined", c.Update), "channels", i, "update")
		}
	}
	for i, p := range m.Ports {
		if _, ok := m.Channel(p.Channel); !ok {
			v.add(ErrUndefinedChannel, fmt.Sprintf("channel %q is not declared", p.Channel), "ports", i, "channel")
		}
	}

	for _, name := range sortedKeys(m.Globals) {
		v.literal(m.Globals[name], "globals", name)
	}

	for i, p := range m.Processes {
		if _, ok := m.Function(p.Function); !ok {
			v.add(ErrUndefinedFunction, fmt.Sprintf("function %q is not defined", p.Function), "processes", i, "function")
		}
		for j, e := range p.Sensitivity {
			if !m.IsEvent(e) {
				v.add(ErrUndefinedEvent, fmt.Sprintf("event %q is not declared", e), "processes", i, "sensitivity", j)
			}
		}
		if p.Receiver != nil {
			switch p.Receiver.Kind() {
			case ir.LitChannel, ir.LitPort:
				v.literal(*p.Receiver, "processes", i, "receiver")
			default:
				v.add(ErrInvalidReceiver, "receiver must be a channel or port literal", "processes", i, "receiver")
			}
		}
	}

	for _, name := range sortedKeys(m.Functions) {
		v.function(name, m.Functions[name])
	}

	switch m.Config.StopMode {
	case "", ir.StopImmediate, ir.StopAfterDelta:
	default:
		v.add(ErrInvalidStopMode, fmt.Sprintf("unknown stop mode %q", m.Config.StopMode), "config", "stop_mode")
	}
	for i, e := range m.Config.ConsideredEvents {
		if !m.IsEvent(e) {
			v.add(ErrUndefinedEvent, fmt.Sprintf("event %q is not declared", e), "config", "considered_events", i)
		}
	}
}

func (v *validator) unique(field string, list []string) {
	seen := make(map[string]bool, len(list))
	for i, n := range list {
		if seen[n] {
			v.add(ErrDuplicateName, fmt.Sprintf("duplicate name %q", n), field, i)
		}
		seen[n] = true
	}
}

func (v *validator) literal(l ir.Literal, path ...any) {
	switch l.Kind() {
	case ir.LitInvalid:
		v.add(ErrInvalidLiteral, "literal must set exactly one kind", path...)
	case ir.LitUnit:
		if !l.Unit.Valid() {
			v.add(ErrInvalidLiteral, fmt.Sprintf("unknown time unit %q", l.Unit), path...)
		}
	case ir.LitTime:
		if !l.Time.Unit.Valid() {
			v.add(ErrInvalidLiteral, fmt.Sprintf("unknown time unit %q", l.Time.Unit), path...)
		}
		switch {
		case l.Time.Amount < 0:
			v.add(ErrInvalidLiteral, "time amount must not be negative", path...)
		case l.Time.Unit.Valid() && ir.CheckDuration(l.Time.Amount, l.Time.Unit) != nil:
			v.add(ErrInvalidLiteral, fmt.Sprintf("time %d%s is out of range", l.Time.Amount, l.Time.Unit), path...)
		}
	case ir.LitEvent:
		if !v.m.IsEvent(l.Event) {
			v.add(ErrUndefinedEvent, fmt.Sprintf("event %q is not declared", l.Event), path...)
		}
	case ir.LitChannel:
		if _, ok := v.m.Channel(l.Channel); !ok {
			v.add(ErrUndefinedChannel, fmt.Sprintf("channel %q is not declared", l.Channel), path...)
		}
	case ir.LitPort:
		if _, ok := v.m.Port(l.Port); !ok {
			v.add(ErrUndefinedChannel, fmt.Sprintf("port %q is not declared", l.Port), path...)
		}
	case ir.LitOneOf:
		for i, member := range l.OneOf {
			v.literal(member, append(slices.Clone(path), "one_of", i)...)
		}
	}
}

func (v *validator) function(name string, f ir.Function) {
	body := f.Body
	for i, in := range body {
		path := []any{"functions", name, "body", i}
		at := func(field string) []any { return append(slices.Clone(path), field) }

		switch in.Op {
		case ir.OpConst:
			if in.Lit == nil {
				v.add(ErrMissingInstrOperand, "const needs a lit", path...)
			} else {
				v.literal(*in.Lit, at("lit")...)
			}
		case ir.OpLoad, ir.OpStore:
			if in.Var == "" {
				v.add(ErrMissingInstrOperand, fmt.Sprintf("%s needs a var", in.Op), path...)
			}
		case ir.OpBinary:
			if !slices.Contains(ir.BinaryOperators, in.Operator) {
				v.add(ErrUnknownOperator, fmt.Sprintf("unknown binary operator %q", in.Operator), at("operator")...)
			}
		case ir.OpUnary:
			if !slices.Contains(ir.UnaryOperators, in.Operator) {
				v.add(ErrUnknownOperator, fmt.Sprintf("unknown unary operator %q", in.Operator), at("operator")...)
			}
		case ir.OpJump, ir.OpBranch:
			if in.Target < 0 || in.Target > len(body) {
				v.add(ErrTargetOutOfRange, fmt.Sprintf("target %d outside body of %d instructions", in.Target, len(body)), at("target")...)
			}
		case ir.OpCall:
			callee, ok := v.m.Function(in.Function)
			switch {
			case in.Function == "":
				v.add(ErrMissingInstrOperand, "call needs a function", path...)
			case !ok:
				v.add(ErrUndefinedFunction, fmt.Sprintf("function %q is not defined", in.Function), at("function")...)
			case len(callee.Params) != in.Argc:
				v.add(ErrArityMismatch, fmt.Sprintf("%s takes %d arguments, called with %d", in.Function, len(callee.Params), in.Argc), at("argc")...)
			}
		case ir.OpWait:
			v.argc(in, 0, 3, at("argc"))
		case ir.OpNotify:
			v.argc(in, 1, 3, at("argc"))
		case ir.OpRequestUpdate:
			v.argc(in, 0, 1, at("argc"))
		case ir.OpReturn, ir.OpPop, ir.OpDup, ir.OpThis, ir.OpStop:
		default:
			v.add(ErrUnknownOp, fmt.Sprintf("unknown op %q", in.Op), at("op")...)
		}
	}
	v.stack(name, body)
}

func (v *validator) argc(in ir.Instr, lo, hi int, path []any) {
	if in.Argc < lo || in.Argc > hi {
		v.add(ErrInvalidArgc, fmt.Sprintf("%s takes %d to %d arguments, got %d", in.Op, lo, hi, in.Argc), path...)
	}
}

// stack walks the entry block and reports the first underflow. Code after a
// jump, branch or return may be entered with operands from elsewhere, so it
// is not checked.
func (v *validator) stack(name string, body []ir.Instr) {
	depth := 0
	for i, in := range body {
		pops, pushes := in.StackEffect()
		if depth < pops {
			v.add(ErrStackUnderflow, fmt.Sprintf("%s pops %d operands, %d available", in, pops, depth), "functions", name, "body", i)
			return
		}
		depth += pushes - pops
		switch in.Op {
		case ir.OpJump, ir.OpBranch, ir.OpReturn:
			return
		}
	}
}

func names[T any](list []T, name func(T) string) []string {
	out := make([]string, len(list))
	for i, x := range list {
		out[i] = name(x)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
