package ir

import "fmt"

// Op is a stack-machine opcode.
type Op string

const (
	// OpConst pushes Lit.
	OpConst Op = "const"
	// OpLoad pushes the value of Var (frame local first, then global).
	OpLoad Op = "load"
	// OpStore pops a value into Var. An existing frame local is written
	// first, then a model global; any other name creates a frame local.
	OpStore Op = "store"
	// OpBinary pops right then left and pushes "left Operator right".
	OpBinary Op = "binary"
	// OpUnary pops one operand and pushes "Operator operand".
	OpUnary Op = "unary"
	// OpJump continues at Target.
	OpJump Op = "jump"
	// OpBranch pops a condition and continues at Target when it is false.
	OpBranch Op = "branch"
	// OpCall pops Argc arguments and enters Function. The callee's return
	// value is pushed onto the caller's operand stack.
	OpCall Op = "call"
	// OpReturn leaves the current function. With Value set the top of stack is
	// the return value; otherwise the function returns null.
	OpReturn Op = "return"
	OpPop    Op = "pop"
	OpDup    Op = "dup"
	// OpThis pushes the frame receiver.
	OpThis Op = "this"
	// OpWait pops Argc arguments and suspends the process.
	OpWait Op = "wait"
	// OpNotify pops Argc arguments: (event), (event, delay) or
	// (event, amount, unit).
	OpNotify Op = "notify"
	// OpStop stops the simulation.
	OpStop Op = "stop"
	// OpRequestUpdate requests an update of the receiver (Argc 0) or of the
	// popped channel or port (Argc 1).
	OpRequestUpdate Op = "request_update"
)

// Instr is one instruction of a function body.
type Instr struct {
	Op       Op       `json:"op"`
	Lit      *Literal `json:"lit,omitempty"`
	Var      string   `json:"var,omitempty"`
	Operator string   `json:"operator,omitempty"`
	Target   int      `json:"target,omitempty"`
	Function string   `json:"function,omitempty"`
	Argc     int      `json:"argc,omitempty"`
	Value    bool     `json:"value,omitempty"`
}

func (in Instr) String() string {
	switch in.Op {
	case OpConst:
		if in.Lit != nil {
			return fmt.Sprintf("const %s", in.Lit.Kind())
		}
	case OpLoad, OpStore:
		return fmt.Sprintf("%s %s", in.Op, in.Var)
	case OpBinary, OpUnary:
		return fmt.Sprintf("%s %s", in.Op, in.Operator)
	case OpJump, OpBranch:
		return fmt.Sprintf("%s @%d", in.Op, in.Target)
	case OpCall:
		return fmt.Sprintf("call %s/%d", in.Function, in.Argc)
	case OpWait, OpNotify, OpRequestUpdate:
		return fmt.Sprintf("%s/%d", in.Op, in.Argc)
	}
	return string(in.Op)
}

// Function is a named body with positional parameters. Falling off the end of
// Body behaves like a return without value.
type Function struct {
	Params []string `json:"params,omitempty"`
	Body   []Instr  `json:"body"`
}

// Binary operators understood by OpBinary.
var BinaryOperators = []string{
	"+", "-", "*", "/", "%",
	"==", "!=", "<", "<=", ">", ">=",
	"&&", "||",
	"|", "&",
}

// Unary operators understood by OpUnary.
var UnaryOperators = []string{"!", "-"}

// StackEffect returns how many operands the instruction pops and pushes.
// Used by validation to reject bodies that underflow on a straight-line path.
func (in Instr) StackEffect() (pops, pushes int) {
	switch in.Op {
	case OpConst, OpLoad, OpThis:
		return 0, 1
	case OpStore, OpPop, OpBranch:
		return 1, 0
	case OpBinary:
		return 2, 1
	case OpUnary:
		return 1, 1
	case OpDup:
		return 1, 2
	case OpCall:
		return in.Argc, 1
	case OpReturn:
		if in.Value {
			return 1, 0
		}
		return 0, 0
	case OpWait, OpNotify, OpRequestUpdate:
		return in.Argc, 0
	}
	return 0, 0
}
