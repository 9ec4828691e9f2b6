package harness

// Trace event types.
const (
	EventState      = "state"
	EventTransition = "transition"
	EventFinding    = "finding"
)

// TraceEvent is one recorded step of an exploration, in recording order.
// States are named by alias ("s0", "s1", ...) in the order they were first
// reached, so traces do not depend on state hashes.
type TraceEvent struct {
	Type    string   `json:"type"`
	Seq     int      `json:"seq"`
	State   string   `json:"state,omitempty"`
	Summary []string `json:"summary,omitempty"`
	From    string   `json:"from,omitempty"`
	To      string   `json:"to,omitempty"`
	Label   string   `json:"label,omitempty"`
	Info    string   `json:"info,omitempty"` // canonical JSON, omitted when empty
	Thread  string   `json:"thread,omitempty"`
	Code    string   `json:"code,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	Model       string `json:"model"`
	Status      string `json:"status"`
	States      int    `json:"states"`
	Transitions int    `json:"transitions"`
	Terminal    int    `json:"terminal"`

	// Trace holds states, transitions and findings in recording order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the trace events of one type.
func (r *Result) Events(typ string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
