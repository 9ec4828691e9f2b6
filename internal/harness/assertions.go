package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the transitions of the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		switch ev.Type {
		case EventTransition:
			fmt.Fprintf(&buf, "  [%d] %s -> %s %s\n", ev.Seq, ev.From, ev.To, ev.Label)
		case EventFinding:
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Seq, ev.State, ev.Code, ev.Thread)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(r, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertStatus:
		if r.Status != a.Status {
			return failure(r, a.Type, "status "+a.Status, "status "+r.Status)
		}
	case AssertStateCount:
		return assertCount(r, a, r.States, "states")
	case AssertTransitionCount:
		return assertCount(r, a, r.Transitions, "transitions")
	case AssertTerminalCount:
		return assertCount(r, a, r.Terminal, "terminal states")
	case AssertFindingCount:
		return assertCount(r, a, len(r.Events(EventFinding)), "findings")
	case AssertLabelCount:
		n := 0
		for _, ev := range r.Events(EventTransition) {
			if ev.Label == a.Label {
				n++
			}
		}
		return assertCount(r, a, n, a.Label+" transitions")
	case AssertLabelOrder:
		return assertLabelOrder(r, a)
	case AssertFinding:
		for _, ev := range r.Events(EventFinding) {
			if ev.Code == a.Code && (a.Thread == "" || ev.Thread == a.Thread) {
				return nil
			}
		}
		return failure(r, a.Type, fmt.Sprintf("finding %s on %q", a.Code, a.Thread), "not found in trace")
	case AssertStateLine:
		return assertStateLine(r, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func failure(r *Result, typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Trace: r.Trace}
}

func assertCount(r *Result, a Assertion, got int, what string) error {
	if got != a.Count {
		return failure(r, a.Type, fmt.Sprintf("%d %s", a.Count, what), fmt.Sprintf("%d %s", got, what))
	}
	return nil
}

// assertLabelOrder checks that the labels first occur in the given order.
// Other transitions may come in between.
func assertLabelOrder(r *Result, a Assertion) error {
	first := make(map[string]int)
	for _, ev := range r.Events(EventTransition) {
		if _, ok := first[ev.Label]; !ok {
			first[ev.Label] = ev.Seq
		}
	}

	for _, label := range a.Labels {
		if _, ok := first[label]; !ok {
			return failure(r, a.Type,
				fmt.Sprintf("all labels present: %v", a.Labels),
				fmt.Sprintf("missing label: %s", label))
		}
	}
	for i := 1; i < len(a.Labels); i++ {
		prev, curr := a.Labels[i-1], a.Labels[i]
		if first[prev] >= first[curr] {
			return failure(r, a.Type,
				fmt.Sprintf("labels in order: %v", a.Labels),
				fmt.Sprintf("%s (seq %d) should be before %s (seq %d)", prev, first[prev], curr, first[curr]))
		}
	}
	return nil
}

// assertStateLine needs summaries in the trace; Run records them when the
// scenario asks for a state_line assertion.
func assertStateLine(r *Result, a Assertion) error {
	for _, ev := range r.Events(EventState) {
		for _, line := range ev.Summary {
			if strings.Contains(line, a.Line) {
				return nil
			}
		}
	}
	return failure(r, a.Type, fmt.Sprintf("a state with a line containing %q", a.Line), "no such state")
}
