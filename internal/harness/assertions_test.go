package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *Result {
	r := NewResult()
	r.Status = "complete"
	r.States = 2
	r.Transitions = 3
	r.Terminal = 1
	r.Trace = []TraceEvent{
		{Type: EventState, Seq: 1, State: "s0", Summary: []string{"process p: none"}},
		{Type: EventState, Seq: 2, State: "s1", Summary: []string{"stopped", "process p: terminated"}},
		{Type: EventTransition, Seq: 3, From: "s0", To: "s1", Label: "process:p"},
		{Type: EventTransition, Seq: 4, From: "s1", To: "s1", Label: "end_evaluation"},
		{Type: EventTransition, Seq: 5, From: "s1", To: "s0", Label: "process:p"},
		{Type: EventFinding, Seq: 6, State: "s1", Thread: "update:sig", Code: "QUOTA_EXCEEDED"},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertStatus, Status: "complete"},
		{Type: AssertStateCount, Count: 2},
		{Type: AssertTransitionCount, Count: 3},
		{Type: AssertTerminalCount, Count: 1},
		{Type: AssertFindingCount, Count: 1},
		{Type: AssertLabelCount, Label: "process:p", Count: 2},
		{Type: AssertLabelCount, Label: "update", Count: 0},
		{Type: AssertLabelOrder, Labels: []string{"process:p", "end_evaluation"}},
		{Type: AssertFinding, Code: "QUOTA_EXCEEDED"},
		{Type: AssertFinding, Code: "QUOTA_EXCEEDED", Thread: "update:sig"},
		{Type: AssertStateLine, Line: "terminated"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Fail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"status", Assertion{Type: AssertStatus, Status: "truncated"}, "Expected: status truncated"},
		{"count", Assertion{Type: AssertStateCount, Count: 5}, "Actual: 2 states"},
		{"label count", Assertion{Type: AssertLabelCount, Label: "end_evaluation", Count: 2}, "Actual: 1 end_evaluation transitions"},
		{"order", Assertion{Type: AssertLabelOrder, Labels: []string{"end_evaluation", "process:p"}}, "end_evaluation (seq 4) should be before process:p (seq 3)"},
		{"order missing", Assertion{Type: AssertLabelOrder, Labels: []string{"process:q"}}, "missing label: process:q"},
		{"finding thread", Assertion{Type: AssertFinding, Code: "QUOTA_EXCEEDED", Thread: "process:p"}, "not found in trace"},
		{"state line", Assertion{Type: AssertStateLine, Line: "pending"}, "no such state"},
		{"unknown", Assertion{Type: "reachable"}, "unknown assertion type: reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
			assert.Contains(t, errs[0], "assertions[0]")
		})
	}
}

func TestAssertionError_ListsTransitions(t *testing.T) {
	err := &AssertionError{
		Type:     AssertStateCount,
		Expected: "3 states",
		Actual:   "2 states",
		Trace:    sampleResult().Trace,
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: state_count")
	assert.Contains(t, msg, "[3] s0 -> s1 process:p")
	assert.Contains(t, msg, "[6] s1 QUOTA_EXCEEDED update:sig")
	assert.NotContains(t, msg, "[1]")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
