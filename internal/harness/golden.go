package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/absim/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Model        string       `json:"model"`
	Status       string       `json:"status"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any, since
// ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"seq":  ev.Seq,
		}
		for k, v := range map[string]string{
			"state":   ev.State,
			"from":    ev.From,
			"to":      ev.To,
			"label":   ev.Label,
			"info":    ev.Info,
			"thread":  ev.Thread,
			"code":    ev.Code,
			"message": ev.Message,
		} {
			if v != "" {
				m[k] = v
			}
		}
		if len(ev.Summary) > 0 {
			m["summary"] = ev.Summary
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"model":         s.Model,
		"status":        s.Status,
		"trace":         trace,
	}
}

func (s *TraceSnapshot) marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// MarshalTrace renders the trace of a result as the canonical JSON stored in
// golden files.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Model:        result.Model,
		Status:       result.Status,
		Trace:        result.Trace,
	}
	return snapshot.marshal()
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A trace mismatch
// fails the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the trace of a result already computed against a
// golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
