// Package harness runs exploration scenarios for absim models.
//
// A scenario names a CUE model, the options to explore it with and
// assertions on the result. The harness explores the model into a fresh
// in-memory store and reads the trace back in recording order.
//
// # Scenario Format
//
//	name: ticker_trace
//	description: "What this scenario validates"
//	model: ../models/ticker.cue   # or source: with an inline model
//	options:
//	  stop_mode: after_delta
//	  considered_events: [ping]
//	  max_states: 100
//	  info: none
//	assertions:
//	  - type: state_count
//	    count: 3
//	  - type: label_order
//	    labels: [process:p, end_evaluation]
//	  - type: finding
//	    code: INSUFFICIENT_PRECISION
//
// # Assertion Types
//
//   - status: the run finished complete or truncated
//   - state_count, transition_count, terminal_count, finding_count
//   - label_count: transitions with a label
//   - label_order: labels first occur in the given order
//   - finding: a finding with a code, optionally on a thread
//   - state_line: some state summary line contains a substring
//
// # Deterministic Testing
//
// States are named s0, s1, ... in the order they were first reached, the
// store clock is a testutil.DeterministicClock and the run ID is fixed, so
// the trace of a scenario is stable across runs and worker counts and can be
// compared against a golden file with RunWithGolden.
package harness
