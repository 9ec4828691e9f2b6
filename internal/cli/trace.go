package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/absim/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // defaults to the latest run
}

// TraceStep is one transition on a path, with the state it leads to.
type TraceStep struct {
	Seq     int      `json:"seq"`
	Label   string   `json:"label"`
	From    string   `json:"from"`
	To      string   `json:"to"`
	Summary []string `json:"summary"`
}

// TracePath is a shortest path from the initial state to a target state.
type TracePath struct {
	Target   string          `json:"target"`
	Initial  []string        `json:"initial"`
	Steps    []TraceStep     `json:"steps"`
	Findings []FindingOutput `json:"findings,omitempty"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	RunID string      `json:"run_id"`
	Model string      `json:"model"`
	Paths []TracePath `json:"paths"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [state-key-prefix]",
		Short: "Show how a recorded state is reached",
		Long: `Show a shortest sequence of big steps from the initial state to a state
recorded by explore --db. The state is named by a unique prefix of its key.

Without a state, trace every state that has a finding.

Example:
  absim trace --db ./runs.db 3fa2c1
  absim trace --db ./runs.db --run 0192... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID (default: latest run)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := contextOf(cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := selectRun(cmd, st, opts.RunID)
	if err != nil {
		return err
	}

	states, err := st.ReadStates(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read states", err)
	}
	summaries := make(map[string][]string, len(states))
	for _, s := range states {
		summaries[s.Key] = s.Summary
	}
	findings, err := st.ReadFindings(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read findings", err)
	}
	byState := make(map[string][]FindingOutput)
	var targets []string
	for _, f := range findings {
		if _, ok := byState[f.StateKey]; !ok {
			targets = append(targets, f.StateKey)
		}
		byState[f.StateKey] = append(byState[f.StateKey], FindingOutput{
			State: f.StateKey, Thread: f.Thread, Code: f.Code, Message: f.Message,
		})
	}

	if len(args) == 1 {
		target, err := st.ResolveState(ctx, run.ID, args[0])
		switch {
		case errors.Is(err, store.ErrNotFound):
			return WrapExitError(ExitFailure, "no such state", err)
		case errors.Is(err, store.ErrAmbiguous):
			return WrapExitError(ExitFailure, "state prefix is ambiguous", err)
		case err != nil:
			return WrapExitError(ExitCommandError, "failed to resolve state", err)
		}
		targets = []string{target.Key}
	}

	result := TraceResult{RunID: run.ID, Model: run.ModelName, Paths: []TracePath{}}
	for _, key := range targets {
		edges, err := st.Trace(ctx, run.ID, key)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to trace state", err)
		}
		path := TracePath{
			Target:   key,
			Initial:  summaries[states[0].Key],
			Steps:    make([]TraceStep, len(edges)),
			Findings: byState[key],
		}
		for i, e := range edges {
			path.Steps[i] = TraceStep{Seq: i + 1, Label: e.Label, From: e.From, To: e.To, Summary: summaries[e.To]}
		}
		result.Paths = append(result.Paths, path)
	}

	return formatter.Success(result, func(w io.Writer) { writeTrace(w, result) })
}

// selectRun returns the named run, or the latest one.
func selectRun(cmd *cobra.Command, st *store.Store, id string) (store.Run, error) {
	ctx := contextOf(cmd)
	if id != "" {
		run, err := st.ReadRun(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return store.Run{}, WrapExitError(ExitCommandError, "run not found", err)
		}
		if err != nil {
			return store.Run{}, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		return run, nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return store.Run{}, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if len(runs) == 0 {
		return store.Run{}, NewExitError(ExitCommandError, "database has no runs")
	}
	return runs[len(runs)-1], nil
}

func writeTrace(w io.Writer, r TraceResult) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Model)
	if len(r.Paths) == 0 {
		fmt.Fprintln(w, "No findings to trace.")
		return
	}
	for _, p := range r.Paths {
		fmt.Fprintf(w, "\nPath to %s (%d steps)\n", shortKey(p.Target), len(p.Steps))
		fmt.Fprintln(w, "  initial")
		for _, line := range p.Initial {
			fmt.Fprintf(w, "      %s\n", line)
		}
		for _, s := range p.Steps {
			fmt.Fprintf(w, "  [%d] %s → %s\n", s.Seq, s.Label, shortKey(s.To))
			for _, line := range s.Summary {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
		for _, f := range p.Findings {
			fmt.Fprintf(w, "  ✗ %s [%s] %s\n", f.Thread, f.Code, f.Message)
		}
	}
}
