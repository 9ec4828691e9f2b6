package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/absim/internal/engine"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/model"
	"github.com/roach88/absim/internal/state"
)

// StepOptions holds flags for the step command.
type StepOptions struct {
	*RootOptions
	Engine  EngineFlags
	Process string
}

// StateOutput is a state in command output.
type StateOutput struct {
	Key     string          `json:"key"`
	Summary []string        `json:"summary"`
	Info    json.RawMessage `json:"info,omitempty"`
}

// StepOutput is one big step from the initial state.
type StepOutput struct {
	Label      string        `json:"label"`
	Code       string        `json:"code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Successors []StateOutput `json:"successors"`
}

// StepResult is the output of the step command.
type StepResult struct {
	Model   string       `json:"model"`
	Initial StateOutput  `json:"initial"`
	Steps   []StepOutput `json:"steps"`
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "step <model>",
		Short: "Run the big steps available in the initial state",
		Long: `Run every big step available in the initial state of a model and print
the successor states.

With --process only that process is stepped, even when it is not ready.

Example:
  absim step ./models/pingpong.cue
  absim step --process pinger --info none ./models/pingpong.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Engine.resolve(cmd); err != nil {
				return err
			}
			return runStep(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Process, "process", "", "step only this process")
	addEngineFlags(cmd, &opts.Engine)

	return cmd
}

func runStep(opts *StepOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, err := loadValidModel(path)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var result StepResult
	if opts.Engine.Info == "none" {
		result, err = stepWith[info.None](ctx, opts, res, info.NoneHandler{})
	} else {
		result, err = stepWith[info.Accesses](ctx, opts, res, info.AccessHandler{})
	}
	if err != nil {
		return err
	}
	return formatter.Success(result, func(w io.Writer) { writeStep(w, result) })
}

func stepWith[I info.Info[I]](ctx context.Context, opts *StepOptions, res *model.Result, handler info.Handler[I]) (StepResult, error) {
	eng := engine.New[I](res.Model, handler, opts.Engine.options(logrus.StandardLogger())...)
	start, err := eng.InitialState()
	if err != nil {
		return StepResult{}, WrapExitError(ExitFailure, "failed to build initial state", err)
	}

	var steps []engine.Step[I]
	if opts.Process != "" {
		if _, ok := res.Model.Process(opts.Process); !ok {
			return StepResult{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown process %q", opts.Process))
		}
		ts, err := eng.MakeStep(ctx, start, opts.Process)
		steps = []engine.Step[I]{{Label: state.ProcessThread(opts.Process).String(), Transitions: ts, Err: err}}
	} else {
		steps, err = eng.Successors(ctx, start, nil)
		if err != nil {
			return StepResult{}, WrapExitError(ExitFailure, "step failed", err)
		}
	}

	result := StepResult{
		Model:   res.Model.Name,
		Initial: StateOutput{Key: start.Key(), Summary: start.Describe()},
		Steps:   make([]StepOutput, len(steps)),
	}
	for i, st := range steps {
		out := StepOutput{Label: st.Label, Successors: []StateOutput{}}
		if st.Err != nil {
			out.Error = st.Err.Error()
			var re *engine.RuntimeError
			if errors.As(st.Err, &re) {
				out.Code = string(re.Code)
			}
		}
		for _, tr := range st.Transitions {
			so := StateOutput{Key: tr.State.Key(), Summary: tr.State.Describe()}
			if inf := tr.Info.Canonical(); len(inf) > 0 {
				data, err := ir.MarshalCanonical(inf)
				if err != nil {
					return StepResult{}, fmt.Errorf("encode info: %w", err)
				}
				so.Info = data
			}
			out.Successors = append(out.Successors, so)
		}
		result.Steps[i] = out
	}
	return result, nil
}

func writeStep(w io.Writer, r StepResult) {
	fmt.Fprintf(w, "Initial state %s of %s\n", shortKey(r.Initial.Key), r.Model)
	for _, line := range r.Initial.Summary {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if len(r.Steps) == 0 {
		fmt.Fprintln(w, "\nNo steps available.")
		return
	}
	for _, st := range r.Steps {
		fmt.Fprintf(w, "\n%s\n", st.Label)
		if st.Error != "" {
			fmt.Fprintf(w, "  ✗ %s\n", st.Error)
			continue
		}
		for _, s := range st.Successors {
			fmt.Fprintf(w, "  → %s\n", shortKey(s.Key))
			for _, line := range s.Summary {
				fmt.Fprintf(w, "      %s\n", line)
			}
			if len(s.Info) > 0 {
				fmt.Fprintf(w, "      info %s\n", s.Info)
			}
		}
	}
}
