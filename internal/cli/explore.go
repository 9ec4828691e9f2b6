package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/absim/internal/engine"
	"github.com/roach88/absim/internal/explore"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/model"
	"github.com/roach88/absim/internal/record"
	"github.com/roach88/absim/internal/store"
)

// ExploreOptions holds flags for the explore command.
type ExploreOptions struct {
	*RootOptions
	Engine    EngineFlags
	Database  string
	Workers   int
	MaxStates int
	MaxDepth  int
	RunID     string

	// IDGenerator overrides run ID generation (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator explore.IDGenerator
}

// FindingOutput is a finding in command output.
type FindingOutput struct {
	State   string `json:"state"`
	Thread  string `json:"thread"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExploreResult is the output of the explore command.
type ExploreResult struct {
	RunID       string          `json:"run_id"`
	Model       string          `json:"model"`
	Status      string          `json:"status"`
	States      int             `json:"states"`
	Transitions int             `json:"transitions"`
	Depth       int             `json:"depth"`
	Terminal    int             `json:"terminal"`
	Findings    []FindingOutput `json:"findings"`
	Database    string          `json:"database,omitempty"`
}

// NewExploreCommand creates the explore command.
func NewExploreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExploreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explore <model>",
		Short: "Explore every reachable state of a model",
		Long: `Explore the state space of a model breadth first from its initial state.

Every big step a process can take, and the end of each evaluation phase, is a
transition. Steps that cannot be evaluated precisely are reported as findings.
With --db the states, transitions and findings are recorded in SQLite and can
be inspected later with trace.

Example:
  absim explore ./models/pingpong.cue
  absim explore --db ./runs.db --workers 8 --max-states 100000 ./models`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Engine.resolve(cmd); err != nil {
				return err
			}
			return runExplore(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel workers per level (0 = GOMAXPROCS)")
	cmd.Flags().IntVar(&opts.MaxStates, "max-states", 0, "stop after this many states (0 = no limit)")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "stop after this many levels (0 = no limit)")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run ID (default: generated UUIDv7)")
	addEngineFlags(cmd, &opts.Engine)

	return cmd
}

func runExplore(opts *ExploreOptions, path string, cmd *cobra.Command) error {
	if opts.Workers < 0 || opts.MaxStates < 0 || opts.MaxDepth < 0 {
		return NewExitError(ExitCommandError, "--workers, --max-states and --max-depth must be non-negative")
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	res, err := loadValidModel(path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded model %s from %d file(s)", res.Model.Name, len(res.Files))

	runID := opts.RunID
	if runID == "" {
		gen := opts.IDGenerator
		if gen == nil {
			gen = explore.UUIDv7Generator{}
		}
		runID = gen.Generate()
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logrus.WithError(closeErr).Error("error closing database")
			}
		}()
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var result ExploreResult
	if opts.Engine.Info == "none" {
		result, err = exploreWith[info.None](ctx, opts, res, st, runID, info.NoneHandler{})
	} else {
		result, err = exploreWith[info.Accesses](ctx, opts, res, st, runID, info.AccessHandler{})
	}
	if err != nil {
		return err
	}
	return formatter.Success(result, func(w io.Writer) { writeExplore(w, result) })
}

// signalContext cancels on SIGINT or SIGTERM. The command context is used
// when set (for testing).
func signalContext(parent context.Context) (context.Context, func()) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logrus.WithField("signal", sig.String()).Info("received signal, stopping exploration")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

func exploreWith[I info.Info[I]](ctx context.Context, opts *ExploreOptions, res *model.Result, st *store.Store, runID string, handler info.Handler[I]) (ExploreResult, error) {
	logger := logrus.StandardLogger()
	eng := engine.New[I](res.Model, handler, opts.Engine.options(logger)...)
	start, err := eng.InitialState()
	if err != nil {
		return ExploreResult{}, WrapExitError(ExitFailure, "failed to build initial state", err)
	}

	var rec record.Record[I] = record.NewGraph[I]()
	if st != nil {
		optsJSON, err := ir.MarshalCanonical(opts.Engine.canonical(map[string]any{
			"max_states": opts.MaxStates,
			"max_depth":  opts.MaxDepth,
		}))
		if err != nil {
			return ExploreResult{}, WrapExitError(ExitCommandError, "failed to encode options", err)
		}
		if _, err := st.BeginRun(ctx, store.Run{
			ID:        runID,
			ModelName: res.Model.Name,
			ModelHash: res.Hash,
			Options:   string(optsJSON),
		}); err != nil {
			return ExploreResult{}, WrapExitError(ExitCommandError, "failed to record run", err)
		}
		rec = store.NewRecorder[I](st, runID)
	}

	x := explore.New[I](eng, rec, explore.Options{
		Workers:   opts.Workers,
		MaxStates: opts.MaxStates,
		MaxDepth:  opts.MaxDepth,
		RunID:     runID,
		Logger:    logger,
	})
	sum, runErr := x.Run(ctx, start)

	if st != nil {
		status := sum.Status
		switch {
		case engine.IsAbortError(runErr):
			status = store.StatusAborted
		case runErr != nil:
			status = store.StatusFailed
		}
		// The run context may be cancelled already.
		if err := st.FinishRun(context.Background(), runID, status, sum.States); err != nil {
			return ExploreResult{}, WrapExitError(ExitCommandError, "failed to finish run", err)
		}
	}
	if runErr != nil {
		return ExploreResult{}, WrapExitError(ExitFailure, "exploration failed", runErr)
	}

	result := ExploreResult{
		RunID:       sum.RunID,
		Model:       res.Model.Name,
		Status:      sum.Status,
		States:      sum.States,
		Transitions: sum.Transitions,
		Depth:       sum.Depth,
		Terminal:    sum.Terminal,
		Findings:    make([]FindingOutput, len(sum.Findings)),
		Database:    opts.Database,
	}
	for i, f := range sum.Findings {
		result.Findings[i] = FindingOutput{State: f.StateKey, Thread: f.Thread, Code: f.Code, Message: f.Message}
	}
	return result, nil
}

func writeExplore(w io.Writer, r ExploreResult) {
	fmt.Fprintf(w, "Explored %s (run %s): %s\n", r.Model, r.RunID, r.Status)
	fmt.Fprintf(w, "  States:      %d\n", r.States)
	fmt.Fprintf(w, "  Transitions: %d\n", r.Transitions)
	fmt.Fprintf(w, "  Depth:       %d\n", r.Depth)
	fmt.Fprintf(w, "  Terminal:    %d\n", r.Terminal)
	fmt.Fprintf(w, "  Findings:    %d\n", len(r.Findings))
	for _, f := range r.Findings {
		fmt.Fprintf(w, "    %s %s [%s] %s\n", shortKey(f.State), f.Thread, f.Code, f.Message)
	}
	if r.Database != "" {
		fmt.Fprintf(w, "Recorded in %s\n", r.Database)
	}
}

// shortKey abbreviates a state key for text output.
func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
