package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/absim/internal/engine"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/model"
)

// EngineFlags configure the engine for commands that evaluate a model.
// Unset flags keep the model's config block and the engine defaults.
type EngineFlags struct {
	StopMode         string
	ConsideredEvents []string
	MaxSteps         int
	DomainLimit      int
	Info             string // "accesses" | "none"

	considerSet bool
}

func addEngineFlags(cmd *cobra.Command, f *EngineFlags) {
	cmd.Flags().StringVar(&f.StopMode, "stop-mode", "", "stop mode override (immediate|after_delta)")
	cmd.Flags().StringSliceVar(&f.ConsideredEvents, "considered-events", nil, "events the scheduler considers (overrides the model)")
	cmd.Flags().IntVar(&f.MaxSteps, "max-steps", 0, "small-step quota per big step (0 = engine default)")
	cmd.Flags().IntVar(&f.DomainLimit, "domain-limit", 0, "largest finite value set before widening (0 = default)")
	cmd.Flags().StringVar(&f.Info, "info", "accesses", "transition info (accesses|none)")
}

// resolve records which flags were set and checks their values.
func (f *EngineFlags) resolve(cmd *cobra.Command) error {
	f.considerSet = cmd.Flags().Changed("considered-events")
	switch ir.StopMode(f.StopMode) {
	case "", ir.StopImmediate, ir.StopAfterDelta:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid stop mode %q", f.StopMode))
	}
	switch f.Info {
	case "accesses", "none":
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid info kind %q", f.Info))
	}
	if f.MaxSteps < 0 || f.DomainLimit < 0 {
		return NewExitError(ExitCommandError, "--max-steps and --domain-limit must be non-negative")
	}
	return nil
}

func (f *EngineFlags) options(logger *logrus.Logger) []engine.EngineOption {
	opts := []engine.EngineOption{engine.WithLogger(logger)}
	if f.StopMode != "" {
		opts = append(opts, engine.WithStopMode(ir.StopMode(f.StopMode)))
	}
	if f.considerSet {
		opts = append(opts, engine.WithConsideredEvents(f.ConsideredEvents))
	}
	if f.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(f.MaxSteps))
	}
	if f.DomainLimit > 0 {
		opts = append(opts, engine.WithDomainLimit(f.DomainLimit))
	}
	return opts
}

// canonical renders the flags for the run record.
func (f *EngineFlags) canonical(extra map[string]any) map[string]any {
	m := map[string]any{"info": f.Info}
	if f.StopMode != "" {
		m["stop_mode"] = f.StopMode
	}
	if f.considerSet {
		events := make([]any, len(f.ConsideredEvents))
		for i, e := range f.ConsideredEvents {
			events[i] = e
		}
		m["considered_events"] = events
	}
	if f.MaxSteps > 0 {
		m["max_steps"] = f.MaxSteps
	}
	if f.DomainLimit > 0 {
		m["domain_limit"] = f.DomainLimit
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// loadValidModel loads a model and fails on the first validation error.
func loadValidModel(path string) (*model.Result, error) {
	res, errs := model.Load(path, model.LoadModeFailFast)
	if len(errs) > 0 {
		le := firstLoadError(errs)
		if res == nil {
			return nil, WrapExitError(loadExitCode(le), "failed to load model", le)
		}
		return nil, WrapExitError(ExitFailure, "invalid model (run validate for all errors)", le)
	}
	return res, nil
}
