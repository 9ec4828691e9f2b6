package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/roach88/absim/internal/engine"
	"github.com/roach88/absim/internal/explore"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/model"
	"github.com/roach88/absim/internal/store"
	"github.com/roach88/absim/internal/testutil"
)

// Harness runs one scenario against a fresh in-memory store.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runIDs *explore.FixedGenerator
	logger *logrus.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and run ID, so the recorded trace is reproducible.
//
// Execution flow:
// 1. Load and validate the model
// 2. Build the engine from the scenario options
// 3. Explore from the initial state, recording into the store
// 4. Read the trace back from the store
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return RunWithLogger(scenario, logger)
}

// RunWithLogger is Run with engine and exploration logs sent to logger.
func RunWithLogger(scenario *Scenario, logger *logrus.Logger) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var ids []string
	if scenario.RunID != "" {
		ids = append(ids, scenario.RunID)
	}
	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runIDs: explore.NewFixedGenerator(ids...),
		logger: logger,
	}
	st.WithSequencer(h.clock)

	m, err := loadModel(scenario)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var result *Result
	if scenario.Options.Info == InfoNone {
		result, err = execute[info.None](ctx, h, scenario, m, info.NoneHandler{})
	} else {
		result, err = execute[info.Accesses](ctx, h, scenario, m, info.AccessHandler{})
	}
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func loadModel(s *Scenario) (*ir.Model, error) {
	var (
		res  *model.Result
		errs []error
	)
	if s.Source != "" {
		res, errs = model.LoadSource(s.Name+".cue", s.Source, model.LoadModeCollectAll)
	} else {
		res, errs = model.Load(s.Model, model.LoadModeCollectAll)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load model: %w", errors.Join(errs...))
	}
	return res.Model, nil
}

func engineOptions(o Options, logger *logrus.Logger) []engine.EngineOption {
	opts := []engine.EngineOption{engine.WithLogger(logger)}
	if o.StopMode != "" {
		opts = append(opts, engine.WithStopMode(ir.StopMode(o.StopMode)))
	}
	if o.ConsideredEvents != nil {
		opts = append(opts, engine.WithConsideredEvents(*o.ConsideredEvents))
	}
	if o.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(o.MaxSteps))
	}
	if o.DomainLimit > 0 {
		opts = append(opts, engine.WithDomainLimit(o.DomainLimit))
	}
	return opts
}

func execute[I info.Info[I]](ctx context.Context, h *Harness, s *Scenario, m *ir.Model, handler info.Handler[I]) (*Result, error) {
	eng := engine.New[I](m, handler, engineOptions(s.Options, h.logger)...)
	start, err := eng.InitialState()
	if err != nil {
		return nil, fmt.Errorf("failed to build initial state: %w", err)
	}

	hash, err := ir.ModelHash(m)
	if err != nil {
		return nil, fmt.Errorf("failed to hash model: %w", err)
	}
	run, err := h.store.BeginRun(ctx, store.Run{
		ID:            h.runIDs.Generate(),
		ModelName:     m.Name,
		ModelHash:     hash,
		EngineVersion: "test",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	x := explore.New[I](eng, store.NewRecorder[I](h.store, run.ID), explore.Options{
		Workers:   s.Options.Workers,
		MaxStates: s.Options.MaxStates,
		MaxDepth:  s.Options.MaxDepth,
		RunID:     run.ID,
		Logger:    h.logger,
	})
	sum, err := x.Run(ctx, start)
	if err != nil {
		_ = h.store.FinishRun(ctx, run.ID, store.StatusFailed, sum.States)
		return nil, fmt.Errorf("exploration failed: %w", err)
	}
	if err := h.store.FinishRun(ctx, run.ID, sum.Status, sum.States); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Model = m.Name
	result.Status = sum.Status
	result.States = sum.States
	result.Transitions = sum.Transitions
	result.Terminal = sum.Terminal
	result.Trace, err = h.readTrace(ctx, run.ID, s.Options.Summaries || needsSummaries(s.Assertions))
	if err != nil {
		return nil, err
	}

	h.logger.WithFields(logrus.Fields{
		"scenario": s.Name,
		"run_id":   run.ID,
		"events":   len(result.Trace),
	}).Info("scenario explored")
	return result, nil
}

func needsSummaries(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertStateLine {
			return true
		}
	}
	return false
}

type seqEvent struct {
	seq int64
	ev  TraceEvent
}

// readTrace rebuilds the recording order from store sequence numbers and
// renumbers the events from 1.
func (h *Harness) readTrace(ctx context.Context, runID string, summaries bool) ([]TraceEvent, error) {
	states, err := h.store.ReadStates(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read states: %w", err)
	}
	transitions, err := h.store.ReadTransitions(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transitions: %w", err)
	}
	findings, err := h.store.ReadFindings(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].Seq < states[j].Seq })
	alias := make(map[string]string, len(states))
	var events []seqEvent
	for i, st := range states {
		alias[st.Key] = fmt.Sprintf("s%d", i)
		ev := TraceEvent{Type: EventState, State: alias[st.Key]}
		if summaries {
			ev.Summary = st.Summary
		}
		events = append(events, seqEvent{st.Seq, ev})
	}
	for _, tr := range transitions {
		ev := TraceEvent{Type: EventTransition, From: alias[tr.From], To: alias[tr.To], Label: tr.Label}
		if tr.Info != "{}" {
			ev.Info = tr.Info
		}
		events = append(events, seqEvent{tr.Seq, ev})
	}
	for _, f := range findings {
		events = append(events, seqEvent{f.Seq, TraceEvent{
			Type:    EventFinding,
			State:   alias[f.StateKey],
			Thread:  f.Thread,
			Code:    f.Code,
			Message: f.Message,
		}})
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].seq < events[j].seq })
	trace := make([]TraceEvent, len(events))
	for i, e := range events {
		e.ev.Seq = i + 1
		trace[i] = e.ev
	}
	return trace, nil
}
