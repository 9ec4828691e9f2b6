package engine

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/blocker"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
	"github.com/roach88/absim/internal/value"
)

// DefaultMaxSteps is the default maximum number of small steps per big step.
// This prevents runaway evaluation from consuming unbounded resources.
const DefaultMaxSteps = 100000

// Transition is one successor of a big step with the information composed
// along every path that reached it.
type Transition[I info.Info[I]] struct {
	State *state.Snapshot
	Info  I
}

// Engine computes big steps of abstract simulation for one model.
//
// The engine holds no mutable state after construction and is safe to share
// across goroutines; each call works on builders it owns exclusively and
// returns frozen snapshots. The only per-goroutine state is a ReadyCache,
// which callers keep per worker.
//
// Two families of operations:
//   - Process engine: MakeStep runs one ready process until it blocks.
//   - Scheduler engine: ReadySet, EndEvaluation (update phase, then delta
//     cycle, time advance or quiescence), NotifyEvents, StopSimulation.
type Engine[I info.Info[I]] struct {
	model      *ir.Model
	handler    info.Handler[I]
	domain     value.Domain
	stopMode   ir.StopMode
	considered map[string]bool // nil: every event is considered
	maxSteps   int
	log        *logrus.Entry
}

// config collects option values before the generic engine is built.
type config struct {
	stopMode         ir.StopMode
	consideredEvents []string
	consideredSet    bool
	maxSteps         int
	domainLimit      int
	logger           *logrus.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*config)

// WithStopMode overrides the model's stop mode.
func WithStopMode(mode ir.StopMode) EngineOption {
	return func(c *config) {
		c.stopMode = mode
	}
}

// WithConsideredEvents overrides the model's considered events. Notifications
// of other events are not tracked, so processes waiting on them are only
// maybe ready.
func WithConsideredEvents(events []string) EngineOption {
	return func(c *config) {
		c.consideredEvents = slices.Clone(events)
		c.consideredSet = true
	}
}

// WithMaxSteps sets the maximum small steps per big step.
//
// Default: 100000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(c *config) {
		c.maxSteps = maxSteps
	}
}

// WithDomainLimit sets how many outcomes an abstract value keeps before it
// widens to unknown.
func WithDomainLimit(limit int) EngineOption {
	return func(c *config) {
		c.domainLimit = limit
	}
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l *logrus.Logger) EngineOption {
	return func(c *config) {
		c.logger = l
	}
}

// New creates an Engine for a model. The model must have passed validation.
//
// Options can be passed to configure the engine (e.g., WithMaxSteps).
func New[I info.Info[I]](m *ir.Model, h info.Handler[I], opts ...EngineOption) *Engine[I] {
	c := &config{
		stopMode: m.Config.StopMode,
		maxSteps: DefaultMaxSteps,
	}
	if m.Config.ConsideredEvents != nil {
		c.consideredEvents = m.Config.ConsideredEvents
		c.consideredSet = true
	}

	// Apply options
	for _, opt := range opts {
		opt(c)
	}

	if c.stopMode == "" {
		c.stopMode = ir.StopImmediate
	}
	logger := c.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &Engine[I]{
		model:    m,
		handler:  h,
		domain:   value.NewDomain(c.domainLimit),
		stopMode: c.stopMode,
		maxSteps: c.maxSteps,
		log:      logger.WithFields(logrus.Fields{"component": "engine", "model": m.Name}),
	}
	if c.consideredSet {
		e.considered = make(map[string]bool, len(c.consideredEvents))
		for _, ev := range c.consideredEvents {
			e.considered[ev] = true
		}
	}
	return e
}

// Model returns the model the engine evaluates.
func (e *Engine[I]) Model() *ir.Model { return e.model }

// Handler returns the information handler.
func (e *Engine[I]) Handler() info.Handler[I] { return e.handler }

// StopMode returns the effective stop mode.
func (e *Engine[I]) StopMode() ir.StopMode { return e.stopMode }

// IsConsidered reports whether notifications of an event are tracked.
func (e *Engine[I]) IsConsidered(event string) bool {
	return e.considered == nil || e.considered[event]
}

// InitialState builds the state before the first evaluation phase: globals
// at their initial values and every process ready, except processes marked
// dont_initialize, which wait on their sensitivity.
func (e *Engine[I]) InitialState() (*state.Snapshot, error) {
	b := state.New()
	for name, lit := range e.model.Globals {
		v, err := e.domain.FromLiteral(lit)
		if err != nil {
			return nil, NewContractViolation("", "global %s: %v", name, err)
		}
		b.Global.Vars[name] = v
	}
	for _, p := range e.model.Processes {
		ps := &state.Process{WaitingFor: blocker.None{}}
		if p.DontInitialize {
			if len(p.Sensitivity) > 0 {
				ps.WaitingFor = blocker.NewEventWait(p.Sensitivity, true, nil)
			} else {
				ps.WaitingFor = blocker.Terminated{}
			}
		}
		b.Processes[p.Name] = ps
	}
	return b.Freeze(), nil
}

// mergeTransitions composes the info of transitions that reach equal states,
// keeping first-reached order.
func mergeTransitions[I info.Info[I]](ts []Transition[I]) []Transition[I] {
	index := make(map[string]int, len(ts))
	out := make([]Transition[I], 0, len(ts))
	for _, t := range ts {
		if i, ok := index[t.State.Key()]; ok {
			out[i].Info = out[i].Info.Compose(t.Info)
			continue
		}
		index[t.State.Key()] = len(out)
		out = append(out, t)
	}
	return out
}
