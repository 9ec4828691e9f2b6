package explore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/roach88/absim/internal/engine"
	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/record"
	"github.com/roach88/absim/internal/state"
)

// Run statuses reported in a Summary.
const (
	StatusComplete  = "complete"
	StatusTruncated = "truncated"
)

// Options bound an exploration.
type Options struct {
	// Workers expanding a level in parallel. Zero means GOMAXPROCS.
	Workers int

	// MaxStates stops recording new states once this many are known. Zero
	// means no limit.
	MaxStates int

	// MaxDepth stops after expanding this many levels. Zero means no limit.
	MaxDepth int

	// RunID labels log entries and the summary. Generated when empty.
	RunID string

	// Logger receives Info entries per level. Defaults to the standard logger.
	Logger *logrus.Logger
}

// Finding is a big step that could not be evaluated.
type Finding struct {
	StateKey string
	record.Finding
}

// Summary describes a finished exploration.
type Summary struct {
	RunID       string
	Status      string
	States      int
	Transitions int
	Depth       int

	// Terminal counts states with no successor and no finding.
	Terminal int
	Findings []Finding
}

// Explorer expands states breadth first from a start state, handing every
// transition to a recorder.
type Explorer[I info.Info[I]] struct {
	eng  *engine.Engine[I]
	rec  record.Record[I]
	opts Options
	log  *logrus.Entry
}

// New creates an explorer.
func New[I info.Info[I]](eng *engine.Engine[I], rec record.Record[I], opts Options) *Explorer[I] {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.RunID == "" {
		opts.RunID = UUIDv7Generator{}.Generate()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Explorer[I]{
		eng:  eng,
		rec:  rec,
		opts: opts,
		log: logger.WithFields(logrus.Fields{
			"component": "explore",
			"run_id":    opts.RunID,
			"model":     eng.Model().Name,
		}),
	}
}

// RunID returns the ID of the exploration.
func (x *Explorer[I]) RunID() string { return x.opts.RunID }

type expansion[I info.Info[I]] struct {
	steps []engine.Step[I]
}

// Run explores every state reachable from start. States are recorded in the
// order they are first reached; within a level that order follows the
// frontier, then the step, then the transition, so the result does not depend
// on the number of workers.
//
// A failed big step is recorded as a finding and exploration continues. An
// abort or a contract violation stops the run; the summary so far is
// returned with the error.
func (x *Explorer[I]) Run(ctx context.Context, start *state.Snapshot) (Summary, error) {
	sum := Summary{RunID: x.opts.RunID, Status: StatusComplete, Findings: []Finding{}}
	x.log.WithField("workers", x.opts.Workers).Info("exploration started")

	if err := x.rec.StateReached(ctx, start); err != nil {
		return sum, fmt.Errorf("record state: %w", err)
	}
	seen := map[string]bool{start.Key(): true}
	sum.States = 1
	frontier := []*state.Snapshot{start}

	for len(frontier) > 0 {
		if x.opts.MaxDepth > 0 && sum.Depth >= x.opts.MaxDepth {
			sum.Status = StatusTruncated
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, engine.NewAbortError("", err)
		}

		results, err := x.expand(ctx, frontier)
		if err != nil {
			return sum, fmt.Errorf("explore %s at depth %d: %w", x.opts.RunID, sum.Depth, err)
		}

		var next []*state.Snapshot
		for i, from := range frontier {
			steps := results[i].steps
			if terminal(steps) {
				sum.Terminal++
			}
			for _, st := range steps {
				if st.Err != nil {
					if err := x.report(ctx, &sum, from, st); err != nil {
						return sum, err
					}
					continue
				}
				for _, tr := range st.Transitions {
					key := tr.State.Key()
					if !seen[key] {
						if x.opts.MaxStates > 0 && sum.States >= x.opts.MaxStates {
							sum.Status = StatusTruncated
							continue
						}
						seen[key] = true
						sum.States++
						next = append(next, tr.State)
						if err := x.rec.StateReached(ctx, tr.State); err != nil {
							return sum, fmt.Errorf("record state: %w", err)
						}
					}
					if err := x.rec.ExplorationMade(ctx, from, tr.State, st.Label, tr.Info); err != nil {
						return sum, fmt.Errorf("record transition: %w", err)
					}
					sum.Transitions++
				}
			}
		}

		sum.Depth++
		x.log.WithFields(logrus.Fields{
			"depth":       sum.Depth,
			"frontier":    len(frontier),
			"states":      sum.States,
			"transitions": sum.Transitions,
			"findings":    len(sum.Findings),
		}).Info("level explored")
		frontier = next
	}

	x.log.WithFields(logrus.Fields{
		"status":      sum.Status,
		"states":      sum.States,
		"transitions": sum.Transitions,
		"terminal":    sum.Terminal,
		"findings":    len(sum.Findings),
	}).Info("exploration finished")
	return sum, nil
}

func terminal[I info.Info[I]](steps []engine.Step[I]) bool {
	for _, st := range steps {
		if st.Err != nil || len(st.Transitions) > 0 {
			return false
		}
	}
	return true
}

func (x *Explorer[I]) report(ctx context.Context, sum *Summary, at *state.Snapshot, st engine.Step[I]) error {
	f := record.Finding{Thread: st.Label, Message: st.Err.Error()}
	var re *engine.RuntimeError
	if errors.As(st.Err, &re) {
		f.Code = string(re.Code)
		f.Message = re.Message
	}
	sum.Findings = append(sum.Findings, Finding{StateKey: at.Key(), Finding: f})
	x.log.WithFields(logrus.Fields{
		"state":  at.Key(),
		"thread": f.Thread,
		"code":   f.Code,
	}).Warn(f.Message)

	if fr, ok := x.rec.(record.FindingRecord); ok {
		if err := fr.FindingReported(ctx, at, f); err != nil {
			return fmt.Errorf("record finding: %w", err)
		}
	}
	return nil
}

// expand computes the successors of every frontier state with a pool of
// workers. Results are stored by frontier index. The first fatal error cancels
// the remaining work.
func (x *Explorer[I]) expand(ctx context.Context, frontier []*state.Snapshot) ([]expansion[I], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]expansion[I], len(frontier))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	workers := min(x.opts.Workers, len(frontier))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cache engine.ReadyCache
			for i := range jobs {
				steps, err := x.eng.Successors(ctx, frontier[i], &cache)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				results[i] = expansion[I]{steps: steps}
			}
		}()
	}

feed:
	for i := range frontier {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, engine.NewAbortError("", err)
	}
	return results, nil
}
