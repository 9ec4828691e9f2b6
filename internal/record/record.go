// Package record receives the states and transitions an exploration makes.
//
// Recorders are called from a single goroutine per exploration. Graph is
// additionally safe for concurrent readers while a run is in progress.
package record

import (
	"context"
	"sync"

	"github.com/roach88/absim/internal/info"
	"github.com/roach88/absim/internal/ir"
	"github.com/roach88/absim/internal/state"
)

// Record is told about every state reached and every transition made.
// A state is reported once, before any transition leaving it.
type Record[I info.Info[I]] interface {
	StateReached(ctx context.Context, s *state.Snapshot) error
	ExplorationMade(ctx context.Context, from, to *state.Snapshot, label string, inf I) error
}

// Finding is a big step that could not be evaluated at a state.
type Finding struct {
	Thread  string
	Code    string
	Message string
}

// FindingRecord is implemented by recorders that also keep findings.
type FindingRecord interface {
	FindingReported(ctx context.Context, at *state.Snapshot, f Finding) error
}

// Edge is one recorded transition.
type Edge[I info.Info[I]] struct {
	ID    string
	From  string
	To    string
	Label string
	Info  I
}

// Graph keeps an exploration in memory.
//
// States are kept in first-reached order. An edge recorded twice has its
// info composed into the first record.
type Graph[I info.Info[I]] struct {
	mu     sync.RWMutex
	order  []string
	states map[string]*state.Snapshot
	edges  []Edge[I]
	byID   map[string]int
	out    map[string][]int

	findings map[string][]Finding
}

// NewGraph creates an empty graph.
func NewGraph[I info.Info[I]]() *Graph[I] {
	return &Graph[I]{
		states: make(map[string]*state.Snapshot),
		byID:   make(map[string]int),
		out:    make(map[string][]int),

		findings: make(map[string][]Finding),
	}
}

func (g *Graph[I]) StateReached(_ context.Context, s *state.Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addState(s)
	return nil
}

func (g *Graph[I]) ExplorationMade(_ context.Context, from, to *state.Snapshot, label string, inf I) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addState(from)
	g.addState(to)

	id := ir.TransitionID(from.Key(), to.Key(), label)
	if i, ok := g.byID[id]; ok {
		g.edges[i].Info = g.edges[i].Info.Compose(inf)
		return nil
	}
	g.byID[id] = len(g.edges)
	g.out[from.Key()] = append(g.out[from.Key()], len(g.edges))
	g.edges = append(g.edges, Edge[I]{ID: id, From: from.Key(), To: to.Key(), Label: label, Info: inf})
	return nil
}

func (g *Graph[I]) FindingReported(_ context.Context, at *state.Snapshot, f Finding) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addState(at)
	g.findings[at.Key()] = append(g.findings[at.Key()], f)
	return nil
}

func (g *Graph[I]) addState(s *state.Snapshot) {
	if _, ok := g.states[s.Key()]; ok {
		return
	}
	g.states[s.Key()] = s
	g.order = append(g.order, s.Key())
}

// Len returns the number of distinct states.
func (g *Graph[I]) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// States returns the states in first-reached order.
func (g *Graph[I]) States() []*state.Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*state.Snapshot, len(g.order))
	for i, k := range g.order {
		out[i] = g.states[k]
	}
	return out
}

// State looks up a state by key.
func (g *Graph[I]) State(key string) (*state.Snapshot, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.states[key]
	return s, ok
}

// Edges returns every edge in recording order.
func (g *Graph[I]) Edges() []Edge[I] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge[I], len(g.edges))
	copy(out, g.edges)
	return out
}

// Out returns the edges leaving key in recording order.
func (g *Graph[I]) Out(key string) []Edge[I] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx := g.out[key]
	out := make([]Edge[I], len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Findings returns the findings reported at key.
func (g *Graph[I]) Findings(key string) []Finding {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Finding, len(g.findings[key]))
	copy(out, g.findings[key])
	return out
}

// Tee forwards to every recorder in order and stops at the first error.
type Tee[I info.Info[I]] []Record[I]

func (t Tee[I]) StateReached(ctx context.Context, s *state.Snapshot) error {
	for _, r := range t {
		if err := r.StateReached(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee[I]) ExplorationMade(ctx context.Context, from, to *state.Snapshot, label string, inf I) error {
	for _, r := range t {
		if err := r.ExplorationMade(ctx, from, to, label, inf); err != nil {
			return err
		}
	}
	return nil
}

// FindingReported forwards to every member that keeps findings.
func (t Tee[I]) FindingReported(ctx context.Context, at *state.Snapshot, f Finding) error {
	for _, r := range t {
		fr, ok := r.(FindingRecord)
		if !ok {
			continue
		}
		if err := fr.FindingReported(ctx, at, f); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Record[info.None] = (*Graph[info.None])(nil)
	_ FindingRecord     = (*Graph[info.None])(nil)
	_ FindingRecord     = Tee[info.None](nil)
	_ Record[info.None] = Tee[info.None](nil)
)
