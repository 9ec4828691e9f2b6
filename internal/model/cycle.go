package model

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/roach88/absim/internal/ir"
)

// CycleWarning reports functions that can call themselves.
//
// Recursion is a warning, not an error: a bounded recursion is fine, an
// unbounded one makes a big step run into its step quota.
type CycleWarning struct {
	Path    []string `json:"path"` // ["f", "g", "f"]
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

func (w CycleWarning) String() string { return w.Message }

// AnalyzeCycles finds recursive call chains with Tarjan's strongly connected
// components over the call graph. Every component with more than one function,
// or one function calling itself, is reported once. Output order is stable.
func AnalyzeCycles(m *ir.Model) []CycleWarning {
	graph := buildCallGraph(m)
	warnings := []CycleWarning{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Path[0] < warnings[j].Path[0] })
	return warnings
}

// callGraph maps a function to the functions its body calls, in body order
// without repeats.
type callGraph map[string][]string

func buildCallGraph(m *ir.Model) callGraph {
	graph := make(callGraph, len(m.Functions))
	for _, name := range sortedKeys(m.Functions) {
		callees := []string{}
		for _, in := range m.Functions[name].Body {
			if in.Op != ir.OpCall {
				continue
			}
			if _, ok := m.Functions[in.Function]; ok && !slices.Contains(callees, in.Function) {
				callees = append(callees, in.Function)
			}
		}
		graph[name] = callees
	}
	return graph
}

func hasSelfLoop(node string, graph callGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC returns the strongly connected components of graph. Nodes are
// visited in sorted order and each component is sorted.
func tarjanSCC(graph callGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToWarning(scc []string, graph callGraph) CycleWarning {
	if len(scc) == 1 {
		return CycleWarning{
			Path:    []string{scc[0], scc[0]},
			Message: fmt.Sprintf("function %s calls itself", scc[0]),
			Level:   "warning",
		}
	}
	path := cyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("recursive call chain: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// cyclePath follows edges inside the component from its first member until
// it returns there.
func cyclePath(scc []string, graph callGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}

	start := scc[0]
	path := []string{start}
	visited := map[string]bool{}
	for cur := start; ; {
		visited[cur] = true
		next := ""
		for _, w := range graph[cur] {
			if members[w] && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			return path
		}
		path = append(path, next)
		if next == start {
			return path
		}
		cur = next
	}
}
