package state

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Describe renders the state as stable, human-readable lines. Evaluation
// stacks are summarized by depth and position.
func (s *Snapshot) Describe() []string {
	g := s.data.Global
	var lines []string

	if g.Stopped {
		lines = append(lines, "stopped")
	}
	if len(g.Pending) > 0 {
		events := maps.Keys(g.Pending)
		slices.Sort(events)
		parts := make([]string, len(events))
		for i, e := range events {
			parts[i] = fmt.Sprintf("%s@%s", e, g.Pending[e])
		}
		lines = append(lines, "pending "+strings.Join(parts, " "))
	}
	if len(g.UpdateRequests) > 0 {
		lines = append(lines, "updates "+strings.Join(g.UpdateRequests, " "))
	}
	vars := maps.Keys(g.Vars)
	slices.Sort(vars)
	for _, name := range vars {
		lines = append(lines, fmt.Sprintf("var %s = %s", name, g.Vars[name]))
	}
	for _, name := range s.ProcessNames() {
		p := s.data.Processes[name]
		line := fmt.Sprintf("process %s: %s", name, s.WaitingFor(name))
		if n := len(p.Frames); n > 0 {
			top := p.Frames[n-1]
			line += fmt.Sprintf(" at %s:%d", top.Function, top.Next)
			if n > 1 {
				line += fmt.Sprintf(" depth %d", n)
			}
		}
		lines = append(lines, line)
	}
	return lines
}
