package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/absim/internal/ir"
)

// Scenario defines an exploration test: a model, the options to explore it
// with, and assertions on the recorded trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the path to a CUE model file or directory, relative to the
	// scenario file when loaded with LoadScenarioWithBasePath.
	Model string `yaml:"model,omitempty"`

	// Source is an inline CUE model, used instead of Model.
	Source string `yaml:"source,omitempty"`

	Options Options `yaml:"options,omitempty"`

	// Assertions validate the exploration.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is a fixed run ID. Defaults to "run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Info kinds a scenario can explore with.
const (
	InfoAccesses = "accesses"
	InfoNone     = "none"
)

// Options configure the engine and the exploration. Zero values keep the
// model's config and the engine defaults.
type Options struct {
	StopMode string `yaml:"stop_mode,omitempty"`

	// ConsideredEvents overrides the model's list when present. An empty
	// list considers no event.
	ConsideredEvents *[]string `yaml:"considered_events,omitempty"`

	Workers     int `yaml:"workers,omitempty"`
	MaxStates   int `yaml:"max_states,omitempty"`
	MaxDepth    int `yaml:"max_depth,omitempty"`
	MaxSteps    int `yaml:"max_steps,omitempty"`
	DomainLimit int `yaml:"domain_limit,omitempty"`

	// Info selects the transition information: "accesses" (default) or "none".
	Info string `yaml:"info,omitempty"`

	// Summaries includes state summaries in the trace.
	Summaries bool `yaml:"summaries,omitempty"`
}

// Assertion validates the result of an exploration.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Status is the expected run status (status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number (*_count).
	Count int `yaml:"count,omitempty"`

	// Label is a transition label (label_count).
	Label string `yaml:"label,omitempty"`

	// Labels must appear in this order of first occurrence (label_order).
	Labels []string `yaml:"labels,omitempty"`

	// Code and Thread select a finding (finding). Thread is optional.
	Code   string `yaml:"code,omitempty"`
	Thread string `yaml:"thread,omitempty"`

	// Line is a substring of some state summary line (state_line).
	Line string `yaml:"line,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus          = "status"
	AssertStateCount      = "state_count"
	AssertTransitionCount = "transition_count"
	AssertTerminalCount   = "terminal_count"
	AssertFindingCount    = "finding_count"
	AssertLabelCount      = "label_count"
	AssertLabelOrder      = "label_order"
	AssertFinding         = "finding"
	AssertStateLine       = "state_line"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the model path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) && basePath != "" {
		scenario.Model = filepath.Join(basePath, scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Model == "" && s.Source == "":
		return fmt.Errorf("one of model or source is required")
	case s.Model != "" && s.Source != "":
		return fmt.Errorf("model and source are mutually exclusive")
	case s.Model != "":
		if _, err := os.Stat(s.Model); os.IsNotExist(err) {
			return fmt.Errorf("model not found: %s", s.Model)
		}
	}

	if err := validateOptions(&s.Options); err != nil {
		return err
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateOptions(o *Options) error {
	switch ir.StopMode(o.StopMode) {
	case "", ir.StopImmediate, ir.StopAfterDelta:
	default:
		return fmt.Errorf("options.stop_mode: unknown stop mode %q", o.StopMode)
	}
	switch o.Info {
	case "", InfoAccesses, InfoNone:
	default:
		return fmt.Errorf("options.info: unknown info kind %q", o.Info)
	}
	for name, n := range map[string]int{
		"workers":      o.Workers,
		"max_states":   o.MaxStates,
		"max_depth":    o.MaxDepth,
		"max_steps":    o.MaxSteps,
		"domain_limit": o.DomainLimit,
	} {
		if n < 0 {
			return fmt.Errorf("options.%s must be non-negative", name)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStatus:
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for status", index)
		}
	case AssertStateCount, AssertTransitionCount, AssertTerminalCount, AssertFindingCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertLabelCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for label_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for label_count", index)
		}
	case AssertLabelOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for label_order", index)
		}
	case AssertFinding:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for finding", index)
		}
	case AssertStateLine:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for state_line", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
