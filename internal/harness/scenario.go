package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a graph test: the events of each tick and assertions on
// the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Graph is the path of the CUE graph definition.
	// Relative paths are resolved against the scenario file location.
	Graph string `yaml:"graph"`

	// Isolate runs the system with failure isolation: a failing variable
	// is logged and skipped instead of aborting the tick.
	Isolate bool `yaml:"isolate,omitempty"`

	// Ticks lists the events delivered on each tick, in order.
	// An empty list is a tick with no events.
	Ticks [][]EventStep `yaml:"ticks"`

	// Assertions validate the trace and final values.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one scripted event.
type EventStep struct {
	// Kind is the registered event kind (e.g. "sample").
	Kind string `yaml:"kind"`

	// Payload is decoded into the kind's event type.
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Assertion validates the trace or final values.
type Assertion struct {
	// Type specifies the assertion type:
	// - "value": Variable value after Tick (final value when Tick is 0)
	// - "changed_count": Number of changing evaluations of Variable
	// - "updated_count": Number of evaluations of Variable
	// - "evaluation_order": Exact dispatch order within Tick
	// - "not_evaluated": Variable never dispatched
	Type string `yaml:"type"`

	// Variable is the variable name (all types but evaluation_order).
	Variable string `yaml:"variable,omitempty"`

	// Tick selects a tick (value, evaluation_order). Ticks count from 1.
	Tick int64 `yaml:"tick,omitempty"`

	// Expect is the expected value (value).
	Expect any `yaml:"expect,omitempty"`

	// Count is the expected number of evaluations (changed_count, updated_count).
	Count int `yaml:"count,omitempty"`

	// Variables is the expected dispatch order (evaluation_order).
	Variables []string `yaml:"variables,omitempty"`
}

// Assertion type constants.
const (
	AssertValue           = "value"
	AssertChangedCount    = "changed_count"
	AssertUpdatedCount    = "updated_count"
	AssertEvaluationOrder = "evaluation_order"
	AssertNotEvaluated    = "not_evaluated"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The graph path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
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

	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(filepath.Dir(path), scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// DiscoverScenarios returns the .yaml and .yml files directly inside dir,
// sorted by name.
func DiscoverScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	paths := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
		return fmt.Errorf("graph file not found: %s", s.Graph)
	}

	if len(s.Ticks) == 0 {
		return fmt.Errorf("ticks list is required and must be non-empty")
	}

	for i, tick := range s.Ticks {
		for j, ev := range tick {
			if ev.Kind == "" {
				return fmt.Errorf("ticks[%d][%d]: kind is required", i, j)
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, int64(len(s.Ticks))); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, ticks int64) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tick < 0 || a.Tick > ticks {
		return fmt.Errorf("assertions[%d]: tick %d out of range 1..%d", index, a.Tick, ticks)
	}

	switch a.Type {
	case AssertValue:
		if a.Variable == "" {
			return fmt.Errorf("assertions[%d]: variable is required for value", index)
		}
	case AssertChangedCount, AssertUpdatedCount:
		if a.Variable == "" {
			return fmt.Errorf("assertions[%d]: variable is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEvaluationOrder:
		if a.Tick == 0 {
			return fmt.Errorf("assertions[%d]: tick is required for evaluation_order", index)
		}
	case AssertNotEvaluated:
		if a.Variable == "" {
			return fmt.Errorf("assertions[%d]: variable is required for not_evaluated", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
