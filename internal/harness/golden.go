package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/varsys/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Ticks        int64
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Result.Trace))
	for i, e := range s.Result.Trace {
		trace[i] = map[string]any{
			"tick":     e.Tick,
			"variable": e.Variable,
			"value":    e.Value,
			"changed":  e.Changed,
		}
	}

	values := make(map[string]any, len(s.Result.Values))
	for name, v := range s.Result.Values {
		values[name] = v
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"ticks":         s.Ticks,
		"trace":         trace,
		"values":        values,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}

// SnapshotJSON renders the golden file content for a result: canonical
// JSON without a trailing newline.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Ticks:        result.Ticks,
		Result:       result,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
