package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/varsys/internal/compiler"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/graph"
	"github.com/roach88/varsys/internal/ir"
	"github.com/roach88/varsys/internal/store"
	"github.com/roach88/varsys/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// graph's declared channels are replaced by one scripted channel that
// delivers the scenario's ticks, recorded like a live run, and the trace
// is read back from the store.
//
// A failing tick is reported as a result error; later ticks still run.
// Errors returned are setup failures (graph load, build, recording).
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	src, err := os.ReadFile(scenario.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph: %w", err)
	}
	spec, err := compiler.CompileSource(scenario.Graph, src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}
	reg := event.NewRegistry()
	if errs := compiler.Validate(spec, reg.Kinds()); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid graph:\n  %s", strings.Join(msgs, "\n  "))
	}

	batches, err := scriptedBatches(reg, scenario.Ticks)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	runID := "scenario-" + scenario.Name
	if err := st.CreateRun(ctx, store.Run{
		ID:            runID,
		GraphHash:     ir.MustGraphHash(spec),
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}); err != nil {
		return nil, err
	}
	rec := store.NewRecorder(ctx, st, runID, reg, logger)

	bare := *spec
	bare.Channels = nil
	opts := []graph.Option{
		graph.WithLogger(logger),
		graph.WithRegistry(reg),
		graph.WithObserver(rec),
	}
	if scenario.Isolate {
		opts = append(opts, graph.WithIsolation())
	}
	rt, err := graph.Build(ctx, &bare, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	defer rt.Close()

	if err := rt.ListenTo(rec.Tap(testutil.NewScriptedChannel(batches...))); err != nil {
		return nil, err
	}

	result := NewResult()
	actx := &AssertionContext{ValuesAt: make(map[int64]map[string]any)}
	for i := range scenario.Ticks {
		tick := int64(i + 1)
		if err := rt.Tick(); err != nil {
			result.AddError(fmt.Sprintf("tick %d: %v", tick, err))
		}
		values, err := normalizeValues(rt.Values())
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", tick, err)
		}
		actx.ValuesAt[tick] = values
		result.Ticks = tick
	}

	if err := rec.Flush(); err != nil {
		return nil, fmt.Errorf("failed to record trace: %w", err)
	}
	trace, err := st.ReadEvaluations(ctx, runID)
	if err != nil {
		return nil, err
	}
	result.Trace = trace
	result.Values = actx.ValuesAt[result.Ticks]

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// scriptedBatches decodes the events of every tick.
func scriptedBatches(reg *event.Registry, ticks [][]EventStep) ([][]any, error) {
	batches := make([][]any, len(ticks))
	for i, tick := range ticks {
		for j, step := range tick {
			var payload json.RawMessage
			if step.Payload != nil {
				data, err := json.Marshal(step.Payload)
				if err != nil {
					return nil, fmt.Errorf("ticks[%d][%d]: %w", i, j, err)
				}
				payload = data
			}
			ev, err := reg.Decode(step.Kind, payload)
			if err != nil {
				return nil, fmt.Errorf("ticks[%d][%d]: %w", i, j, err)
			}
			batches[i] = append(batches[i], ev)
		}
	}
	return batches, nil
}

// normalize converts v to the shape it has after a trip through the store:
// numbers become float64, structs become maps.
func normalize(v any) (any, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		data, err = ir.MarshalCanonicalStruct(v)
	}
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeValues(values map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(values))
	for name, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("value of %s: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}
