// Package harness runs scenario tests against variable graphs.
//
// A scenario names a graph definition, scripts the events delivered on each
// tick, and asserts on the dispatched evaluations and final values.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	graph: ../graphs/thermostat.cue
//	ticks:
//	  - - kind: sample
//	      payload: {source: temp, value: 30}
//	  - []
//	assertions:
//	  - type: value
//	    variable: hot
//	    expect: true
//	  - type: evaluation_order
//	    tick: 1
//	    variables: [temp, hot]
//
// Each entry of ticks is the list of events polled on that tick. Events are
// decoded through the event registry by kind. The graph path is relative to
// the scenario file.
//
// # Assertion Types
//
//   - value: A variable's value after a tick (or at the end when tick is 0)
//   - changed_count: How many dispatched evaluations changed a variable
//   - updated_count: How many times a variable was dispatched
//   - evaluation_order: The exact dispatch sequence within one tick
//   - not_evaluated: A variable was never dispatched
//
// # Deterministic Testing
//
// Declared channels are not opened; the scripted ticks are the only event
// source, so a scenario always produces the same trace. RunWithGolden
// compares that trace, as canonical JSON, with testdata/golden.
package harness
