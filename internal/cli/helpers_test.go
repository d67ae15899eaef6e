package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/graph"
	"github.com/roach88/varsys/internal/ir"
	"github.com/roach88/varsys/internal/testutil"
)

const thermostatGraph = `
variables: {
	limit: {kind: "constant", value: 25}
	temp:  {kind: "sample", source: "temp"}
	hot:   {kind: "condition", op: "gt", lhs: "temp", rhs: "limit"}
	doors: {kind: "counter", triggers: ["signal"]}
}
channels: {
	feed: {kind: "redis", addr: "localhost:6379", topics: ["sensors"]}
}
`

// writeGraph writes src as a graph file in a temp dir.
func writeGraph(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// scriptedOpener stands in for every declared channel with one channel
// delivering batches.
func scriptedOpener(batches ...[]any) graph.Opener {
	return func(context.Context, ir.ChannelSpec, graph.ChannelEnv) (channel.Channel, func() error, error) {
		return testutil.NewScriptedChannel(batches...), nil, nil
	}
}

// thermostatEvents drives three ticks: hot, a door, cool again.
var thermostatEvents = [][]any{
	{event.Sample{Source: "temp", Value: 30}},
	{event.Signal{Name: "door"}},
	{event.Sample{Source: "temp", Value: 20}},
}

// recordRun runs the thermostat graph for three ticks into a new
// database and returns the database and graph paths.
func recordRun(t *testing.T, runID string) (dbPath, graphPath string, out string) {
	t.Helper()
	graphPath = writeGraph(t, thermostatGraph)
	dbPath = filepath.Join(t.TempDir(), "varsys.db")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{})
	cmd.SetOut(buf)
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "json"},
		Database:    dbPath,
		Frame:       time.Millisecond,
		Ticks:       3,
		RunIDs:      engine.NewFixedGenerator(runID),
		Opener:      scriptedOpener(thermostatEvents...),
	}
	require.NoError(t, runGraph(opts, graphPath, cmd))
	return dbPath, graphPath, buf.String()
}
