package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_ListRuns(t *testing.T) {
	dbPath, _, _ := recordRun(t, "run-1")

	out, err := execute(t, "trace", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Runs:")
	assert.Contains(t, out, "run-1  3 tick(s)")

	out, err = execute(t, "--format", "json", "trace", "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Data []RunListing `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-1", resp.Data[0].RunID)
}

func TestTrace_EmptyDatabase(t *testing.T) {
	out, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTrace_Run(t *testing.T) {
	dbPath, _, _ := recordRun(t, "run-1")

	out, err := execute(t, "--format", "json", "trace", "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.Ticks)
	assert.Len(t, resp.Data.Timeline, 5)
	assert.Equal(t, TraceStats{Evaluations: 5, Changes: 5, Events: 3}, resp.Data.Stats)
	assert.Contains(t, resp.Data.TraceHash, "varsys/trace/v1:")
}

func TestTrace_RunText(t *testing.T) {
	dbPath, _, _ := recordRun(t, "run-1")

	out, err := execute(t, "trace", "--db", dbPath, "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "  tick 2\n   * doors = 1\n")
	assert.Contains(t, out, "Stats: 5 evaluation(s), 5 change(s), 3 event(s)")
}

func TestTrace_Variable(t *testing.T) {
	dbPath, _, _ := recordRun(t, "run-1")

	out, err := execute(t, "--format", "json", "trace", "--db", dbPath, "--run", "run-1", "--variable", "hot")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "hot", resp.Data.Variable)
	assert.Equal(t, []TraceEntry{
		{Tick: 1, Variable: "hot", Value: true, Changed: true},
		{Tick: 3, Variable: "hot", Value: false, Changed: true},
	}, resp.Data.Timeline)
}

func TestTrace_UnknownRun(t *testing.T) {
	dbPath, _, _ := recordRun(t, "run-1")

	out, err := execute(t, "trace", "--db", dbPath, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E009]: run not found: missing")
}
