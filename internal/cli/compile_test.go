package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/varsys/internal/ir"
)

func TestCompile_TextOutput(t *testing.T) {
	out, err := execute(t, "compile", writeGraph(t, thermostatGraph))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 4 variable(s), 1 channel(s)")
	assert.Contains(t, out, "limit: constant 25")
	assert.Contains(t, out, "temp: sample of temp")
	assert.Contains(t, out, "hot: temp gt limit")
	assert.Contains(t, out, "doors: counter on [signal]")
	assert.Contains(t, out, "feed: redis")
	assert.Contains(t, out, "Graph hash: varsys/graph/v1:")
}

func TestCompile_JSONOutputFile(t *testing.T) {
	graphPath := writeGraph(t, thermostatGraph)
	outPath := filepath.Join(t.TempDir(), "graph.json")

	out, err := execute(t, "--format", "json", "compile", "-o", outPath, graphPath)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Graph.Variables, 4)
	assert.Equal(t, ir.IRVersion, resp.Data.IRVersion)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var written CompilationResult
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, resp.Data.GraphHash, written.GraphHash)
}

func TestCompile_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vars.cue"), []byte(`package home

variables: {
	limit: {kind: "constant", value: 25}
	temp:  {kind: "sample", source: "temp"}
}
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conds.cue"), []byte(`package home

variables: hot: {kind: "condition", op: "gt", lhs: "temp", rhs: "limit"}
`), 0644))

	loaded, err := LoadGraph(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.FileCount)
	assert.Len(t, loaded.Spec.Variables, 3)
	assert.NotEmpty(t, loaded.Hash)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing path",
			path:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.cue") },
			wantCode: ErrCodeNotFound,
		},
		{
			name:     "empty directory",
			path:     func(t *testing.T) string { return t.TempDir() },
			wantCode: ErrCodeNoFiles,
		},
		{
			name:     "missing kind",
			path:     func(t *testing.T) string { return writeGraph(t, `variables: {x: {value: 1}}`) },
			wantCode: ErrCodeVariables,
		},
		{
			name:     "cue syntax",
			path:     func(t *testing.T) string { return writeGraph(t, `variables: {`) },
			wantCode: ErrCodeBuildFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "compile", tt.path(t))
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantCode)
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeVariables, MapFieldToErrorCode("variables.x.kind"))
	assert.Equal(t, ErrCodeChannels, MapFieldToErrorCode("channels.feed.addr"))
	assert.Equal(t, ErrCodeBuildFailed, MapFieldToErrorCode("cue"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("other"))
}
