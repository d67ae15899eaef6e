package bolt

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSnapshot_KeepsLatestValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	s, err := Open(path, quiet)
	require.NoError(t, err)

	s.TickStarted(1)
	s.Evaluated(1, "temp", 30.0, true)
	s.Evaluated(1, "hot", true, true)
	s.TickStarted(2)
	s.Evaluated(2, "temp", 20.0, true)
	s.Evaluated(2, "mode", "auto", false)
	require.NoError(t, s.Close())

	s, err = Open(path, quiet)
	require.NoError(t, err)
	defer s.Close()

	values, err := s.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temp": 20.0, "hot": true, "mode": "auto"}, values)

	tick, err := s.Tick()
	require.NoError(t, err)
	assert.Equal(t, int64(2), tick)
}

func TestSnapshot_UncommittedTickNotVisible(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"), quiet)
	require.NoError(t, err)
	defer s.Close()

	s.TickStarted(1)
	s.Evaluated(1, "temp", 30.0, true)

	values, err := s.Values()
	require.NoError(t, err)
	assert.Empty(t, values)

	require.NoError(t, s.Flush())
	values, err = s.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temp": 30.0}, values)
}

func TestSnapshot_StructuredValues(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"), quiet)
	require.NoError(t, err)
	defer s.Close()

	s.TickStarted(1)
	s.Evaluated(1, "obj", map[string]any{"n": 1.5, "tags": []any{"a"}}, true)
	s.Evaluated(1, "bad", make(chan int), true)
	require.NoError(t, s.Flush())

	values, err := s.Values()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"obj": map[string]any{"n": 1.5, "tags": []any{"a"}},
	}, values)
}

func TestSnapshot_FreshFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "snap.db"), quiet)
	require.NoError(t, err)
	defer s.Close()

	tick, err := s.Tick()
	require.NoError(t, err)
	assert.Zero(t, tick)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/snap.db", quiet)
	assert.Error(t, err)
}
