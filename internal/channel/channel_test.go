package channel

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PollDrains(t *testing.T) {
	q := NewQueue()
	assert.True(t, q.Push(1))
	assert.True(t, q.Push("two"))
	assert.Equal(t, 2, q.Len())

	got, err := q.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two"}, got)
	assert.Equal(t, 0, q.Len())

	got, err = q.PollAll()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueue_PolledSliceIsStable(t *testing.T) {
	q := NewQueue()
	q.Push(1)
	got, err := q.PollAll()
	require.NoError(t, err)

	q.Push(2)
	assert.Equal(t, []any{1}, got)
}

func TestQueue_FailReturnedOnce(t *testing.T) {
	q := NewQueue()
	first := errors.New("first")
	q.Push("buffered")
	q.Fail(first)
	q.Fail(errors.New("second"))

	_, err := q.PollAll()
	assert.ErrorIs(t, err, first)

	got, err := q.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"buffered"}, got)
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue()
	q.Push("kept")
	q.Close()

	assert.True(t, q.Closed())
	assert.False(t, q.Push("dropped"))

	got, err := q.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"kept"}, got)
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Push(i*100 + j)
			}
		}()
	}
	wg.Wait()

	got, err := q.PollAll()
	require.NoError(t, err)
	assert.Len(t, got, 800)
}

func TestPollFunc(t *testing.T) {
	var ch Channel = PollFunc(func() ([]any, error) {
		return []any{"x"}, nil
	})
	got, err := ch.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, got)
}
