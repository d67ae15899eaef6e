package testutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_StandsStill(t *testing.T) {
	clock := NewManualClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock(epoch)

	got := clock.Advance(90 * time.Second)
	assert.Equal(t, epoch.Add(90*time.Second), got)
	assert.Equal(t, got, clock.Now())

	clock.Set(epoch)
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_ConcurrentAdvance(t *testing.T) {
	clock := NewManualClock(epoch)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(50*time.Second), clock.Now())
}

func TestScriptedChannel(t *testing.T) {
	boom := errors.New("boom")
	ch := NewScriptedChannel([]any{1, 2}, nil, []any{"x"}).FailOn(3, boom)

	batch, err := ch.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2}, batch)

	batch, err = ch.PollAll()
	require.NoError(t, err)
	assert.Empty(t, batch)

	batch, err = ch.PollAll()
	require.NoError(t, err)
	assert.Equal(t, []any{"x"}, batch)

	_, err = ch.PollAll()
	assert.ErrorIs(t, err, boom)

	batch, err = ch.PollAll()
	require.NoError(t, err)
	assert.Empty(t, batch)

	assert.Equal(t, 5, ch.Polls())
}
