package event

import (
	"sync"

	"github.com/roach88/varsys/internal/variable"
)

type boardKey struct {
	trigger variable.TriggerKey
	source  string
}

// Board remembers the most recent event per event type and source.
//
// Events that do not implement Sourced are filed under the empty source.
//
// Thread-safety: safe for concurrent use.
type Board struct {
	mu   sync.RWMutex
	last map[boardKey]any
	seen int64
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{last: make(map[boardKey]any)}
}

// Record files ev as the latest of its type and source.
func (b *Board) Record(ev any) {
	if ev == nil {
		return
	}
	var source string
	if s, ok := ev.(Sourced); ok {
		source = s.EventSource()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[boardKey{trigger: variable.TriggerOf(ev), source: source}] = ev
	b.seen++
}

// Last returns the latest event of the given type from source.
func (b *Board) Last(key variable.TriggerKey, source string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.last[boardKey{trigger: key, source: source}]
	return ev, ok
}

// LastSample returns the latest Sample reported by source.
func (b *Board) LastSample(source string) (Sample, bool) {
	ev, ok := b.Last(variable.TriggerFor[Sample](), source)
	if !ok {
		return Sample{}, false
	}
	return ev.(Sample), true
}

// Seen returns how many events have been recorded.
func (b *Board) Seen() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seen
}
