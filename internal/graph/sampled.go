package graph

import (
	"fmt"

	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/variable"
)

// BoardService is the service name the event board is provided under.
const BoardService = "board"

// Sampled is a number variable holding the latest event.Sample reported by
// one source. It is re-evaluated on every Sample and keeps its previous
// value until its own source has reported.
//
// Sampled reads the board it is wired with; evaluating it unwired fails.
type Sampled struct {
	*variable.Base[float64]
	source string
	board  *event.Board
}

// NewSampled creates a sampled variable for source.
func NewSampled(name, source string) *Sampled {
	s := &Sampled{source: source}
	s.Base = variable.NewBase(name, s.read)
	return s
}

// Wire implements engine.Wireable.
func (s *Sampled) Wire(svc *engine.Services) error {
	board, err := engine.Lookup[*event.Board](svc, BoardService)
	if err != nil {
		return fmt.Errorf("sampled %s: %w", s.Name(), err)
	}
	s.board = board
	return nil
}

// Source returns the sample source name.
func (s *Sampled) Source() string {
	return s.source
}

// UpdateTriggers implements variable.Handle.
func (s *Sampled) UpdateTriggers() []variable.TriggerKey {
	return []variable.TriggerKey{variable.TriggerFor[event.Sample]()}
}

func (s *Sampled) read() (float64, error) {
	if s.board == nil {
		return 0, fmt.Errorf("sampled %s: not wired", s.Name())
	}
	sample, ok := s.board.LastSample(s.source)
	if !ok {
		return s.LastValue(), nil
	}
	return sample.Value, nil
}
