package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/graph"
	"github.com/roach88/varsys/internal/ir"
)

// Mismatch is a dispatched evaluation that differs between the recording
// and the replay. An empty side means the evaluation is missing there.
type Mismatch struct {
	Tick     int64
	Seq      int
	Recorded string
	Replayed string
}

// TickError is a tick that failed during replay.
type TickError struct {
	Tick int64
	Err  error
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	RunID       string
	Ticks       int64
	Evaluations int
	Mismatches  []Mismatch
	TraceHash   string
	TickErrors  []TickError
}

// Identical reports whether the replay reproduced the recorded
// evaluations. A failing tick that fails the same way it did live leaves
// no mismatch, so tick errors alone do not make a replay diverge.
func (r ReplayResult) Identical() bool {
	return len(r.Mismatches) == 0
}

// Replay rebuilds spec without its channels, feeds it the events recorded
// for runID tick by tick, and compares the dispatched evaluations with the
// recorded ones. Recorded channels are stood in for by queues in the same
// order, so the board and dispatch see events exactly as recorded.
//
// The graph must hash to the run's graph hash. Like the live loop, a
// failing tick does not stop the replay: the error is collected in
// TickErrors and the next tick runs.
func Replay(ctx context.Context, s *Store, runID string, spec *ir.GraphSpec, reg *event.Registry, opts ...graph.Option) (ReplayResult, error) {
	result := ReplayResult{RunID: runID}

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	hash, err := ir.GraphHash(spec)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	if hash != run.GraphHash {
		return result, fmt.Errorf("replay: graph hash %s does not match run graph %s", hash, run.GraphHash)
	}

	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	recorded, err := s.ReadEvaluations(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}

	bare := *spec
	bare.Channels = nil
	obs := &engine.MemoryObserver{}
	opts = append(opts, graph.WithRegistry(reg), graph.WithObserver(obs))
	rt, err := graph.Build(ctx, &bare, opts...)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	defer rt.Close()

	var queues []*channel.Queue
	for _, ev := range events {
		for len(queues) <= ev.Channel {
			q := channel.NewQueue()
			if err := rt.ListenTo(q); err != nil {
				return result, fmt.Errorf("replay: %w", err)
			}
			queues = append(queues, q)
		}
	}

	next := 0
	for tick := int64(1); tick <= run.Ticks; tick++ {
		for ; next < len(events) && events[next].Tick == tick; next++ {
			rec := events[next]
			ev, err := reg.Decode(rec.Kind, json.RawMessage(rec.Payload))
			if err != nil {
				return result, fmt.Errorf("replay: tick %d event %d: %w", tick, rec.Seq, err)
			}
			queues[rec.Channel].Push(ev)
		}
		result.Ticks = tick
		if err := rt.Tick(); err != nil {
			result.TickErrors = append(result.TickErrors, TickError{Tick: tick, Err: err})
		}
	}

	result.Evaluations = len(obs.Evaluations)
	result.Mismatches, err = compareEvaluations(recorded, obs.Evaluations)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	result.TraceHash, err = TraceHash(obs.Evaluations)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	return result, nil
}

// TraceHash hashes a sequence of evaluations. Values are compared as
// canonical JSON, so a trace read back from the store hashes the same as
// the live one.
func TraceHash(evals []engine.Evaluation) (string, error) {
	lines := make([]string, 0, len(evals))
	for _, e := range evals {
		line, err := describe(e)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return ir.TraceHash(lines)
}

func compareEvaluations(recorded, replayed []engine.Evaluation) ([]Mismatch, error) {
	type key struct {
		tick int64
		seq  int
	}
	index := func(evals []engine.Evaluation) (map[key]string, []key, error) {
		out := make(map[key]string, len(evals))
		var order []key
		var tick int64
		seq := 0
		for _, e := range evals {
			if e.Tick != tick {
				tick, seq = e.Tick, 0
			}
			d, err := describe(e)
			if err != nil {
				return nil, nil, err
			}
			k := key{e.Tick, seq}
			out[k] = d
			order = append(order, k)
			seq++
		}
		return out, order, nil
	}

	want, wantOrder, err := index(recorded)
	if err != nil {
		return nil, err
	}
	got, gotOrder, err := index(replayed)
	if err != nil {
		return nil, err
	}

	mismatches := []Mismatch{}
	for _, k := range wantOrder {
		if got[k] != want[k] {
			mismatches = append(mismatches, Mismatch{Tick: k.tick, Seq: k.seq, Recorded: want[k], Replayed: got[k]})
		}
	}
	for _, k := range gotOrder {
		if _, ok := want[k]; !ok {
			mismatches = append(mismatches, Mismatch{Tick: k.tick, Seq: k.seq, Replayed: got[k]})
		}
	}
	return mismatches, nil
}

func describe(e engine.Evaluation) (string, error) {
	value, err := marshalValue(e.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %s=%s changed=%t", e.Tick, e.Variable, value, e.Changed), nil
}
