package store

import (
	"context"
	"log/slog"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
)

// Recorder writes a running system to the store. It is an engine.Observer
// for evaluations and wraps channels with Tap to capture their events.
//
// Each tick is buffered and written in one transaction when the next tick
// starts or on Flush. Ticks with nothing to record are not written. The
// first write error is kept and later ticks are dropped; check Flush.
//
// A Recorder is used from the ticking goroutine only.
type Recorder struct {
	ctx      context.Context
	store    *Store
	runID    string
	registry *event.Registry
	logger   *slog.Logger

	channels int
	pending  TickRecord
	last     int64
	err      error
}

// NewRecorder records into the existing run runID.
func NewRecorder(ctx context.Context, s *Store, runID string, registry *event.Registry, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		ctx:      ctx,
		store:    s,
		runID:    runID,
		registry: registry,
		logger:   logger,
	}
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string {
	return r.runID
}

// Tap returns ch with every polled event recorded under the next channel
// index. Tap channels in the order the system listens to them.
func (r *Recorder) Tap(ch channel.Channel) channel.Channel {
	idx := r.channels
	r.channels++
	return channel.PollFunc(func() ([]any, error) {
		batch, err := ch.PollAll()
		for _, ev := range batch {
			r.event(idx, ev)
		}
		return batch, err
	})
}

func (r *Recorder) event(idx int, ev any) {
	kind, payload, err := marshalEvent(r.registry, ev)
	if err != nil {
		r.logger.Warn("event not recorded", "run", r.runID, "tick", r.pending.Tick, "error", err)
		return
	}
	r.pending.Events = append(r.pending.Events, EventRecord{
		Tick:    r.pending.Tick,
		Seq:     len(r.pending.Events),
		Channel: idx,
		Kind:    kind,
		Payload: payload,
	})
}

// TickStarted implements engine.Observer.
func (r *Recorder) TickStarted(tick int64) {
	r.flush()
	r.pending = TickRecord{Tick: tick}
}

// Evaluated implements engine.Observer.
func (r *Recorder) Evaluated(tick int64, variable string, value any, changed bool) {
	r.pending.Evaluations = append(r.pending.Evaluations, engine.Evaluation{
		Tick:     tick,
		Variable: variable,
		Value:    value,
		Changed:  changed,
	})
}

// Flush writes the buffered tick, records the tick count and returns the
// first write error.
func (r *Recorder) Flush() error {
	r.flush()
	if r.err == nil && r.last > 0 {
		if err := r.store.SetTicks(r.ctx, r.runID, r.last); err != nil {
			r.err = err
		}
	}
	return r.err
}

func (r *Recorder) flush() {
	rec := r.pending
	r.pending = TickRecord{}
	if rec.Tick == 0 {
		return
	}
	r.last = rec.Tick
	if r.err != nil || (len(rec.Events) == 0 && len(rec.Evaluations) == 0) {
		return
	}
	if err := r.store.WriteTick(r.ctx, r.runID, rec); err != nil {
		r.err = err
		r.logger.Error("recording stopped", "run", r.runID, "tick", rec.Tick, "error", err)
	}
}
