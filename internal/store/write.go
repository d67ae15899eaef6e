package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/varsys/internal/engine"
)

// Run describes one recorded execution of a graph.
type Run struct {
	ID            string
	GraphHash     string
	EngineVersion string
	IRVersion     string
	Ticks         int64 // last tick taken
}

// EventRecord is one event polled from a recorded channel.
type EventRecord struct {
	Tick    int64
	Seq     int
	Channel int // index of the channel in recording order
	Kind    string
	Payload string // canonical JSON
}

// TickRecord is everything recorded during one tick.
type TickRecord struct {
	Tick        int64
	Events      []EventRecord
	Evaluations []engine.Evaluation
}

// CreateRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, graph_hash, engine_version, ir_version, ticks)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.GraphHash,
		run.EngineVersion,
		run.IRVersion,
		run.Ticks,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// WriteTick atomically writes the events and evaluations of one tick and
// advances the run's tick count. Seq numbers are the positions within the
// record. Rewriting a tick is a no-op.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteTick(ctx context.Context, runID string, rec TickRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write tick %d: begin tx: %w", rec.Tick, err)
	}
	defer tx.Rollback() // No-op if committed

	for i, ev := range rec.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(run_id, tick, seq, channel, kind, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, rec.Tick, i, ev.Channel, ev.Kind, ev.Payload)
		if err != nil {
			return fmt.Errorf("write tick %d: event %d: %w", rec.Tick, i, err)
		}
	}

	for i, e := range rec.Evaluations {
		value, err := marshalValue(e.Value)
		if err != nil {
			return fmt.Errorf("write tick %d: %s: %w", rec.Tick, e.Variable, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO evaluations
			(run_id, tick, seq, variable, value, changed)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, runID, rec.Tick, i, e.Variable, value, e.Changed)
		if err != nil {
			return fmt.Errorf("write tick %d: evaluation %d: %w", rec.Tick, i, err)
		}
	}

	if err := advanceTicks(ctx, tx, runID, rec.Tick); err != nil {
		return fmt.Errorf("write tick %d: %w", rec.Tick, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write tick %d: commit: %w", rec.Tick, err)
	}
	return nil
}

// SetTicks records that the run reached tick. The count never decreases.
func (s *Store) SetTicks(ctx context.Context, runID string, tick int64) error {
	if err := advanceTicks(ctx, s.db, runID, tick); err != nil {
		return fmt.Errorf("set ticks: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func advanceTicks(ctx context.Context, db execer, runID string, tick int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE runs SET ticks = MAX(ticks, ?) WHERE id = ?
	`, tick, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}
