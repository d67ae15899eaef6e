package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/varsys/internal/engine"
)

// ReadRun retrieves a run by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, graph_hash, engine_version, ir_version, ticks
		FROM runs
		WHERE id = ?
	`, id)

	var run Run
	if err := row.Scan(&run.ID, &run.GraphHash, &run.EngineVersion, &run.IRVersion, &run.Ticks); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every run. Run IDs are UUIDv7, so binary order is
// start order.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, graph_hash, engine_version, ir_version, ticks
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.GraphHash, &run.EngineVersion, &run.IRVersion, &run.Ticks); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvaluations returns every evaluation of a run in dispatch order.
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadEvaluations(ctx context.Context, runID string) ([]engine.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, variable, value, changed
		FROM evaluations
		WHERE run_id = ?
		ORDER BY tick ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	return scanEvaluations(rows)
}

// ReadVariableHistory returns the evaluations of one variable in a run.
func (s *Store) ReadVariableHistory(ctx context.Context, runID, variable string) ([]engine.Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, variable, value, changed
		FROM evaluations
		WHERE run_id = ? AND variable = ?
		ORDER BY tick ASC, seq ASC
	`, runID, variable)
	if err != nil {
		return nil, fmt.Errorf("query variable history: %w", err)
	}
	return scanEvaluations(rows)
}

func scanEvaluations(rows *sql.Rows) ([]engine.Evaluation, error) {
	defer rows.Close()

	evals := []engine.Evaluation{}
	for rows.Next() {
		var (
			e     engine.Evaluation
			value string
		)
		if err := rows.Scan(&e.Tick, &e.Variable, &value, &e.Changed); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		v, err := unmarshalValue(value)
		if err != nil {
			return nil, fmt.Errorf("evaluation %s at tick %d: %w", e.Variable, e.Tick, err)
		}
		e.Value = v
		evals = append(evals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return evals, nil
}

// ReadEvents returns every recorded event of a run in poll order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, seq, channel, kind, payload
		FROM events
		WHERE run_id = ?
		ORDER BY tick ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.Tick, &ev.Seq, &ev.Channel, &ev.Kind, &ev.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
