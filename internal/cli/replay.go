package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/graph"
	"github.com/roach88/varsys/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
	Isolate  bool
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID       string      `json:"run_id"`
	Ticks       int64       `json:"ticks"`
	Evaluations int         `json:"evaluations"`
	TraceHash   string      `json:"trace_hash"`
	Identical   bool        `json:"identical"`
	Mismatches  []Mismatch  `json:"mismatches,omitempty"`
	TickErrors  []TickError `json:"tick_errors,omitempty"`
}

// TickError is a tick that failed during replay.
type TickError struct {
	Tick  int64  `json:"tick"`
	Error string `json:"error"`
}

// Mismatch is one diverging evaluation.
type Mismatch struct {
	Tick     int64  `json:"tick"`
	Seq      int    `json:"seq"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs         []ReplayRunResult `json:"runs"`
	TotalRuns    int               `json:"total_runs"`
	AllIdentical bool              `json:"all_identical"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <graph>",
		Short: "Replay recorded runs and verify determinism",
		Long: `Replay recorded runs of a graph and compare every evaluation.

The recorded events of each run are fed back tick by tick to a fresh
copy of the graph, with its channels replaced by the recording. Only
runs recorded for the same graph hash are replayed.

Exit codes:
  0 - All runs replay identically
  1 - A replay diverged from its recording
  2 - Command error (database not found, unknown run, etc.)

Examples:
  varsys replay --db ./varsys.db ./graphs/thermostat.cue
  varsys replay --db ./varsys.db --run 0190... ./graphs/thermostat.cue
  varsys replay --db ./varsys.db --format json ./graphs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")
	cmd.Flags().BoolVar(&opts.Isolate, "isolate", false, "replay with failure isolation")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	loaded, err := LoadGraph(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile graph", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runIDs, err := replayTargets(ctx, st, opts.RunID, loaded.Hash)
	if err != nil {
		return err
	}

	graphOpts := []graph.Option{graph.WithLogger(logger)}
	if opts.Isolate {
		graphOpts = append(graphOpts, graph.WithIsolation())
	}

	result := ReplayResult{
		Runs:         make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:    len(runIDs),
		AllIdentical: true,
	}
	for _, id := range runIDs {
		formatter.VerboseLog("Replaying run %s", id)
		res, err := store.Replay(ctx, st, id, loaded.Spec, event.NewRegistry(), graphOpts...)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		rr := convertReplayResult(res)
		if !rr.Identical {
			result.AllIdentical = false
		}
		result.Runs = append(result.Runs, rr)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.AllIdentical {
		return NewExitError(ExitFailure, "replay diverged from recording")
	}
	return nil
}

// replayTargets resolves which runs to replay: the requested one, which
// must match the graph, or every run recorded for the graph.
func replayTargets(ctx context.Context, st *store.Store, runID, graphHash string) ([]string, error) {
	if runID != "" {
		run, err := st.ReadRun(ctx, runID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: run not found: %s", ErrCodeUnknownRun, runID))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read run", err)
		}
		if run.GraphHash != graphHash {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("run %s was recorded for graph %s, not %s", runID, run.GraphHash, graphHash))
		}
		return []string{runID}, nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	ids := []string{}
	for _, run := range runs {
		if run.GraphHash == graphHash {
			ids = append(ids, run.ID)
		}
	}
	return ids, nil
}

func convertReplayResult(res store.ReplayResult) ReplayRunResult {
	rr := ReplayRunResult{
		RunID:       res.RunID,
		Ticks:       res.Ticks,
		Evaluations: res.Evaluations,
		TraceHash:   res.TraceHash,
		Identical:   res.Identical(),
	}
	for _, m := range res.Mismatches {
		rr.Mismatches = append(rr.Mismatches, Mismatch(m))
	}
	for _, te := range res.TickErrors {
		rr.TickErrors = append(rr.TickErrors, TickError{Tick: te.Tick, Error: te.Err.Error()})
	}
	return rr
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs recorded for this graph.")
		return
	}

	for _, run := range result.Runs {
		mark := "✓"
		if !run.Identical {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s: %d tick(s), %d evaluation(s)\n", mark, run.RunID, run.Ticks, run.Evaluations)
		fmt.Fprintf(w, "  trace %s\n", run.TraceHash)
		for _, m := range run.Mismatches {
			fmt.Fprintf(w, "  tick %d #%d: recorded %q, replayed %q\n", m.Tick, m.Seq, m.Recorded, m.Replayed)
		}
		for _, te := range run.TickErrors {
			fmt.Fprintf(w, "  tick %d failed: %s\n", te.Tick, te.Error)
		}
	}

	fmt.Fprintln(w)
	if result.AllIdentical {
		fmt.Fprintf(w, "✓ %d run(s) replayed identically\n", result.TotalRuns)
	} else {
		fmt.Fprintln(w, "✗ Replay diverged from recording")
	}
}
