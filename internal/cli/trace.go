package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Variable string // optional - filter to one variable
}

// TraceEntry is one recorded evaluation.
type TraceEntry struct {
	Tick     int64  `json:"tick"`
	Variable string `json:"variable"`
	Value    any    `json:"value"`
	Changed  bool   `json:"changed"`
}

// TraceResult holds the trace of one run.
type TraceResult struct {
	RunID     string       `json:"run_id"`
	GraphHash string       `json:"graph_hash"`
	Ticks     int64        `json:"ticks"`
	Variable  string       `json:"variable,omitempty"`
	Timeline  []TraceEntry `json:"timeline"`
	TraceHash string       `json:"trace_hash"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Evaluations int `json:"evaluations"`
	Changes     int `json:"changes"`
	Events      int `json:"events"`
}

// RunListing summarizes a recorded run.
type RunListing struct {
	RunID         string `json:"run_id"`
	GraphHash     string `json:"graph_hash"`
	EngineVersion string `json:"engine_version"`
	Ticks         int64  `json:"ticks"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded runs and their evaluations",
		Long: `Show the evaluations recorded for a run, in dispatch order.

Without --run, lists the recorded runs. With --variable, shows the
history of one variable only.

Examples:
  varsys trace --db ./varsys.db
  varsys trace --db ./varsys.db --run 0190...
  varsys trace --db ./varsys.db --run 0190... --variable hot --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace")
	cmd.Flags().StringVar(&opts.Variable, "variable", "", "filter to one variable")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, st, formatter)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeUnknownRun, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var evals []engine.Evaluation
	if opts.Variable != "" {
		evals, err = st.ReadVariableHistory(ctx, run.ID, opts.Variable)
	} else {
		evals, err = st.ReadEvaluations(ctx, run.ID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read evaluations", err)
	}
	events, err := st.ReadEvents(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	hash, err := store.TraceHash(evals)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash trace", err)
	}

	result := TraceResult{
		RunID:     run.ID,
		GraphHash: run.GraphHash,
		Ticks:     run.Ticks,
		Variable:  opts.Variable,
		Timeline:  make([]TraceEntry, 0, len(evals)),
		TraceHash: hash,
		Stats:     TraceStats{Evaluations: len(evals), Events: len(events)},
	}
	for _, e := range evals {
		result.Timeline = append(result.Timeline, TraceEntry(e))
		if e.Changed {
			result.Stats.Changes++
		}
	}

	if formatter.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	outputTraceText(formatter, result)
	return nil
}

func listRuns(ctx context.Context, st *store.Store, formatter *OutputFormatter) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	listing := make([]RunListing, 0, len(runs))
	for _, r := range runs {
		listing = append(listing, RunListing{
			RunID:         r.ID,
			GraphHash:     r.GraphHash,
			EngineVersion: r.EngineVersion,
			Ticks:         r.Ticks,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}
	if len(listing) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	fmt.Fprintln(formatter.Writer, "Runs:")
	for _, r := range listing {
		fmt.Fprintf(formatter.Writer, "  %s  %d tick(s)  graph %s\n", r.RunID, r.Ticks, shortHash(r.GraphHash))
	}
	return nil
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Graph: %s\n", shortHash(result.GraphHash))
	fmt.Fprintf(w, "Ticks: %d\n\n", result.Ticks)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No evaluations recorded.")
	} else {
		fmt.Fprintln(w, "Timeline:")
		tick := int64(0)
		for _, e := range result.Timeline {
			if e.Tick != tick {
				tick = e.Tick
				fmt.Fprintf(w, "  tick %d\n", tick)
			}
			mark := " "
			if e.Changed {
				mark = "*"
			}
			fmt.Fprintf(w, "   %s %s = %v\n", mark, e.Variable, e.Value)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d evaluation(s), %d change(s), %d event(s)\n",
		result.Stats.Evaluations, result.Stats.Changes, result.Stats.Events)
	fmt.Fprintf(w, "Trace hash: %s\n", result.TraceHash)
}

// shortHash abbreviates a domain-prefixed hash for display.
func shortHash(h string) string {
	if len(h) > 24 {
		return h[:24] + "…"
	}
	return h
}
