package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/varsys/internal/channel"
	"github.com/roach88/varsys/internal/engine"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/graph"
	"github.com/roach88/varsys/internal/ir"
	"github.com/roach88/varsys/internal/store"
	"github.com/roach88/varsys/internal/store/bolt"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Snapshot string        // optional bbolt file for latest values
	Frame    time.Duration // interval between ticks
	Ticks    int64         // stop after this many ticks, 0 = until interrupted
	Isolate  bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	// Opener allows overriding how channels are opened (for testing).
	// If nil, defaults to graph.OpenChannel.
	Opener graph.Opener
}

// RunSummary is the outcome of a run.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	GraphHash string         `json:"graph_hash"`
	Ticks     int64          `json:"ticks"`
	Values    map[string]any `json:"values"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Run a graph against its channels",
		Long: `Run a graph, ticking once per frame until interrupted.

Every event delivered by the graph's channels and every evaluation is
recorded to SQLite under a new run ID, so the run can be traced and
replayed later. With --snapshot the latest value of each variable is
also kept in a bbolt file.

Example:
  varsys run --db ./varsys.db ./graphs/thermostat.cue
  varsys run --db ./varsys.db --ticks 100 --frame 50ms ./graphs`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "path to bbolt snapshot of latest values")
	cmd.Flags().DurationVar(&opts.Frame, "frame", engine.DefaultFrame, "interval between ticks")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 0, "stop after this many ticks (0 = until interrupted)")
	cmd.Flags().BoolVar(&opts.Isolate, "isolate", false, "log and skip failing variables instead of aborting the tick")

	return cmd
}

func runGraph(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	loaded, err := LoadGraph(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile graph", err)
	}
	if errs := ValidateGraph(loaded.Spec); len(errs) > 0 {
		return WrapExitError(ExitCommandError, "invalid graph", errors.New(errs[0].Error()))
	}
	logger.Info("graph compiled",
		"variables", len(loaded.Spec.Variables),
		"channels", len(loaded.Spec.Channels),
		"hash", loaded.Hash,
	)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	runID := runIDs.Generate()
	if err := st.CreateRun(ctx, store.Run{
		ID:            runID,
		GraphHash:     loaded.Hash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}

	// Recording outlives the loop context so the last tick is written
	// after an interrupt.
	reg := event.NewRegistry()
	rec := store.NewRecorder(parentCtx, st, runID, reg, logger)

	open := opts.Opener
	if open == nil {
		open = graph.OpenChannel
	}
	buildOpts := []graph.Option{
		graph.WithLogger(logger),
		graph.WithRegistry(reg),
		graph.WithObserver(rec),
		graph.WithOpener(recordingOpener(rec, open)),
	}
	if opts.Isolate {
		buildOpts = append(buildOpts, graph.WithIsolation())
	}

	var snap *bolt.Snapshot
	if opts.Snapshot != "" {
		snap, err = bolt.Open(opts.Snapshot, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open snapshot", err)
		}
		defer snap.Close()
		buildOpts = append(buildOpts, graph.WithObserver(snap))
	}

	rt, err := graph.Build(ctx, loaded.Spec, buildOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build graph", err)
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			logger.Error("error closing channels", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	loop := engine.NewLoop(
		engine.WithFrame(opts.Frame),
		engine.WithMaxFrames(opts.Ticks),
		engine.WithLoopLogger(logger),
	)
	loop.Register(rt.System)

	formatter.VerboseLog("Run %s started. Press Ctrl-C to stop.", runID)
	runErr := loop.Run(ctx)

	if err := rec.Flush(); err != nil {
		return WrapExitError(ExitFailure, "failed to record run", err)
	}
	if snap != nil {
		if err := snap.Flush(); err != nil {
			return WrapExitError(ExitFailure, "failed to write snapshot", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "loop error", runErr)
	}

	summary := RunSummary{
		RunID:     runID,
		GraphHash: loaded.Hash,
		Ticks:     loop.Frames(),
		Values:    rt.Values(),
	}
	if formatter.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", Data: summary, RunID: runID})
	}
	fmt.Fprintf(formatter.Writer, "✓ Run %s recorded %d tick(s)\n", runID, summary.Ticks)
	return nil
}

// recordingOpener wraps open so every channel's events are recorded
// before the system sees them.
func recordingOpener(rec *store.Recorder, open graph.Opener) graph.Opener {
	return func(ctx context.Context, cs ir.ChannelSpec, env graph.ChannelEnv) (channel.Channel, func() error, error) {
		ch, closer, err := open(ctx, cs, env)
		if err != nil {
			return nil, nil, err
		}
		return rec.Tap(ch), closer, nil
	}
}
