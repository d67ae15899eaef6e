package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/varsys/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled graph with its identity.
type CompilationResult struct {
	Graph         *ir.GraphSpec `json:"graph"`
	GraphHash     string        `json:"graph_hash"`
	IRVersion     string        `json:"ir_version"`
	EngineVersion string        `json:"engine_version"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a CUE graph to canonical IR",
		Long: `Compile a CUE graph definition to canonical IR.

The graph is a .cue file or a directory holding one CUE package. The
output lists variables and channels in declaration order together with
the graph hash that runs are recorded under.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadGraph(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Compiled %d CUE file(s) from %s", loaded.FileCount, path)
	for _, v := range loaded.Spec.Variables {
		formatter.VerboseLog("Variable %s: %s", v.Name, v.Kind)
	}

	result := &CompilationResult{
		Graph:         loaded.Spec,
		GraphHash:     loaded.Hash,
		IRVersion:     ir.IRVersion,
		EngineVersion: ir.EngineVersion,
	}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	g := result.Graph
	fmt.Fprintf(w, "✓ Compiled %d variable(s), %d channel(s)\n\n", len(g.Variables), len(g.Channels))

	if len(g.Variables) > 0 {
		fmt.Fprintln(w, "Variables:")
		for _, v := range g.Variables {
			fmt.Fprintf(w, "  %s: %s\n", v.Name, describeVariable(v))
		}
		fmt.Fprintln(w)
	}

	if len(g.Channels) > 0 {
		fmt.Fprintln(w, "Channels:")
		for _, c := range g.Channels {
			fmt.Fprintf(w, "  %s: %s\n", c.Name, c.Kind)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Graph hash: %s\n", result.GraphHash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}
	return nil
}

// describeVariable renders a one-line summary of a declaration.
func describeVariable(v ir.VariableSpec) string {
	switch v.Kind {
	case ir.KindConstant:
		return fmt.Sprintf("constant %v", v.Value)
	case ir.KindSample:
		return fmt.Sprintf("sample of %s", v.Source)
	case ir.KindCondition:
		return fmt.Sprintf("%s %s %s", v.LHS, v.Op, v.RHS)
	case ir.KindCounter:
		return fmt.Sprintf("counter on %v", v.Triggers)
	case ir.KindScript:
		return fmt.Sprintf("script over %v", v.Inputs)
	default:
		return v.Kind
	}
}

// outputCompileError reports a load failure as a command error (exit code 2).
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := loadErrorCode(err)
	var loadErr *LoadError
	if formatter.Format != "json" && errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
		fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", code, message)
	} else {
		_ = formatter.Error(code, message, nil)
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// writeIRToFile writes the compilation result as indented JSON.
// Canonical JSON without indentation is used only for hashing.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
