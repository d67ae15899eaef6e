package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/varsys/internal/compiler"
	"github.com/roach88/varsys/internal/event"
	"github.com/roach88/varsys/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	GraphHash string                     `json:"graph_hash,omitempty"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Check a graph without running it",
		Long: `Check a CUE graph for structural and semantic errors.

Reports every problem found: unknown kinds and triggers, references to
undeclared variables, reference cycles, condition operand types, and
channel configuration.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadGraph(path)
	if err != nil {
		code, message := loadErrorCode(err)
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	formatter.VerboseLog("Compiled %d CUE file(s) from %s", loaded.FileCount, path)

	if errs := ValidateGraph(loaded.Spec); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, GraphHash: loaded.Hash})
	}
	fmt.Fprintln(formatter.Writer, "✓ Graph valid")
	return nil
}

// ValidateGraph checks spec against the event kinds the default registry
// decodes.
func ValidateGraph(spec *ir.GraphSpec) []compiler.ValidationError {
	return compiler.Validate(spec, event.NewRegistry().Kinds())
}

// outputValidationErrors outputs multiple validation errors.
// Validation failures exit with code 1.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Respond(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", err.Field, err.Code, err.Message)
	}
	return failure
}
