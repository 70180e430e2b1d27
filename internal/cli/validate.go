package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/choreo/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Definitions int                        `json:"definitions"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate choreography definitions",
		Long: `Compile choreography definitions and check them against the authoring rules.

<path> is a CUE package directory, a .cue file, or a YAML/JSON file with a
top-level choreography list. Every rule violation is reported, not only the
first.

Exit codes:
  0 - All definitions valid
  1 - One or more definitions violate an authoring rule
  2 - Command error (missing path, definitions that do not compile)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr)
		}
		return outputValidateError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	formatter.VerboseLog("Loaded %d definition(s) from %s", len(defs), path)
	for i, def := range defs {
		formatter.VerboseLog("Validating choreography[%d]: on=%s steps=%d", i, def.On, len(def.Steps))
	}

	if errs := compiler.Validate(defs); len(errs) > 0 {
		return outputValidationErrors(formatter, len(defs), errs)
	}

	return outputValidateSuccess(formatter, len(defs))
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Definitions: count})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d definition(s) valid\n", count)
	return nil
}

// outputValidateError outputs a load or compile error.
func outputValidateError(formatter *OutputFormatter, loadErr *LoadError) error {
	var details any
	if loadErr.Field != "" {
		details = map[string]any{"field": loadErr.Field}
	}
	message := loadErr.Message
	if loadErr.Field != "" && formatter.Format != "json" {
		message = loadErr.Field + ": " + message
	}
	if loadErr.Pos.IsValid() && formatter.Format != "json" {
		message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
	}
	_ = formatter.Error(loadErr.Code, message, details)
	// Definitions that cannot be loaded are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, "failed to load definitions", loadErr)
}

// outputValidationErrors outputs every rule violation.
func outputValidationErrors(formatter *OutputFormatter, count int, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:       false,
				Definitions: count,
				Errors:      errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "%s\n", err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
