package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sandbox/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run every .yaml and .yml scenario directly under a directory and
report which ones failed to load, aborted or broke an assertion.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sandbox test ./scenarios
  sandbox test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTests(opts *RootOptions, dir string, cmd *cobra.Command) error {
	logger := setupLogging(opts, cmd.ErrOrStderr())

	result, err := harness.RunDir(dir, harness.WithLogger(logger))
	if err != nil {
		var dirErr *harness.ScenarioDirError
		if errors.As(err, &dirErr) && errors.Is(dirErr.Err, os.ErrNotExist) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
		}
		return WrapExitError(ExitCommandError, "failed to read scenarios", err)
	}

	if opts.Format == "json" {
		if result.Failed == 0 {
			return writeOK(cmd.OutOrStdout(), result)
		}
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if err := writeFailure(cmd.OutOrStdout(), result, ErrCodeFailed, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	return outputTestText(cmd.OutOrStdout(), result)
}

func outputTestText(w io.Writer, result *harness.SuiteResult) error {
	if result.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, f := range result.Failures {
		name := f.Scenario
		if name == "" {
			name = f.ScenarioPath
		}
		fmt.Fprintf(w, "✗ %s\n", name)
		fmt.Fprintf(w, "  %s\n", f.Error)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
