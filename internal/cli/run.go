package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sandbox/internal/harness"
	"github.com/roach88/sandbox/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// RunReport is the outcome of one scenario.
type RunReport struct {
	Scenario string `json:"scenario"`
	*harness.Result
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its trace",
		Long: `Run one scenario against the native engine and print the tracked
transactions, run summaries and final account states.

With --db the transactions are journaled to a SQLite database, which
can be inspected later with trace and verify. Running the same scenario
again on the same database continues its run ids and sequence numbers.

Exit codes:
  0 - All expectations and assertions hold
  1 - The scenario failed or aborted
  2 - Command error (scenario not found, database error, etc.)

Examples:
  sandbox run ./scenarios/counter.yaml
  sandbox run ./scenarios/counter.yaml --db ./sandbox.db
  sandbox run ./scenarios/counter.yaml --format json -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal transactions to this SQLite database")

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := setupLogging(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithJournal(st))
	}

	slog.Info("scenario starting", "name", scenario.Name, "path", path)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		if opts.Format == "json" {
			if werr := writeFailure(cmd.OutOrStdout(), nil, ErrCodeScenario, err.Error(), scenario.Name); werr != nil {
				return werr
			}
		}
		return WrapExitError(ExitFailure, "scenario aborted", err)
	}

	report := RunReport{Scenario: scenario.Name, Result: result}
	if opts.Format == "json" {
		if result.Pass {
			return writeOK(cmd.OutOrStdout(), report)
		}
		if err := writeFailure(cmd.OutOrStdout(), report, ErrCodeFailed, "scenario failed", result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}

	writeRunText(cmd.OutOrStdout(), report, opts.Verbose)
	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, report RunReport, verbose bool) {
	fmt.Fprintf(w, "Scenario: %s\n", report.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	if len(report.Trace) == 0 {
		fmt.Fprintln(w, "  (no transactions)")
	}
	for _, entry := range report.Trace {
		fmt.Fprintf(w, "  [%d] %s: %s\n", entry.Seq, entry.Account, eventTypes(entry.Events))
		if verbose {
			writeEventDetails(w, entry.Events)
		}
	}
	fmt.Fprintln(w)

	if len(report.Runs) > 0 {
		fmt.Fprintln(w, "=== Runs ===")
		for _, r := range report.Runs {
			fmt.Fprintf(w, "  %s: %d transactions, %d rejected, %d external-out, %d dropped\n",
				r.RunID, r.Transactions, r.Rejected, r.ExternalOut, r.Dropped)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Accounts ===")
	for _, a := range report.Accounts {
		fmt.Fprintf(w, "  %-16s %-14s %s\n", a.Name, a.Status, a.Balance)
	}
	fmt.Fprintln(w)

	if len(report.Logs) > 0 {
		names := make([]string, 0, len(report.Logs))
		for name := range report.Logs {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "=== Logs ===")
		for _, name := range names {
			fmt.Fprintf(w, "--- %s ---\n%s\n", name, report.Logs[name])
		}
		fmt.Fprintln(w)
	}

	if report.Pass {
		fmt.Fprintln(w, "✓ PASS")
		return
	}
	fmt.Fprintln(w, "✗ FAIL")
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
