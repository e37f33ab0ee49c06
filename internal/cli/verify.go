package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sandbox/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// VerifyRunResult holds the verification result for a single run.
type VerifyRunResult struct {
	RunID         string   `json:"run_id"`
	Status        string   `json:"status"`
	Transactions  int      `json:"transactions"`
	IsComplete    bool     `json:"is_complete"`
	Consistent    bool     `json:"consistent"`
	Discrepancies []string `json:"discrepancies,omitempty"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Runs          []VerifyRunResult `json:"runs"`
	TotalRuns     int               `json:"total_runs"`
	AllConsistent bool              `json:"all_consistent"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check journal integrity",
		Long: `Re-read every journaled run and check its integrity: transaction
hashes, the per-account chain of previous transactions, and that the
stored events match a fresh derivation.

Runs that were started but never finished are reported, but they are
not inconsistent by themselves.

Exit codes:
  0 - All runs are consistent
  1 - Verification found discrepancies
  2 - Command error (database not found, etc.)

Examples:
  sandbox verify --db ./sandbox.db
  sandbox verify --db ./sandbox.db --run scenario-1
  sandbox verify --db ./sandbox.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "verify specific run only")

	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ReadRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
	}

	result := VerifyResult{
		Runs:          make([]VerifyRunResult, 0, len(runs)),
		TotalRuns:     len(runs),
		AllConsistent: true,
	}
	for _, run := range runs {
		found, err := st.VerifyRun(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify run %s", run.ID), err)
		}
		r := VerifyRunResult{
			RunID:        run.ID,
			Status:       string(run.Status),
			Transactions: run.Transactions,
			IsComplete:   run.Status != store.RunRunning,
			Consistent:   len(found) == 0,
		}
		for _, d := range found {
			r.Discrepancies = append(r.Discrepancies, d.String())
		}
		if !r.Consistent {
			result.AllConsistent = false
		}
		result.Runs = append(result.Runs, r)
	}

	if opts.Format == "json" {
		if result.AllConsistent {
			return writeOK(cmd.OutOrStdout(), result)
		}
		if err := writeFailure(cmd.OutOrStdout(), result, ErrCodeJournal, "journal verification failed", nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "journal verification failed")
	}
	return outputVerifyText(cmd.OutOrStdout(), result, opts.Verbose)
}

func outputVerifyText(w io.Writer, result VerifyResult, verbose bool) error {
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	for _, r := range result.Runs {
		mark := "✓"
		if !r.Consistent {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%s, %d transactions)\n", mark, r.RunID, r.Status, r.Transactions)
		if !r.IsComplete {
			fmt.Fprintln(w, "  run was never finished")
		}
		for _, d := range r.Discrepancies {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}

	fmt.Fprintln(w)
	if !result.AllConsistent {
		fmt.Fprintln(w, "✗ Journal verification failed")
		return NewExitError(ExitFailure, "journal verification failed")
	}
	if verbose {
		fmt.Fprintf(w, "Verified %d run(s)\n", result.TotalRuns)
	}
	fmt.Fprintln(w, "✓ Journal is consistent")
	return nil
}

// openExisting opens a journal that must already exist. store.Open would
// create an empty database at a mistyped path.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
		}
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}
