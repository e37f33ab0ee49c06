package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
	"github.com/roach88/sandbox/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - filter to one run
	Address  string // optional - filter to one account
}

// TraceTransaction is one journaled transaction in the timeline.
type TraceTransaction struct {
	RunID   string         `json:"run_id"`
	Seq     int            `json:"seq"`
	Address string         `json:"address"`
	LT      uint64         `json:"lt,string"`
	Status  string         `json:"status"`
	Fees    string         `json:"fees"`
	Events  []events.Event `json:"events"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string             `json:"run_id,omitempty"`
	Address  string             `json:"address,omitempty"`
	Timeline []TraceTransaction `json:"timeline"`
	Stats    TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Transactions   int            `json:"transactions"`
	Accounts       int            `json:"accounts"`
	Events         map[string]int `json:"events"`
	IncompleteRuns []string       `json:"incomplete_runs,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journaled transactions",
		Long: `Show the transactions journaled in a database, in sequence order,
with the events derived for each of them.

The output includes:
- Timeline: every matching transaction with its events
- Stats: transaction and event counts, and runs that never finished

Examples:
  sandbox trace --db ./sandbox.db
  sandbox trace --db ./sandbox.db --run scenario-1
  sandbox trace --db ./sandbox.db --address 0:83df... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "filter to one run id")
	cmd.Flags().StringVar(&opts.Address, "address", "", "filter to one account (workchain:hex)")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	filter := store.Filter{RunID: opts.RunID}
	if opts.Address != "" {
		addr, err := ledger.ParseAddress(opts.Address)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --address", err)
		}
		filter.Address = &addr
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ReadTransactions(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read transactions", err)
	}
	incomplete, err := st.FindIncompleteRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}

	result := buildTrace(opts, records, incomplete)

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// buildTrace converts journal records into the trace output.
func buildTrace(opts *TraceOptions, records []store.TransactionRecord, incomplete []store.Run) TraceResult {
	result := TraceResult{
		RunID:    opts.RunID,
		Address:  opts.Address,
		Timeline: make([]TraceTransaction, 0, len(records)),
		Stats:    TraceStats{Events: make(map[string]int)},
	}

	accounts := make(map[ledger.Address]bool)
	for _, rec := range records {
		accounts[rec.Address] = true
		for _, ev := range rec.Events {
			result.Stats.Events[string(ev.Type)]++
		}
		result.Timeline = append(result.Timeline, TraceTransaction{
			RunID:   rec.RunID,
			Seq:     rec.Seq,
			Address: rec.Address.String(),
			LT:      rec.Transaction.LT,
			Status:  string(rec.Transaction.EndStatus),
			Fees:    rec.Transaction.TotalFees.String(),
			Events:  rec.Events,
		})
	}
	result.Stats.Transactions = len(records)
	result.Stats.Accounts = len(accounts)

	for _, r := range incomplete {
		if opts.RunID == "" || r.ID == opts.RunID {
			result.Stats.IncompleteRuns = append(result.Stats.IncompleteRuns, r.ID)
		}
	}
	return result
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	switch {
	case result.RunID != "" && result.Address != "":
		fmt.Fprintf(w, "Trace for run %s, account %s\n", result.RunID, result.Address)
	case result.RunID != "":
		fmt.Fprintf(w, "Trace for run %s\n", result.RunID)
	case result.Address != "":
		fmt.Fprintf(w, "Trace for account %s\n", result.Address)
	default:
		fmt.Fprintln(w, "Trace for all runs")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no transactions)")
	}
	run := ""
	for _, tx := range result.Timeline {
		if tx.RunID != run {
			run = tx.RunID
			fmt.Fprintf(w, "  -- %s --\n", run)
		}
		fmt.Fprintf(w, "  [%d] %s lt=%d: %s\n", tx.Seq, truncateAddress(tx.Address), tx.LT, eventTypes(tx.Events))
		if verbose {
			fmt.Fprintf(w, "       status %s, fees %s\n", tx.Status, tx.Fees)
			writeEventDetails(w, tx.Events)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Transactions: %d\n", result.Stats.Transactions)
	fmt.Fprintf(w, "  Accounts:     %d\n", result.Stats.Accounts)

	types := make([]string, 0, len(result.Stats.Events))
	for t := range result.Stats.Events {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-20s %d\n", t+":", result.Stats.Events[t])
	}
	for _, id := range result.Stats.IncompleteRuns {
		fmt.Fprintf(w, "  Incomplete run: %s\n", id)
	}
}

// truncateAddress shortens the hash part of a raw address for display.
func truncateAddress(addr string) string {
	if len(addr) <= 24 {
		return addr
	}
	return addr[:12] + "..." + addr[len(addr)-8:]
}
