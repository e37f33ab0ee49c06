package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sandbox/internal/ledger"
)

// MethodIDResult maps a getter name to its numeric id.
type MethodIDResult struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// NewMethodIDCommand creates the method-id command.
func NewMethodIDCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "method-id <name>...",
		Short: "Print the numeric id of getter methods",
		Long: `Print the numeric id a getter name is called by: the CRC-16/XMODEM of
the name with bit 16 set.

Example:
  sandbox method-id seqno counter`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMethodID(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runMethodID(opts *RootOptions, names []string, cmd *cobra.Command) error {
	results := make([]MethodIDResult, len(names))
	for i, name := range names {
		if name == "" {
			return NewExitError(ExitCommandError, "method name must not be empty")
		}
		results[i] = MethodIDResult{Name: name, ID: ledger.MethodID(name)}
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), results)
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t0x%x\n", r.Name, r.ID, r.ID)
	}
	return nil
}
