package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sandbox/internal/config"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <settings-file>",
		Short: "Validate a settings file and print the effective settings",
		Long: `Validate a YAML or CUE settings file against the settings schema and
print the settings a System would run with, defaults included.

Exit codes:
  0 - Settings are valid
  1 - Settings failed validation
  2 - Command error (file not found, etc.)

Examples:
  sandbox config ./sandbox.yaml
  sandbox config ./sandbox.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runConfig(opts *RootOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("settings file not found: %s", path))
	}

	settings, err := config.Load(path)
	if err != nil {
		var cfgErr *config.Error
		if !errors.As(err, &cfgErr) {
			return WrapExitError(ExitCommandError, "failed to read settings", err)
		}
		if opts.Format == "json" {
			if werr := writeFailure(cmd.OutOrStdout(), nil, ErrCodeSettings, cfgErr.Message, cfgErr.Error()); werr != nil {
				return werr
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", cfgErr.Error())
		}
		return WrapExitError(ExitFailure, "invalid settings", err)
	}

	if opts.Format == "json" {
		return writeOK(cmd.OutOrStdout(), settings)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render settings: %w", err)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n\n", path)
	if settings.Now == nil {
		fmt.Fprintln(w, "# now: wall clock")
	}
	fmt.Fprint(w, string(data))
	return nil
}
