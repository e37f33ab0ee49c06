package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: minimal
description: "One message to a sink"
accounts:
  - name: alice
  - name: sink
    handler: sink
steps:
  - send: { from: alice, to: sink, value: "5000", body: hello }
  - run: { transactions: 1 }
assertions:
  - type: final_state
    account: sink
    balance: "4000"
`

const failingScenario = `
name: wrong_balance
description: "Expects a balance the sink never reaches"
accounts:
  - name: alice
  - name: sink
    handler: sink
steps:
  - send: { from: alice, to: sink, value: "5000" }
  - run: {}
assertions:
  - type: final_state
    account: sink
    balance: "5000"
`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse parses a JSON response, decoding Data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// journalWithRuns runs the passing scenario twice against a fresh
// database and returns its path.
func journalWithRuns(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	scenario := writeFile(t, dir, "minimal.yaml", passingScenario)
	db := filepath.Join(dir, "sandbox.db")
	for range 2 {
		_, _, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "--db", db, scenario)
		require.NoError(t, err)
	}
	return db
}
