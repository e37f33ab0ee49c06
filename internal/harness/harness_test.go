package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/engine"
	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
	"github.com/roach88/sandbox/internal/store"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 1)
	entry := result.Trace[0]
	assert.Equal(t, 1, entry.Seq)
	assert.Equal(t, "sink", entry.Account)
	require.Len(t, entry.Events, 2)
	assert.Equal(t, events.TypeReceived, entry.Events[0].Type)
	assert.Equal(t, "alice", entry.Events[0].Message.From)
	assert.Equal(t, events.TypeProcessed, entry.Events[1].Type)

	require.Len(t, result.Runs, 1)
	assert.Equal(t, "scenario-1", result.Runs[0].RunID)
	assert.Equal(t, 1, result.Runs[0].Transactions)

	sink, ok := result.Account("sink")
	require.True(t, ok)
	assert.Equal(t, ledger.StatusActive, sink.Status)
	assert.Equal(t, "4000", sink.Balance)
}

func TestRun_Deterministic(t *testing.T) {
	s := mustParse(t, minimalScenario)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.Accounts, second.Accounts)
	assert.Equal(t, first.Runs, second.Runs)
}

func TestRun_RunExpectationMismatch(t *testing.T) {
	result, err := Run(mustParse(t, `
name: mismatch
description: "Wrong counts are reported"
accounts:
  - name: alice
  - name: sink
    handler: sink
steps:
  - send: { from: alice, to: sink, value: "5000" }
  - run: { transactions: 5, rejected: 1, external_out: 2, dropped: 3 }
assertions:
  - type: trace_count
    event: received
    count: 1
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"steps[1]: expected 5 transactions, got 1",
		"steps[1]: expected 1 rejected messages, got 0",
		"steps[1]: expected 2 external-out messages, got 0",
		"steps[1]: expected 3 dropped messages, got 0",
	}, result.Errors)
}

func TestRun_GetExpectations(t *testing.T) {
	result, err := Run(mustParse(t, `
name: getters
description: "Getter outcomes are checked"
accounts:
  - name: counter
    handler: counter
    data: { counter: 5 }
  - name: ghost
    handler: counter
    deployed: false
steps:
  - get: { account: counter, method: counter, stack: [5] }
  - get: { account: counter, method: counter_plus, args: [2], stack: [7] }
  - get: { account: counter, method: missing, exit_code: 11 }
  - get: { account: counter, method: counter, stack: [6] }
  - get: { account: counter, method: missing }
  - get: { account: ghost, method: counter }
assertions:
  - type: trace_count
    event: received
    count: 0
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, "steps[3]: get counter on counter: expected stack [6], got [5]", result.Errors[0])
	assert.Equal(t, "steps[4]: get missing on counter: expected exit code 0, got 11", result.Errors[1])
	assert.Equal(t, "steps[5]: ghost does not exist", result.Errors[2])
}

func TestRun_GetOnUninitializedAccount(t *testing.T) {
	result, err := Run(mustParse(t, `
name: get-uninit
description: "Getters need active code and data"
accounts:
  - name: alice
    balance: "10"
steps:
  - get: { account: alice, method: counter }
assertions:
  - type: final_state
    account: alice
    status: uninitialized
    balance: "10"
`))
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0]: get counter on alice")
	assert.Contains(t, result.Errors[0], string(engine.ErrCodeContractNotActive))
}

func TestRun_StorageFeesAfterAdvance(t *testing.T) {
	result, err := Run(mustParse(t, `
name: storage
description: "Rent accrues while the clock moves"
settings:
  network: { storage_fee: 1 }
accounts:
  - name: alice
  - name: sink
    handler: sink
    balance: "100000"
steps:
  - send: { from: alice, to: sink, value: "5000" }
  - run: { transactions: 1 }
  - advance: 100
  - send: { from: alice, to: sink, value: "5000" }
  - run: { transactions: 1 }
assertions:
  - type: trace_order
    account: sink
    events: [received, processed, storage-charged, received, processed]
`))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	charged := result.Trace[1].Events[0]
	assert.Equal(t, events.TypeStorageCharged, charged.Type)
	// 16 seconds of run tick plus 100 advanced, at 1 per second.
	assert.Equal(t, "116", charged.Amount)
}

func TestRun_CollectsLogs(t *testing.T) {
	result, err := Run(mustParse(t, `
name: logs
description: "Logged accounts collect contract debug output"
accounts:
  - name: alice
  - name: counter
    handler: counter
    log: true
steps:
  - send: { from: alice, to: counter, value: "5000" }
  - run: {}
assertions:
  - type: trace_count
    account: counter
    event: processed
    count: 1
`))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	logs := result.Logs["counter"]
	assert.Contains(t, logs, "TX: 1")
	assert.Contains(t, logs, "counter 0 -> 1")
	assert.NotContains(t, result.Logs, "alice")
}

func TestRun_RandomOrderStillDrains(t *testing.T) {
	result, err := Run(mustParse(t, `
name: random
description: "Seeded random order applies every message"
settings:
  order: random
  seed: 42
accounts:
  - name: alice
  - name: a
    handler: sink
  - name: b
    handler: sink
  - name: c
    handler: echo
    balance: "10000"
steps:
  - send: { from: alice, to: a, value: "5000" }
  - send: { from: alice, to: b, value: "5000" }
  - send: { from: alice, to: c, value: "5000" }
  - run: { transactions: 4 }
assertions:
  - type: trace_count
    event: processed
    count: 3
  - type: trace_count
    account: alice
    event: received
    count: 1
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_QuotaAbortsScenario(t *testing.T) {
	_, err := Run(mustParse(t, `
name: quota
description: "A run over its transaction budget is an execution error"
settings:
  max_transactions: 1
accounts:
  - name: alice
  - name: a
    handler: sink
steps:
  - send: { from: alice, to: a, value: "5000" }
  - send: { from: alice, to: a, value: "5000" }
  - run: {}
assertions:
  - type: trace_count
    event: received
    count: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps[2]")
	assert.True(t, engine.IsQuotaError(err))
}

func TestRun_InvalidSettings(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Settings = map[string]any{"order": "sideways"}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario settings")
}

func TestRun_SharedAddress(t *testing.T) {
	_, err := Run(mustParse(t, `
name: shared
description: "Undeployed accounts with the same state init collide"
accounts:
  - name: one
    handler: sink
    deployed: false
  - name: two
    handler: sink
    deployed: false
steps:
  - run: {}
assertions:
  - type: trace_count
    event: received
    count: 0
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts one and two share address")
}

func TestRun_WithJournal(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer st.Close()

	s := mustParse(t, minimalScenario)
	_, err = Run(s, WithJournal(st))
	require.NoError(t, err)
	second, err := Run(s, WithJournal(st))
	require.NoError(t, err)

	ctx := context.Background()
	runs, err := st.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.ElementsMatch(t, []string{"scenario-1", "scenario-2"}, []string{runs[0].ID, runs[1].ID})
	for _, r := range runs {
		assert.Equal(t, store.RunCompleted, r.Status)
		assert.Equal(t, 1, r.Transactions)
	}

	// The second execution continues the journal's sequence numbers.
	require.Len(t, second.Trace, 1)
	assert.Equal(t, 2, second.Trace[0].Seq)

	txs, err := st.ReadTransactions(ctx, store.Filter{RunID: "scenario-2"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, second.Trace[0].Events, txs[0].Events)
}

func TestRun_JournalFromSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	s := mustParse(t, minimalScenario)
	s.Settings = map[string]any{"journal": path}

	_, err := Run(s)
	require.NoError(t, err)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	discrepancies, err := st.VerifyRun(context.Background(), "scenario-1")
	require.NoError(t, err)
	assert.Empty(t, discrepancies)
}

func TestRun_WasmEngineFromSettings(t *testing.T) {
	dir := t.TempDir()
	// Smallest valid module: it loads but exports nothing.
	empty := filepath.Join(dir, "empty.wasm")
	require.NoError(t, os.WriteFile(empty, []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, 0o644))
	garbage := filepath.Join(dir, "garbage.wasm")
	require.NoError(t, os.WriteFile(garbage, []byte("not wasm"), 0o644))

	tests := []struct {
		name    string
		engine  string
		wantErr string
	}{
		{"missing file", filepath.Join(dir, "missing.wasm"), "engine:"},
		{"invalid module", garbage, "engine:"},
		{"module without exports", empty, "steps[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustParse(t, minimalScenario)
			s.Settings = map[string]any{"engine": tt.engine}

			_, err := Run(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, emulator.IsUnavailable(err))
		})
	}
}
