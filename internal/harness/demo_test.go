package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// TestDemoScenarios runs the scenarios under testdata/scenarios and
// compares each trace with its golden file. The golden values follow from
// the default network: gas base 1000, 100 gas per action, price 1 and a
// forward fee of 500.
func TestDemoScenarios(t *testing.T) {
	for _, name := range []string{"counter_deploy", "echo_bounce", "forward_drop"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "golden files are named after the scenario")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// TestDemoScenarioConservation checks that value is neither created nor
// destroyed: final balances plus fees equal initial balances plus what the
// outside parties injected.
func TestDemoScenarioConservation(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/echo_bounce.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	var total uint64
	for _, a := range result.Accounts {
		total += ledger.MustParseCoins(a.Balance).Uint64()
	}
	// Initial 20000 plus 150000 sent in. Fees: echo 1100 gas and 500
	// forward, guard 1000 gas and 500 bounce forward.
	assert.Equal(t, uint64(170000-3100), total)
}

func TestDemoScenarioWallet(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/wallet_transfer.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Runs, 2)
	assert.Equal(t, RunSummary{RunID: "scenario-1", Transactions: 3, ExternalOut: 1}, result.Runs[0])
	assert.Equal(t, RunSummary{RunID: "scenario-2", Rejected: 1}, result.Runs[1])

	first := result.Trace[0]
	assert.Equal(t, "treasury", first.Account)
	require.Equal(t, events.TypeReceived, first.Events[0].Type)
	assert.Equal(t, ledger.MessageExternalIn, first.Events[0].Message.Type)
	assert.Empty(t, first.Events[0].Message.From)

	// Both transfers leave in one transaction, one sent event each.
	var sent []string
	for _, ev := range first.Events {
		if ev.Type == events.TypeSent {
			require.Len(t, ev.Messages, 1)
			sent = append(sent, ev.Messages[0].To+"="+ev.Messages[0].Value)
		}
	}
	assert.Equal(t, []string{"sink=2000", "emitter=3000"}, sent)

	assert.Contains(t, result.Logs["treasury"], "TX: 1")
}

func TestDemoScenariosReplay(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/counter_deploy.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first).Marshal()
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second).Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
