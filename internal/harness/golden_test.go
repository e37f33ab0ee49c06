package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

func TestTraceSnapshot_Marshal(t *testing.T) {
	r := NewResult()
	r.Trace = []TraceEntry{{Seq: 1, Account: "a", Events: []events.Event{
		{Type: events.TypeReceived, Message: &events.TrackedMessage{
			Type: ledger.MessageInternal,
			From: "b",
			To:   "a",
			Body: events.TrackedBody{Type: events.BodyText, Text: "a<b & c>d"},
		}},
		{Type: events.TypeProcessed, GasUsed: gas(1000)},
	}}}
	r.Accounts = []AccountState{{Name: "a", Status: ledger.StatusActive, Balance: "7"}}

	data, err := Snapshot("tiny", r).Marshal()
	require.NoError(t, err)

	want := `{
  "scenario": "tiny",
  "trace": [
    {
      "seq": 1,
      "account": "a",
      "events": [
        {
          "$type": "received",
          "message": {
            "type": "internal",
            "from": "b",
            "to": "a",
            "body": {
              "type": "text",
              "text": "a<b & c>d"
            }
          }
        },
        {
          "$type": "processed",
          "gasUsed": "1000"
        }
      ]
    }
  ],
  "accounts": [
    {
      "name": "a",
      "status": "active",
      "balance": "7"
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_Deterministic(t *testing.T) {
	s := mustParse(t, minimalScenario)

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		result, err := Run(s)
		require.NoError(t, err)
		data, err := Snapshot(s.Name, result).Marshal()
		require.NoError(t, err)
		outputs = append(outputs, data)
	}

	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[1], outputs[2])
}

func TestAssertGolden_FromResult(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/forward_drop.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, s.Name, result))
}
