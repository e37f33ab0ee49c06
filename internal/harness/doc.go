// Package harness runs ledger scenarios against the native engine.
//
// A scenario declares named accounts, sends messages, drains the queue and
// asserts on the resulting event trace and final account states. Every
// account is tracked, so the trace covers each transaction any declared
// account takes part in.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: counter-deploy
//	description: "What this scenario validates"
//	settings:
//	  network: { forward_fee: 500 }
//	accounts:
//	  - name: alice                # no handler: an outside party
//	  - name: counter
//	    handler: counter
//	    data: { counter: 0 }
//	    deployed: false            # deployed by the first send
//	    errors: { 100: "counter failure" }
//	steps:
//	  - send: { from: alice, to: counter, value: "1000000", deploy: true }
//	  - run: { transactions: 1 }
//	  - get: { account: counter, method: counter, stack: [1] }
//	  - advance: 60
//	assertions:
//	  - type: trace_order
//	    account: counter
//	    events: [deploy, received, processed]
//	  - type: final_state
//	    account: counter
//	    status: active
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - trace_contains: an event of the given type, optionally with an error
//     code or text body, appears in the trace
//   - trace_order: event types appear in the given order
//   - trace_count: an event type appears exactly N times
//   - final_state: an account ends with the given status and balance
//
// # Deterministic Testing
//
// All scenarios execute with a fixed start time (testutil.FixedNow unless
// the settings set one), FIFO order unless the settings pick a seeded
// random order, and run ids derived from run_id. The same scenario always
// yields the same trace, which RunWithGolden compares against
// testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/counter.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
