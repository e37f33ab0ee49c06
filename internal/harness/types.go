package harness

import (
	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// TraceEntry is one tracked transaction: the events of the transaction
// with sequence number Seq on the named account.
type TraceEntry struct {
	Seq     int            `json:"seq"`
	Account string         `json:"account"`
	Events  []events.Event `json:"events"`
}

// AccountState is the final state of a declared account.
type AccountState struct {
	Name    string          `json:"name"`
	Status  ledger.TxStatus `json:"status"`
	Balance string          `json:"balance"`
}

// RunSummary counts what one run produced.
type RunSummary struct {
	RunID        string `json:"run_id"`
	Transactions int    `json:"transactions"`
	Rejected     int    `json:"rejected"`
	ExternalOut  int    `json:"external_out"`
	Dropped      int    `json:"dropped"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace holds the tracked transactions of all accounts by sequence
	// number.
	Trace []TraceEntry `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Accounts holds the final state of every declared account, in
	// declaration order.
	Accounts []AccountState `json:"accounts"`

	// Runs summarizes each run step.
	Runs []RunSummary `json:"runs,omitempty"`

	// Logs holds the collected engine logs of accounts declared with log.
	Logs map[string]string `json:"logs,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEntry{},
		Errors:   []string{},
		Accounts: []AccountState{},
		Logs:     make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Account returns the final state of the named account.
func (r *Result) Account(name string) (AccountState, bool) {
	for _, a := range r.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return AccountState{}, false
}

// EventsOf flattens the events of the named account in trace order. An
// empty name selects every account.
func (r *Result) EventsOf(name string) []events.Event {
	var out []events.Event
	for _, e := range r.Trace {
		if name == "" || e.Account == name {
			out = append(out, e.Events...)
		}
	}
	return out
}
