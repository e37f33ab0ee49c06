package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sandbox/internal/emulator/native"
	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// Scenario defines a ledger scenario: accounts to set up, steps that send
// messages and drain the queue, and assertions over the resulting trace
// and final account states.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Settings configures the System, with the same fields as a settings
	// file. Without a "now" the scenario starts at testutil.FixedNow.
	Settings map[string]any `yaml:"settings,omitempty"`

	// RunID prefixes the ids of the scenario's runs. Defaults to
	// "scenario".
	RunID string `yaml:"run_id,omitempty"`

	// Accounts are the named parties of the scenario, in display order.
	Accounts []AccountSpec `yaml:"accounts"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// AccountSpec declares a named account. Every account is tracked.
//
// An account without a handler is an outside party: it has a stable
// address derived from its name, is never deployed, and exists on the
// ledger only once something is sent to it.
type AccountSpec struct {
	Name string `yaml:"name"`

	// Handler is the native handler behind the account's code.
	Handler string `yaml:"handler,omitempty"`

	// Data is the handler's initial data.
	Data DataSpec `yaml:"data,omitempty"`

	// Balance is the initial balance in nano units. Defaults to 0.
	Balance string `yaml:"balance,omitempty"`

	Workchain int32 `yaml:"workchain,omitempty"`

	// Deployed controls whether the account is created active before the
	// first step. Defaults to true. An undeployed account sits at the
	// address derived from its state init and is deployed by a send step
	// with deploy set.
	Deployed *bool `yaml:"deployed,omitempty"`

	// Errors maps exit codes to the messages failed events carry.
	Errors map[int32]string `yaml:"errors,omitempty"`

	// Log collects the account's engine logs into Result.Logs.
	Log bool `yaml:"log,omitempty"`
}

// DataSpec selects the initial data of a handler. At most one field is
// set; none means empty data.
type DataSpec struct {
	Counter *uint64 `yaml:"counter,omitempty"`
	// Forward names the account a forward handler sends to.
	Forward string `yaml:"forward,omitempty"`
	Reject  *int32 `yaml:"reject,omitempty"`
	// Wallet is the wallet id.
	Wallet string `yaml:"wallet,omitempty"`
	// Text is stored as a text comment.
	Text string `yaml:"text,omitempty"`
}

func (d DataSpec) count() int {
	n := 0
	if d.Counter != nil {
		n++
	}
	if d.Forward != "" {
		n++
	}
	if d.Reject != nil {
		n++
	}
	if d.Wallet != "" {
		n++
	}
	if d.Text != "" {
		n++
	}
	return n
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	Send     *SendStep     `yaml:"send,omitempty"`
	External *ExternalStep `yaml:"external,omitempty"`
	Run      *RunStep      `yaml:"run,omitempty"`
	Get      *GetStep      `yaml:"get,omitempty"`
	Advance  *uint32       `yaml:"advance,omitempty"`
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Send != nil, s.External != nil, s.Run != nil, s.Get != nil, s.Advance != nil} {
		if set {
			n++
		}
	}
	return n
}

// SendStep enqueues an internal message.
type SendStep struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Value  string `yaml:"value,omitempty"`
	Bounce bool   `yaml:"bounce,omitempty"`
	// Body is sent as a text comment. Empty sends no body.
	Body string `yaml:"body,omitempty"`
	// Deploy attaches the destination's state init.
	Deploy bool `yaml:"deploy,omitempty"`
}

// ExternalStep enqueues an external message asking a wallet account to
// make transfers.
type ExternalStep struct {
	To        string         `yaml:"to"`
	Seqno     uint32         `yaml:"seqno"`
	Transfers []TransferSpec `yaml:"transfers,omitempty"`
}

// TransferSpec is one transfer of an ExternalStep.
type TransferSpec struct {
	To     string `yaml:"to"`
	Value  string `yaml:"value"`
	Bounce bool   `yaml:"bounce,omitempty"`
	Body   string `yaml:"body,omitempty"`
	Deploy bool   `yaml:"deploy,omitempty"`
}

// RunStep drains the queue. Set counts are checked against the run.
type RunStep struct {
	Transactions *int `yaml:"transactions,omitempty"`
	Rejected     *int `yaml:"rejected,omitempty"`
	ExternalOut  *int `yaml:"external_out,omitempty"`
	Dropped      *int `yaml:"dropped,omitempty"`
}

// GetStep calls a getter and checks its outcome.
type GetStep struct {
	Account string  `yaml:"account"`
	Method  string  `yaml:"method"`
	Args    []int64 `yaml:"args,omitempty"`
	// ExitCode is the expected exit code. Defaults to 0.
	ExitCode int32 `yaml:"exit_code,omitempty"`
	// Stack is the expected integer stack. Nil skips the check.
	Stack []int64 `yaml:"stack,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event of the account matches
	// - "trace_order": event types appear in order (gaps allowed)
	// - "trace_count": an event type appears exactly Count times
	// - "final_state": the account ends with Status and Balance
	Type string `yaml:"type"`

	// Account restricts trace assertions to one account. Empty means all.
	Account string `yaml:"account,omitempty"`

	// Event is the event type (trace_contains, trace_count).
	Event events.Type `yaml:"event,omitempty"`

	// ErrorCode must match the event's error code (trace_contains).
	ErrorCode *int32 `yaml:"error_code,omitempty"`

	// Body must match the text body of the event's message (trace_contains).
	Body string `yaml:"body,omitempty"`

	// Events is the expected event order (trace_order).
	Events []events.Type `yaml:"events,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Status and Balance are the expected final state (final_state).
	// Unset fields are not checked.
	Status  ledger.TxStatus `yaml:"status,omitempty"`
	Balance string          `yaml:"balance,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// name a step or assertion uses is declared.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Accounts) == 0 {
		return fmt.Errorf("accounts list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	accounts := make(map[string]AccountSpec, len(s.Accounts))
	handlers := native.Builtins()
	for i, a := range s.Accounts {
		if err := validateAccount(i, a, accounts, handlers); err != nil {
			return err
		}
		accounts[a.Name] = a
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, accounts); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, accounts); err != nil {
			return err
		}
	}
	return nil
}

// validateAccount checks one account against the accounts declared before
// it. Forward targets must be declared earlier.
func validateAccount(i int, a AccountSpec, declared map[string]AccountSpec, handlers map[string]native.Handler) error {
	if a.Name == "" {
		return fmt.Errorf("accounts[%d]: name is required", i)
	}
	if _, dup := declared[a.Name]; dup {
		return fmt.Errorf("accounts[%d]: duplicate account %q", i, a.Name)
	}
	if a.Handler == "" {
		if a.Data.count() > 0 || a.Deployed != nil || len(a.Errors) > 0 {
			return fmt.Errorf("accounts[%d]: %s has no handler; data, deployed and errors need one", i, a.Name)
		}
	} else if _, ok := handlers[a.Handler]; !ok {
		return fmt.Errorf("accounts[%d]: unknown handler %q", i, a.Handler)
	}
	if a.Data.count() > 1 {
		return fmt.Errorf("accounts[%d]: data sets more than one field", i)
	}
	if a.Data.Forward != "" {
		if _, ok := declared[a.Data.Forward]; !ok {
			return fmt.Errorf("accounts[%d]: forward target %q is not declared before %s", i, a.Data.Forward, a.Name)
		}
	}
	if a.Balance != "" {
		if _, err := ledger.ParseCoins(a.Balance); err != nil {
			return fmt.Errorf("accounts[%d]: balance: %w", i, err)
		}
	}
	return nil
}

func validateStep(i int, step Step, accounts map[string]AccountSpec) error {
	if step.kinds() != 1 {
		return fmt.Errorf("steps[%d]: exactly one of send, external, run, get or advance is required", i)
	}
	known := func(field, name string) error {
		if name == "" {
			return fmt.Errorf("steps[%d]: %s is required", i, field)
		}
		if _, ok := accounts[name]; !ok {
			return fmt.Errorf("steps[%d]: %s %q is not a declared account", i, field, name)
		}
		return nil
	}
	coins := func(field, v string) error {
		if v == "" {
			return nil
		}
		if _, err := ledger.ParseCoins(v); err != nil {
			return fmt.Errorf("steps[%d]: %s: %w", i, field, err)
		}
		return nil
	}
	deployable := func(name string) error {
		if accounts[name].Handler == "" {
			return fmt.Errorf("steps[%d]: cannot deploy %s: it has no handler", i, name)
		}
		return nil
	}

	switch {
	case step.Send != nil:
		if err := known("send.from", step.Send.From); err != nil {
			return err
		}
		if err := known("send.to", step.Send.To); err != nil {
			return err
		}
		if step.Send.Deploy {
			if err := deployable(step.Send.To); err != nil {
				return err
			}
		}
		return coins("send.value", step.Send.Value)
	case step.External != nil:
		if err := known("external.to", step.External.To); err != nil {
			return err
		}
		if h := accounts[step.External.To].Handler; h != native.HandlerWallet {
			return fmt.Errorf("steps[%d]: external.to %q is not a wallet", i, step.External.To)
		}
		if len(step.External.Transfers) > native.MaxTransfers {
			return fmt.Errorf("steps[%d]: at most %d transfers are allowed", i, native.MaxTransfers)
		}
		for j, tr := range step.External.Transfers {
			field := fmt.Sprintf("external.transfers[%d]", j)
			if err := known(field+".to", tr.To); err != nil {
				return err
			}
			if tr.Deploy {
				if err := deployable(tr.To); err != nil {
					return err
				}
			}
			if err := coins(field+".value", tr.Value); err != nil {
				return err
			}
		}
	case step.Get != nil:
		if err := known("get.account", step.Get.Account); err != nil {
			return err
		}
		if step.Get.Method == "" {
			return fmt.Errorf("steps[%d]: get.method is required", i)
		}
	case step.Run != nil:
		for _, n := range []*int{step.Run.Transactions, step.Run.Rejected, step.Run.ExternalOut, step.Run.Dropped} {
			if n != nil && *n < 0 {
				return fmt.Errorf("steps[%d]: run counts must be non-negative", i)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, accounts map[string]AccountSpec) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Account != "" {
		if _, ok := accounts[a.Account]; !ok {
			return fmt.Errorf("assertions[%d]: account %q is not declared", index, a.Account)
		}
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for final_state", index)
		}
		if a.Status == "" && a.Balance == "" {
			return fmt.Errorf("assertions[%d]: status or balance is required for final_state", index)
		}
		if a.Balance != "" {
			if _, err := ledger.ParseCoins(a.Balance); err != nil {
				return fmt.Errorf("assertions[%d]: balance: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
