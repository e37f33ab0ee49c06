package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"

	"github.com/roach88/sandbox/internal/config"
	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/emulator/native"
	"github.com/roach88/sandbox/internal/emulator/wasm"
	"github.com/roach88/sandbox/internal/engine"
	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
	"github.com/roach88/sandbox/internal/store"
	"github.com/roach88/sandbox/internal/testutil"
)

// DefaultRunID prefixes the run ids of scenarios that set none.
const DefaultRunID = "scenario"

// Option configures a scenario execution.
type Option func(*options)

type options struct {
	journal *store.Store
	logger  *slog.Logger
}

// WithJournal records the scenario's runs in st. It takes precedence over
// a journal named in the scenario settings.
func WithJournal(st *store.Store) Option {
	return func(o *options) {
		o.journal = st
	}
}

// WithLogger receives the step-by-step debug log of the scenario. Without
// it the log is discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Harness executes one scenario against a System backed by the native
// engine, or by the WebAssembly engine the settings name.
type Harness struct {
	sys      *engine.System
	scenario *Scenario
	clock    *testutil.DeterministicClock
	accounts map[string]*account
	order    []*account
	logger   *slog.Logger
}

// account is a declared account resolved to its address.
type account struct {
	spec    AccountSpec
	address ledger.Address
	// init is nil for outside parties.
	init    *ledger.StateInit
	tracker *events.Tracker
	log     *events.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh System with a deterministic clock and run
// ids, so the same scenario always produces the same trace.
//
// Execution flow:
// 1. Resolve settings and create the System
// 2. Create, name and track the declared accounts
// 3. Execute steps, recording expectation failures
// 4. Collect the trace and final account states
// 5. Evaluate assertions
//
// Expectation and assertion failures are reported in the result; an error
// means the scenario could not be executed.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	ctx := context.Background()

	settings, err := config.FromMap(scenario.Name, scenario.Settings)
	if err != nil {
		return nil, fmt.Errorf("scenario settings: %w", err)
	}
	if settings.Now == nil {
		now := testutil.FixedNow
		settings.Now = &now
	}

	journal := o.journal
	if journal == nil && settings.Journal != "" {
		st, err := store.Open(settings.Journal)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		defer st.Close()
		journal = st
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}
	runIDs := testutil.NewRunIDGenerator(runID)
	engineOpts := append(settings.Options(), engine.WithRunIDGenerator(runIDs))
	if journal != nil {
		runs, err := journal.ReadRuns(ctx)
		if err != nil {
			return nil, fmt.Errorf("read journal: %w", err)
		}
		runIDs.Resume(len(runs))
		engineOpts = append(engineOpts, engine.WithJournal(journal))
	}

	backend, err := openBackend(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	bindings := emulator.New(backend)
	defer bindings.Close(ctx)
	sys := engine.New(bindings, engineOpts...)
	if err := sys.ResumeJournal(ctx); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	}
	h := &Harness{
		sys:      sys,
		scenario: scenario,
		clock:    testutil.NewDeterministicClock(*settings.Now),
		accounts: make(map[string]*account, len(scenario.Accounts)),
		logger:   logger,
	}

	if err := h.setupAccounts(settings.EngineVerbosity()); err != nil {
		return nil, fmt.Errorf("failed to set up accounts: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}

	h.collect(result)

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// openBackend returns the WebAssembly engine at s.Engine, or the native
// engine when none is set.
func openBackend(ctx context.Context, s config.Settings) (emulator.Backend, error) {
	if s.Engine == "" {
		return native.New(), nil
	}
	b, err := wasm.LoadFile(ctx, s.Engine)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// setupAccounts resolves every declared account to its address, creates
// the deployed ones and subscribes a tracker to each.
func (h *Harness) setupAccounts(verbosity emulator.Verbosity) error {
	byAddress := make(map[ledger.Address]string)
	for _, spec := range h.scenario.Accounts {
		a := &account{spec: spec}
		balance, err := parseCoins(spec.Balance)
		if err != nil {
			return fmt.Errorf("%s: %w", spec.Name, err)
		}

		switch {
		case spec.Handler == "":
			a.address = testutil.Address(spec.Workchain, spec.Name)
			if !balance.IsZero() {
				h.sys.Contract(a.address).SetBalance(balance)
			}
		default:
			data, err := h.dataCell(spec.Data)
			if err != nil {
				return fmt.Errorf("%s: %w", spec.Name, err)
			}
			a.init = &ledger.StateInit{Code: native.Code(spec.Handler), Data: data}
			if spec.Deployed == nil || *spec.Deployed {
				a.address = testutil.Address(spec.Workchain, spec.Name)
				if _, err := h.sys.Create(engine.CreateArgs{
					Code:      a.init.Code,
					Data:      a.init.Data,
					Workchain: spec.Workchain,
					Address:   &a.address,
					Balance:   balance,
				}); err != nil {
					return fmt.Errorf("%s: %w", spec.Name, err)
				}
			} else {
				a.address = ledger.ContractAddress(spec.Workchain, *a.init)
				if !balance.IsZero() {
					h.sys.Contract(a.address).SetBalance(balance)
				}
			}
		}

		if other, dup := byAddress[a.address]; dup {
			return fmt.Errorf("accounts %s and %s share address %s", other, spec.Name, a.address)
		}
		byAddress[a.address] = spec.Name

		h.sys.SetName(a.address, spec.Name)
		if len(spec.Errors) > 0 {
			h.sys.SetContractErrors(a.address, spec.Errors)
		}
		a.tracker = h.sys.Track(a.address)
		if spec.Log {
			h.sys.SetVerbosity(a.address, verbosity.AtLeast(emulator.VerbosityInfo))
			a.log = h.sys.Log(a.address)
		}

		h.accounts[spec.Name] = a
		h.order = append(h.order, a)
		h.logger.Debug("account ready", "name", spec.Name, "address", a.address.String(), "handler", spec.Handler)
	}
	return nil
}

// dataCell builds the initial data of a handler. Forward targets are
// declared earlier, so their addresses are known.
func (h *Harness) dataCell(d DataSpec) (*ledger.Cell, error) {
	switch {
	case d.Counter != nil:
		return native.CounterData(*d.Counter), nil
	case d.Forward != "":
		target, ok := h.accounts[d.Forward]
		if !ok {
			return nil, fmt.Errorf("forward target %q is not declared", d.Forward)
		}
		return native.ForwardData(target.address), nil
	case d.Reject != nil:
		return native.RejectData(*d.Reject), nil
	case d.Wallet != "":
		return native.WalletData(d.Wallet), nil
	case d.Text != "":
		return ledger.TextCell(d.Text), nil
	default:
		return ledger.EmptyCell(), nil
	}
}

// executeStep runs one step. Failed expectations are added to result;
// errors are reserved for steps that could not run.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	switch {
	case step.Send != nil:
		return h.send(i, step.Send)
	case step.External != nil:
		return h.external(i, step.External)
	case step.Run != nil:
		return h.run(ctx, i, step.Run, result)
	case step.Get != nil:
		h.get(ctx, i, step.Get, result)
		return nil
	case step.Advance != nil:
		h.clock.Set(h.sys.Now())
		now := h.clock.Advance(*step.Advance)
		h.sys.Update(engine.Update{Now: &now})
		h.logger.Debug("clock advanced", "step", i, "now", now)
		return nil
	default:
		return fmt.Errorf("empty step")
	}
}

func (h *Harness) send(i int, s *SendStep) error {
	from, to := h.accounts[s.From], h.accounts[s.To]
	value, err := parseCoins(s.Value)
	if err != nil {
		return err
	}
	msg := engine.InternalMessage{
		To:     to.address,
		Value:  value,
		Bounce: s.Bounce,
		Body:   textBody(s.Body),
	}
	if s.Deploy {
		msg.Init = to.stateInit()
	}
	h.logger.Debug("send", "step", i, "from", s.From, "to", s.To, "value", value.String())
	return h.sys.SendInternal(from.address, msg)
}

func (h *Harness) external(i int, s *ExternalStep) error {
	transfers := make([]native.Transfer, 0, len(s.Transfers))
	for _, tr := range s.Transfers {
		value, err := parseCoins(tr.Value)
		if err != nil {
			return err
		}
		to := h.accounts[tr.To]
		t := native.Transfer{
			To:     to.address,
			Value:  value,
			Bounce: tr.Bounce,
			Body:   textBody(tr.Body),
			Mode:   native.SendDefault,
		}
		if tr.Deploy {
			t.Init = to.stateInit()
		}
		transfers = append(transfers, t)
	}
	body, err := native.WalletTransferBody(s.Seqno, transfers...)
	if err != nil {
		return err
	}
	h.logger.Debug("external", "step", i, "to", s.To, "seqno", s.Seqno, "transfers", len(transfers))
	return h.sys.Send(ledger.NewExternalIn(ledger.ExternalInInfo{Dest: h.accounts[s.To].address}, nil, body))
}

func (h *Harness) run(ctx context.Context, i int, s *RunStep, result *Result) error {
	res, err := h.sys.Run(ctx)
	if err != nil {
		return err
	}
	summary := RunSummary{
		RunID:        res.RunID,
		Transactions: len(res.Transactions),
		Rejected:     len(res.Rejected),
		ExternalOut:  len(res.ExternalOut),
		Dropped:      len(res.Dropped),
	}
	result.Runs = append(result.Runs, summary)
	h.logger.Debug("run", "step", i, "run_id", res.RunID, "transactions", summary.Transactions)

	expect := func(what string, want *int, got int) {
		if want != nil && *want != got {
			result.AddError(fmt.Sprintf("steps[%d]: expected %d %s, got %d", i, *want, what, got))
		}
	}
	expect("transactions", s.Transactions, summary.Transactions)
	expect("rejected messages", s.Rejected, summary.Rejected)
	expect("external-out messages", s.ExternalOut, summary.ExternalOut)
	expect("dropped messages", s.Dropped, summary.Dropped)
	return nil
}

func (h *Harness) get(ctx context.Context, i int, s *GetStep, result *Result) {
	a := h.accounts[s.Account]
	c, ok := h.sys.Lookup(a.address)
	if !ok {
		result.AddError(fmt.Sprintf("steps[%d]: %s does not exist", i, s.Account))
		return
	}
	args := make([]ledger.StackItem, len(s.Args))
	for j, v := range s.Args {
		args[j] = ledger.IntItem(v)
	}
	res, err := c.Get(ctx, s.Method, args...)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: get %s on %s: %v", i, s.Method, s.Account, err))
		return
	}
	if !res.Success {
		result.AddError(fmt.Sprintf("steps[%d]: get %s on %s failed: %s", i, s.Method, s.Account, res.Error))
		return
	}
	if res.ExitCode != s.ExitCode {
		result.AddError(fmt.Sprintf("steps[%d]: get %s on %s: expected exit code %d, got %d", i, s.Method, s.Account, s.ExitCode, res.ExitCode))
		return
	}
	if s.Stack == nil {
		return
	}
	got, err := intStack(res.Stack)
	if err != nil {
		result.AddError(fmt.Sprintf("steps[%d]: get %s on %s: %v", i, s.Method, s.Account, err))
		return
	}
	if !slices.Equal(got, s.Stack) {
		result.AddError(fmt.Sprintf("steps[%d]: get %s on %s: expected stack %v, got %v", i, s.Method, s.Account, s.Stack, got))
	}
}

// collect drains the trackers and loggers into result and records the
// final state of every declared account.
func (h *Harness) collect(result *Result) {
	for _, a := range h.order {
		for _, tx := range a.tracker.Transactions() {
			result.Trace = append(result.Trace, TraceEntry{
				Seq:     tx.Seq,
				Account: a.spec.Name,
				Events:  tx.Events,
			})
		}
		if a.log != nil {
			result.Logs[a.spec.Name] = a.log.Collect()
		}

		state := AccountState{Name: a.spec.Name, Status: ledger.StatusNonExisting, Balance: "0"}
		if c, ok := h.sys.Lookup(a.address); ok {
			state.Status = c.Status()
			state.Balance = c.Balance().String()
		}
		result.Accounts = append(result.Accounts, state)
	}
	sort.SliceStable(result.Trace, func(i, j int) bool {
		return result.Trace[i].Seq < result.Trace[j].Seq
	})
}

func (a *account) stateInit() *ledger.StateInit {
	init := *a.init
	return &init
}

func parseCoins(s string) (ledger.Coins, error) {
	if s == "" {
		return ledger.Coins{}, nil
	}
	return ledger.ParseCoins(s)
}

func textBody(text string) *ledger.Cell {
	if text == "" {
		return nil
	}
	return ledger.TextCell(text)
}

func intStack(r *ledger.StackReader) ([]int64, error) {
	if r == nil {
		return []int64{}, nil
	}
	out := make([]int64, 0, r.Remaining())
	for r.Remaining() > 0 {
		v, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
