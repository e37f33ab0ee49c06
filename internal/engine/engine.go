package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
	"github.com/roach88/sandbox/internal/store"
)

const instrumentationName = "github.com/roach88/sandbox/internal/engine"

// UnknownDestination decides what Run does with a message whose
// destination is not registered.
type UnknownDestination int

const (
	// CreateDestination registers an uninitialized account and applies the
	// message to it.
	CreateDestination UnknownDestination = iota
	// DropDestination discards the message and reports it in
	// RunResult.Dropped.
	DropDestination
)

// CoverageSink receives the VM log of every engine call while coverage
// is enabled.
type CoverageSink func(addr ledger.Address, vmLog string)

// System is the simulation registry: contracts, clock, pending queue and
// per-address subscriptions.
//
// Thread-safety model:
//   - Send, SendInternal and the administrative mutators: safe from any
//     goroutine, also while Run is draining
//   - Run: safe from any goroutine; concurrent calls are serialized
//   - Contract methods: serialized per contract
type System struct {
	bindings *emulator.Bindings
	clock    *Clock
	queue    *messageQueue
	order    Order
	runIDs   RunIDGenerator
	unknown  UnknownDestination
	journal  *store.Store
	tracer   trace.Tracer
	maxTxs   int

	runMu sync.Mutex

	mu          sync.RWMutex
	config      *ledger.Cell
	verbosity   emulator.Verbosity
	coverage    CoverageSink
	contracts   map[ledger.Address]*Contract
	ordered     []*Contract
	trackers    map[ledger.Address][]*events.Tracker
	loggers     map[ledger.Address][]*events.Logger
	names       map[ledger.Address]string
	verbosityOf map[ledger.Address]emulator.Verbosity
	errorTables map[ledger.Address]map[int32]string
}

// Option configures a System.
type Option func(*System)

// WithConfig sets the network configuration cell passed to the engine.
// Default: the empty cell, which engines read as their defaults.
func WithConfig(config *ledger.Cell) Option {
	return func(s *System) {
		s.config = config
	}
}

// WithNow sets the initial simulated time. Default: the wall clock.
func WithNow(now uint32) Option {
	return func(s *System) {
		s.clock.SetNow(now)
	}
}

// WithLT sets the initial logical time. Default: 0.
func WithLT(lt uint64) Option {
	return func(s *System) {
		s.clock.SetLT(lt)
	}
}

// WithOrder sets the message selection policy. Default: FIFO.
func WithOrder(o Order) Option {
	return func(s *System) {
		s.order = o
	}
}

// WithUnknownDestination sets the policy for unregistered destinations.
// Default: CreateDestination.
func WithUnknownDestination(p UnknownDestination) Option {
	return func(s *System) {
		s.unknown = p
	}
}

// WithVerbosity sets the default engine verbosity. Default: none.
func WithVerbosity(v emulator.Verbosity) Option {
	return func(s *System) {
		s.verbosity = v
	}
}

// WithCoverage enables coverage mode: every engine call runs at least at
// info verbosity and its VM log is passed to sink.
func WithCoverage(sink CoverageSink) Option {
	return func(s *System) {
		s.coverage = sink
	}
}

// WithJournal records every run in st.
func WithJournal(st *store.Store) Option {
	return func(s *System) {
		s.journal = st
	}
}

// WithTracer sets the tracer used for run spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *System) {
		s.tracer = t
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(s *System) {
		s.runIDs = g
	}
}

// WithMaxTransactions bounds the transactions one Run may apply.
// Default: unlimited (DefaultMaxTransactions).
func WithMaxTransactions(n int) Option {
	return func(s *System) {
		s.maxTxs = n
	}
}

// New creates a System driving the engine behind bindings. The bindings
// are shared, not owned: closing them is up to the caller.
func New(bindings *emulator.Bindings, opts ...Option) *System {
	s := &System{
		bindings:    bindings,
		clock:       NewClock(uint32(time.Now().Unix())),
		queue:       newMessageQueue(),
		order:       FIFO{},
		runIDs:      UUIDv7Generator{},
		unknown:     CreateDestination,
		maxTxs:      DefaultMaxTransactions,
		config:      ledger.EmptyCell(),
		verbosity:   emulator.VerbosityNone,
		contracts:   make(map[ledger.Address]*Contract),
		trackers:    make(map[ledger.Address][]*events.Tracker),
		loggers:     make(map[ledger.Address][]*events.Logger),
		names:       make(map[ledger.Address]string),
		verbosityOf: make(map[ledger.Address]emulator.Verbosity),
		errorTables: make(map[ledger.Address]map[int32]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(instrumentationName)
	}
	return s
}

// ResumeJournal continues transaction numbering after the highest seq in
// the journal, so seqs stay unique across processes sharing one journal.
// A System without a journal is left unchanged.
func (s *System) ResumeJournal(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}
	seq, err := s.journal.GetLastSeq(ctx)
	if err != nil {
		return fmt.Errorf("resume journal: %w", err)
	}
	s.clock.ResumeSeq(seq)
	if incomplete, err := s.journal.FindIncompleteRuns(ctx); err == nil && len(incomplete) > 0 {
		slog.Warn("journal has unfinished runs", "runs", len(incomplete), "first", incomplete[0].ID)
	}
	slog.Debug("journal resumed", "last_seq", seq)
	return nil
}

// Now returns the simulated unix time.
func (s *System) Now() uint32 {
	return s.clock.Now()
}

// LT returns the current logical time.
func (s *System) LT() uint64 {
	return s.clock.LT()
}

// Config returns the network configuration cell.
func (s *System) Config() *ledger.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update is a set of optional clock and config overrides. Nil fields are
// left unchanged.
type Update struct {
	Now    *uint32
	LT     *uint64
	Config *ledger.Cell
}

// Update applies the fields of u that are set.
func (s *System) Update(u Update) {
	if u.Now != nil {
		s.clock.SetNow(*u.Now)
	}
	if u.LT != nil {
		s.clock.SetLT(*u.LT)
	}
	if u.Config != nil {
		s.mu.Lock()
		s.config = u.Config
		s.mu.Unlock()
	}
}

// Contract returns the contract at addr, registering an uninitialized
// account on first reference. Repeated calls return the same contract.
func (s *System) Contract(addr ledger.Address) *Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contracts[addr]; ok {
		return c
	}
	acc := ledger.NewUninitAccount(addr)
	return s.registerLocked(newContract(s, addr, &acc))
}

// Lookup returns the contract at addr if it is registered.
func (s *System) Lookup(addr ledger.Address) (*Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[addr]
	return c, ok
}

// Contracts returns every registered contract in registration order.
func (s *System) Contracts() []*Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Contract, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// CreateArgs describes an explicitly deployed contract.
type CreateArgs struct {
	Code      *ledger.Cell
	Data      *ledger.Cell
	Workchain int32
	// Address overrides the address derived from code and data.
	Address *ledger.Address
	Balance ledger.Coins
}

// Create registers an active contract. Fails with CONTRACT_EXISTS if the
// address is already registered.
func (s *System) Create(args CreateArgs) (*Contract, error) {
	addr := ledger.ContractAddress(args.Workchain, ledger.StateInit{Code: args.Code, Data: args.Data})
	if args.Address != nil {
		addr = *args.Address
	}
	acc := ledger.NewActiveAccount(addr, args.Code, args.Data, args.Balance)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[addr]; ok {
		return nil, NewContractExistsError(addr)
	}
	return s.registerLocked(newContract(s, addr, &acc)), nil
}

// CreateEmpty registers an uninitialized account with zero balance. Fails
// with CONTRACT_EXISTS if the address is already registered.
func (s *System) CreateEmpty(addr ledger.Address) (*Contract, error) {
	acc := ledger.NewUninitAccount(addr)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[addr]; ok {
		return nil, NewContractExistsError(addr)
	}
	return s.registerLocked(newContract(s, addr, &acc)), nil
}

func (s *System) registerLocked(c *Contract) *Contract {
	s.contracts[c.address] = c
	s.ordered = append(s.ordered, c)
	slog.Debug("contract registered", "address", c.address.String())
	return c
}

// Override resets the contract at addr to an active account holding code,
// data and balance. The contract is registered if needed.
func (s *System) Override(addr ledger.Address, code, data *ledger.Cell, balance ledger.Coins) {
	s.Contract(addr).Override(code, data, balance)
}

// Send enqueues an external-in message. Any other kind fails with
// INVALID_MESSAGE_KIND.
func (s *System) Send(msg ledger.Message) error {
	if msg.Kind != ledger.MessageExternalIn {
		return NewInvalidMessageKindError(msg.Kind)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	s.queue.Push(msg)
	return nil
}

// InternalMessage is an internal message without the fields the System
// fills in on injection.
type InternalMessage struct {
	To     ledger.Address
	Value  ledger.Coins
	Bounce bool
	Init   *ledger.StateInit
	Body   *ledger.Cell
}

// SendInternal enqueues an internal message from any source address, as if
// from sent it. The message is stamped with the current time.
func (s *System) SendInternal(from ledger.Address, m InternalMessage) error {
	msg := ledger.NewInternal(ledger.InternalInfo{
		Src:         from,
		Dest:        m.To,
		Value:       m.Value,
		Bounce:      m.Bounce,
		IHRDisabled: true,
		CreatedAt:   s.clock.Now(),
	}, m.Init, m.Body)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("send internal: %w", err)
	}
	s.queue.Push(msg)
	return nil
}

// Pending returns the queued messages in queue order.
func (s *System) Pending() []ledger.Message {
	return s.queue.Snapshot()
}

// Track subscribes a new Tracker to the transactions of addr.
func (s *System) Track(addr ledger.Address) *events.Tracker {
	t := events.NewTracker(addr)
	s.mu.Lock()
	s.trackers[addr] = append(s.trackers[addr], t)
	s.mu.Unlock()
	return t
}

// Log subscribes a new Logger to the transactions of addr.
func (s *System) Log(addr ledger.Address) *events.Logger {
	l := events.NewLogger(addr)
	s.mu.Lock()
	s.loggers[addr] = append(s.loggers[addr], l)
	s.mu.Unlock()
	return l
}

// SetName sets the display name of addr used in tracked messages.
func (s *System) SetName(addr ledger.Address, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[addr] = name
}

// Name returns the display name of addr, if one is set.
func (s *System) Name(addr ledger.Address) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.names[addr]
	return n, ok
}

// SetVerbosity overrides the engine verbosity for addr.
func (s *System) SetVerbosity(addr ledger.Address, v emulator.Verbosity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verbosityOf[addr] = v
}

// SetContractErrors sets the exit code messages of the contract at addr.
// Failed events of its transactions carry the matching message.
func (s *System) SetContractErrors(addr ledger.Address, table map[int32]string) {
	cp := make(map[int32]string, len(table))
	for k, v := range table {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorTables[addr] = cp
}

// ContractError implements events.Resolver.
func (s *System) ContractError(addr ledger.Address, code int32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.errorTables[addr][code]
	return msg, ok
}

// DisplayName implements events.Resolver.
func (s *System) DisplayName(addr ledger.Address) string {
	if n, ok := s.Name(addr); ok {
		return n
	}
	return addr.String()
}

var _ events.Resolver = (*System)(nil)

func (s *System) verbosityFor(addr ledger.Address) emulator.Verbosity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verbosityOf[addr]
	if !ok {
		v = s.verbosity
	}
	if s.coverage != nil {
		v = v.AtLeast(emulator.VerbosityInfo)
	}
	return v
}

func (s *System) reportCoverage(addr ledger.Address, vmLog string) {
	s.mu.RLock()
	sink := s.coverage
	s.mu.RUnlock()
	if sink != nil && vmLog != "" {
		sink(addr, vmLog)
	}
}

func (s *System) subscribers(addr ledger.Address) ([]*events.Tracker, []*events.Logger) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*events.Tracker(nil), s.trackers[addr]...), append([]*events.Logger(nil), s.loggers[addr]...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func spanAttrs(msg ledger.Message, dest ledger.Address) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("ledger.address", dest.String()),
		attribute.String("ledger.message_kind", msg.Kind.String()),
	)
}
