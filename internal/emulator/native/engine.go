package native

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/ledger"
)

// Engine is the native emulator.Backend.
//
// Handler registration is safe for concurrent use. The Backend methods
// follow the emulator.Backend contract and are serialized by Bindings.
type Engine struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	methods  map[string]map[int64]Getter

	codec     ledger.JSONCodec
	stderr    io.Writer
	emulators map[uint32]emulatorInstance
	nextID    uint32
}

type emulatorInstance struct {
	config    Config
	verbosity emulator.Verbosity
}

var _ emulator.Backend = (*Engine)(nil)

// Option configures an Engine.
type Option func(*Engine)

// WithHandler registers an extra handler at construction.
func WithHandler(name string, h Handler) Option {
	return func(e *Engine) {
		e.register(name, h)
	}
}

// WithoutBuiltins starts the engine with no handlers registered.
func WithoutBuiltins() Option {
	return func(e *Engine) {
		e.handlers = make(map[string]Handler)
		e.methods = make(map[string]map[int64]Getter)
	}
}

// New creates an engine with the builtin handlers registered.
func New(opts ...Option) *Engine {
	e := &Engine{
		handlers:  make(map[string]Handler),
		methods:   make(map[string]map[int64]Getter),
		stderr:    io.Discard,
		emulators: make(map[uint32]emulatorInstance),
	}
	for name, h := range Builtins() {
		e.register(name, h)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds or replaces the handler behind Code(name).
func (e *Engine) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.register(name, h)
}

func (e *Engine) register(name string, h Handler) {
	e.handlers[name] = h
	ids := make(map[int64]Getter, len(h.Getters))
	for getter, fn := range h.Getters {
		ids[ledger.MethodID(getter)] = fn
	}
	e.methods[name] = ids
}

// Handlers returns the registered handler names.
func (e *Engine) Handlers() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.handlers))
	for n := range e.handlers {
		names = append(names, n)
	}
	return names
}

func (e *Engine) lookup(code *ledger.Cell) (Handler, map[int64]Getter, bool) {
	if code == nil {
		return Handler{}, nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[string(code.Data)]
	return h, e.methods[string(code.Data)], ok
}

// SetStderr implements emulator.Backend.
func (e *Engine) SetStderr(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	e.stderr = w
}

// Close implements emulator.Backend.
func (e *Engine) Close(context.Context) error {
	e.emulators = make(map[uint32]emulatorInstance)
	return nil
}

// CreateEmulator implements emulator.Backend. An unparseable config yields
// handle 0.
func (e *Engine) CreateEmulator(_ context.Context, config string, verbosity int) (uint32, error) {
	cell, err := e.decodeCell(config)
	if err != nil {
		fmt.Fprintf(e.stderr, "create_emulator: %v\n", err)
		return 0, nil
	}
	cfg, err := ParseConfig(cell)
	if err != nil {
		fmt.Fprintf(e.stderr, "create_emulator: %v\n", err)
		return 0, nil
	}
	e.nextID++
	e.emulators[e.nextID] = emulatorInstance{config: cfg, verbosity: emulator.Verbosity(verbosity)}
	return e.nextID, nil
}

// RunGetMethod implements emulator.Backend.
func (e *Engine) RunGetMethod(_ context.Context, params, stack, config string) (string, error) {
	var p emulator.GetMethodParams
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return getFailure(fmt.Sprintf("invalid params: %v", err)), nil
	}
	code, err := e.decodeCell(p.Code)
	if err != nil {
		return getFailure(fmt.Sprintf("invalid code: %v", err)), nil
	}
	data, err := e.decodeCell(p.Data)
	if err != nil {
		return getFailure(fmt.Sprintf("invalid data: %v", err)), nil
	}
	cfgCell, err := e.decodeCell(config)
	if err != nil {
		return getFailure(fmt.Sprintf("invalid config: %v", err)), nil
	}
	cfg, err := ParseConfig(cfgCell)
	if err != nil {
		return getFailure(err.Error()), nil
	}
	stackBytes, err := emulator.DecodePayload(stack)
	if err != nil {
		return getFailure(fmt.Sprintf("invalid stack: %v", err)), nil
	}
	args, err := e.codec.DecodeStack(stackBytes)
	if err != nil {
		return getFailure(fmt.Sprintf("invalid stack: %v", err)), nil
	}
	addr, err := ledger.ParseAddress(p.Address)
	if err != nil {
		return getFailure(err.Error()), nil
	}
	balance, err := ledger.ParseCoins(p.Balance)
	if err != nil {
		return getFailure(err.Error()), nil
	}
	gasLimit, err := emulator.ParseUint64(p.GasLimit)
	if err != nil {
		return getFailure(err.Error()), nil
	}
	if gasLimit == 0 || gasLimit > cfg.GasLimit {
		gasLimit = cfg.GasLimit
	}

	verbosity := emulator.Verbosity(p.Verbosity)
	g := &GetContext{
		Address: addr,
		Balance: balance,
		Now:     p.Unixtime,
		Data:    data,
		Args:    ledger.NewStackReader(args),
		debug:   e.debugWriter(verbosity),
	}

	var (
		vmlog  strings.Builder
		result []ledger.StackItem
	)
	exit := ExitOK
	_, methods, ok := e.lookup(code)
	if getter := methods[p.MethodID]; ok && getter != nil {
		items, err := getter(g)
		if exit = exitCodeOf(err); exit == ExitOK {
			result = items
		}
	} else {
		exit = ExitUnknownMethod
	}

	gasUsed := cfg.GasBase + g.gas
	if gasUsed > gasLimit {
		gasUsed = gasLimit
		exit = ExitOutOfGas
		result = nil
	}
	if verbosity >= emulator.VerbosityInfo {
		fmt.Fprintf(&vmlog, "method %d: exit code %d, gas used %d", p.MethodID, exit, gasUsed)
	}

	encoded, err := e.codec.EncodeStack(result)
	if err != nil {
		return getFailure(err.Error()), nil
	}
	return marshalResponse(emulator.GetMethodResponse{
		Output: emulator.GetMethodOutput{
			Success:    true,
			Stack:      emulator.EncodePayload(encoded),
			GasUsed:    fmt.Sprintf("%d", gasUsed),
			VMExitCode: exit,
			VMLog:      vmlog.String(),
		},
		Logs: vmlog.String(),
	})
}

// Emulate implements emulator.Backend.
func (e *Engine) Emulate(_ context.Context, handle uint32, libs, shardAccount, message, params string) (string, error) {
	inst, ok := e.emulators[handle]
	if !ok {
		return "", fmt.Errorf("unknown emulator handle %d", handle)
	}
	var p emulator.EmulateParams
	if err := json.Unmarshal([]byte(params), &p); err != nil {
		return emulateFailure(fmt.Sprintf("invalid params: %v", err)), nil
	}
	lt, err := emulator.ParseUint64(p.LT)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}
	saBytes, err := emulator.DecodePayload(shardAccount)
	if err != nil {
		return emulateFailure(fmt.Sprintf("invalid shard account: %v", err)), nil
	}
	shard, err := e.codec.DecodeShardAccount(saBytes)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}
	msgBytes, err := emulator.DecodePayload(message)
	if err != nil {
		return emulateFailure(fmt.Sprintf("invalid message: %v", err)), nil
	}
	msg, err := e.codec.DecodeMessage(msgBytes)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}

	run := &txRun{
		engine:    e,
		cfg:       inst.config,
		verbosity: inst.verbosity,
		now:       p.Utime,
		lt:        lt,
	}
	out, err := run.apply(shard, msg)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}
	if out.declined != "" {
		return marshalResponse(emulator.EmulateResponse{
			Output: emulator.EmulateOutput{
				Success:             false,
				Error:               out.declined,
				ExternalNotAccepted: msg.Kind == ledger.MessageExternalIn,
				VMExitCode:          out.exitCode,
				VMLog:               out.vmlog,
			},
		})
	}

	txBytes, err := e.codec.EncodeTransaction(out.tx)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}
	newShard, err := e.codec.EncodeShardAccount(out.shard)
	if err != nil {
		return emulateFailure(err.Error()), nil
	}
	return marshalResponse(emulator.EmulateResponse{
		Output: emulator.EmulateOutput{
			Success:      true,
			Transaction:  emulator.EncodePayload(txBytes),
			ShardAccount: emulator.EncodePayload(newShard),
			VMLog:        out.vmlog,
		},
		Logs: out.vmlog,
	})
}

func (e *Engine) decodeCell(payload string) (*ledger.Cell, error) {
	if payload == "" {
		return ledger.EmptyCell(), nil
	}
	data, err := emulator.DecodePayload(payload)
	if err != nil {
		return nil, err
	}
	return e.codec.DecodeCell(data)
}

func (e *Engine) debugWriter(v emulator.Verbosity) io.Writer {
	if v < emulator.VerbosityInfo {
		return nil
	}
	return e.stderr
}

func getFailure(msg string) string {
	s, _ := marshalResponse(emulator.GetMethodResponse{Output: emulator.GetMethodOutput{Success: false, Error: msg}})
	return s
}

func emulateFailure(msg string) string {
	s, _ := marshalResponse(emulator.EmulateResponse{Output: emulator.EmulateOutput{Success: false, Error: msg}})
	return s
}

func marshalResponse(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal response: %w", err)
	}
	return string(data), nil
}
