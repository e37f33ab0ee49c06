package emulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sandbox/internal/ledger"
)

const instrumentationName = "github.com/roach88/sandbox/internal/emulator"

// DefaultGasLimit is the gas limit applied to getter calls.
const DefaultGasLimit uint64 = 1_000_000_000

// GetMethodArgs describes one getter evaluation.
type GetMethodArgs struct {
	Address    ledger.Address
	Code       *ledger.Cell
	Data       *ledger.Cell
	Balance    ledger.Coins
	Now        uint32
	RandomSeed ledger.Hash
	GasLimit   uint64
	MethodID   int64
	Stack      []ledger.StackItem
	Config     *ledger.Cell
	Verbosity  Verbosity
}

// GetMethodResult is the outcome of a completed getter call.
type GetMethodResult struct {
	Success        bool
	Stack          []ledger.StackItem
	GasUsed        uint64
	ExitCode       int32
	VMLog          string
	MissingLibrary string
	Error          string
	Logs           string
}

// TransactionArgs describes one message application.
type TransactionArgs struct {
	Config       *ledger.Cell
	Libs         *ledger.Cell
	Verbosity    Verbosity
	ShardAccount ledger.ShardAccount
	Message      ledger.Message
	Now          uint32
	LT           uint64
	RandomSeed   ledger.Hash
}

// TransactionResult is the outcome of a completed emulate call.
// When Success is false the engine declined the message; Transaction and
// ShardAccount are zero.
type TransactionResult struct {
	Success             bool
	Transaction         ledger.Transaction
	ShardAccount        ledger.ShardAccount
	Actions             *ledger.Cell
	VMLog               string
	Error               string
	ExternalNotAccepted bool
	ExitCode            int32
	Logs                string
}

// Bindings is the single entry point into an engine Backend.
//
// Thread-safety: all methods are safe for concurrent use. Calls are
// serialized by one mutex for their entire duration.
type Bindings struct {
	mu        sync.Mutex
	backend   Backend
	codec     ledger.Codec
	stderr    *lineBuffer
	instances map[string]uint32
	tracer    trace.Tracer
}

// Option configures Bindings.
type Option func(*Bindings)

// WithCodec sets the codec used for payloads. Default: ledger.JSONCodec.
func WithCodec(c ledger.Codec) Option {
	return func(b *Bindings) {
		b.codec = c
	}
}

// WithTracer sets the tracer used for call spans.
// Default: the global OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bindings) {
		b.tracer = t
	}
}

// New wraps backend. The backend's stderr is captured by the Bindings from
// this point on.
func New(backend Backend, opts ...Option) *Bindings {
	b := &Bindings{
		backend:   backend,
		codec:     ledger.JSONCodec{},
		stderr:    &lineBuffer{},
		instances: make(map[string]uint32),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer == nil {
		b.tracer = otel.Tracer(instrumentationName)
	}
	backend.SetStderr(b.stderr)
	return b
}

// Codec returns the payload codec.
func (b *Bindings) Codec() ledger.Codec {
	return b.codec
}

// Close releases the backend and forgets cached emulator instances.
func (b *Bindings) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.instances = make(map[string]uint32)
	return b.backend.Close(ctx)
}

// RunGetMethod evaluates a getter against the given code and data.
func (b *Bindings) RunGetMethod(ctx context.Context, args GetMethodArgs) (result GetMethodResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.stderr.drain()

	ctx, span := b.tracer.Start(ctx, "emulator.run_get_method",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("ledger.address", args.Address.String()),
			attribute.Int64("emulator.method_id", args.MethodID),
			attribute.Int("emulator.verbosity", int(args.Verbosity)),
		))
	defer func() { endSpan(span, err) }()

	const op = "run_get_method"
	code, err := b.codec.EncodeCell(args.Code)
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "encode code", err)
	}
	data, err := b.codec.EncodeCell(args.Data)
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "encode data", err)
	}
	stack, err := b.codec.EncodeStack(args.Stack)
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "encode stack", err)
	}
	config, err := b.codec.EncodeCell(args.Config)
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "encode config", err)
	}
	gasLimit := args.GasLimit
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	params, err := json.Marshal(GetMethodParams{
		Code:      EncodePayload(code),
		Data:      EncodePayload(data),
		Verbosity: int(args.Verbosity),
		Address:   args.Address.String(),
		Unixtime:  args.Now,
		Balance:   args.Balance.String(),
		RandSeed:  EncodeSeed(args.RandomSeed),
		GasLimit:  strconv.FormatUint(gasLimit, 10),
		MethodID:  args.MethodID,
	})
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "encode params", err)
	}

	raw, err := b.backend.RunGetMethod(ctx, string(params), EncodePayload(stack), EncodePayload(config))
	if err != nil {
		return GetMethodResult{}, NewUnavailableError(op, "engine call failed", err)
	}
	var resp GetMethodResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return GetMethodResult{}, NewProtocolError(op, "parse response", err)
	}

	result = GetMethodResult{
		Success: resp.Output.Success,
		Error:   resp.Output.Error,
		VMLog:   resp.Output.VMLog,
		Logs:    prepareLogs(b.stderr.drain(), resp.Logs),
	}
	if !resp.Output.Success {
		return result, nil
	}

	result.ExitCode = resp.Output.VMExitCode
	if resp.Output.MissingLibrary != nil {
		result.MissingLibrary = *resp.Output.MissingLibrary
	}
	if result.GasUsed, err = ParseUint64(resp.Output.GasUsed); err != nil {
		return GetMethodResult{}, NewProtocolError(op, "parse gas_used", err)
	}
	stackBytes, err := DecodePayload(resp.Output.Stack)
	if err != nil {
		return GetMethodResult{}, NewProtocolError(op, "parse stack", err)
	}
	if result.Stack, err = b.codec.DecodeStack(stackBytes); err != nil {
		return GetMethodResult{}, NewProtocolError(op, "parse stack", err)
	}
	span.SetAttributes(
		attribute.Int64("emulator.exit_code", int64(result.ExitCode)),
		attribute.Int64("emulator.gas_used", int64(result.GasUsed)),
	)
	return result, nil
}

// Transaction applies a message to a shard account.
func (b *Bindings) Transaction(ctx context.Context, args TransactionArgs) (result TransactionResult, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.stderr.drain()

	dest, _ := args.Message.Destination()
	ctx, span := b.tracer.Start(ctx, "emulator.transaction",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("ledger.address", dest.String()),
			attribute.String("ledger.message_kind", args.Message.Kind.String()),
			attribute.Int64("ledger.lt", int64(args.LT)),
			attribute.Int("emulator.verbosity", int(args.Verbosity)),
		))
	defer func() { endSpan(span, err) }()

	const op = "emulate"
	handle, err := b.instance(ctx, args.Config, args.Verbosity)
	if err != nil {
		return TransactionResult{}, err
	}

	libs := ""
	if args.Libs != nil {
		data, err := b.codec.EncodeCell(args.Libs)
		if err != nil {
			return TransactionResult{}, NewProtocolError(op, "encode libs", err)
		}
		libs = EncodePayload(data)
	}
	shard, err := b.codec.EncodeShardAccount(args.ShardAccount)
	if err != nil {
		return TransactionResult{}, NewProtocolError(op, "encode shard account", err)
	}
	msg, err := b.codec.EncodeMessage(args.Message)
	if err != nil {
		return TransactionResult{}, NewProtocolError(op, "encode message", err)
	}
	params, err := json.Marshal(EmulateParams{
		Utime:    args.Now,
		LT:       strconv.FormatUint(args.LT, 10),
		RandSeed: EncodeSeed(args.RandomSeed),
	})
	if err != nil {
		return TransactionResult{}, NewProtocolError(op, "encode params", err)
	}

	raw, err := b.backend.Emulate(ctx, handle, libs, EncodePayload(shard), EncodePayload(msg), string(params))
	if err != nil {
		return TransactionResult{}, NewUnavailableError(op, "engine call failed", err)
	}
	var resp EmulateResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return TransactionResult{}, NewProtocolError(op, "parse response", err)
	}

	result = TransactionResult{
		Success: resp.Output.Success,
		VMLog:   resp.Output.VMLog,
		Logs:    prepareLogs(b.stderr.drain(), resp.Logs),
	}
	if !resp.Output.Success {
		result.Error = resp.Output.Error
		result.ExternalNotAccepted = resp.Output.ExternalNotAccepted
		result.ExitCode = resp.Output.VMExitCode
		span.SetAttributes(attribute.Bool("emulator.declined", true))
		return result, nil
	}

	txBytes, err := DecodePayload(resp.Output.Transaction)
	if err != nil {
		return TransactionResult{}, NewProtocolError(op, "parse transaction", err)
	}
	if result.Transaction, err = b.codec.DecodeTransaction(txBytes); err != nil {
		return TransactionResult{}, NewProtocolError(op, "parse transaction", err)
	}
	saBytes, err := DecodePayload(resp.Output.ShardAccount)
	if err != nil {
		return TransactionResult{}, NewProtocolError(op, "parse shard account", err)
	}
	if result.ShardAccount, err = b.codec.DecodeShardAccount(saBytes); err != nil {
		return TransactionResult{}, NewProtocolError(op, "parse shard account", err)
	}
	if resp.Output.Actions != nil {
		actBytes, err := DecodePayload(*resp.Output.Actions)
		if err != nil {
			return TransactionResult{}, NewProtocolError(op, "parse actions", err)
		}
		if result.Actions, err = b.codec.DecodeCell(actBytes); err != nil {
			return TransactionResult{}, NewProtocolError(op, "parse actions", err)
		}
	}
	result.ExitCode = result.Transaction.Description.Compute.ExitCode
	span.SetAttributes(
		attribute.Int64("emulator.exit_code", int64(result.ExitCode)),
		attribute.Int("ledger.out_messages", len(result.Transaction.OutMessages)),
	)
	return result, nil
}

// instance returns the cached emulator handle for (config, verbosity),
// creating it on first use. Caller must hold b.mu.
func (b *Bindings) instance(ctx context.Context, config *ledger.Cell, verbosity Verbosity) (uint32, error) {
	key := config.Hash().String() + ":" + strconv.Itoa(int(verbosity))
	if h, ok := b.instances[key]; ok {
		return h, nil
	}
	const op = "create_emulator"
	data, err := b.codec.EncodeCell(config)
	if err != nil {
		return 0, NewProtocolError(op, "encode config", err)
	}
	h, err := b.backend.CreateEmulator(ctx, EncodePayload(data), int(verbosity))
	if err != nil {
		return 0, NewUnavailableError(op, "engine call failed", err)
	}
	if h == 0 {
		return 0, NewUnavailableError(op, fmt.Sprintf("engine rejected config %s", config.Hash()), nil)
	}
	b.instances[key] = h
	return h, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
