package native

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/ledger"
)

const testNow = 1_700_000_000

func newBindings(t *testing.T, opts ...Option) *emulator.Bindings {
	t.Helper()
	b := emulator.New(New(opts...))
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func addr(n uint64) ledger.Address {
	return ledger.NewAddress(0, ledger.HashFromUint64(n))
}

func activeShard(a ledger.Address, handler string, data *ledger.Cell, balance uint64) ledger.ShardAccount {
	acc := ledger.NewActiveAccount(a, Code(handler), data, ledger.NewCoins(balance))
	return ledger.ShardAccount{Account: &acc}
}

func internalMsg(from, to ledger.Address, value uint64, bounce bool, body *ledger.Cell) ledger.Message {
	return ledger.NewInternal(ledger.InternalInfo{Src: from, Dest: to, Value: ledger.NewCoins(value), Bounce: bounce}, nil, body)
}

func apply(t *testing.T, b *emulator.Bindings, cfg Config, shard ledger.ShardAccount, msg ledger.Message) emulator.TransactionResult {
	t.Helper()
	res, err := b.Transaction(context.Background(), emulator.TransactionArgs{
		Config:       cfg.Cell(),
		ShardAccount: shard,
		Message:      msg,
		Now:          testNow,
		LT:           1000,
		Verbosity:    emulator.VerbosityDebug,
	})
	require.NoError(t, err)
	return res
}

func balanceOf(sa ledger.ShardAccount) ledger.Coins {
	if sa.Account == nil {
		return ledger.Coins{}
	}
	return sa.Account.Balance
}

func outValue(tx ledger.Transaction) ledger.Coins {
	var total ledger.Coins
	for _, m := range tx.OutMessages {
		total = total.Add(m.Value())
	}
	return total
}

// assertConserved checks before + inbound = after + outbound + fees.
func assertConserved(t *testing.T, before ledger.ShardAccount, msg ledger.Message, res emulator.TransactionResult) {
	t.Helper()
	in := balanceOf(before).Add(msg.Value())
	out := balanceOf(res.ShardAccount).Add(outValue(res.Transaction)).Add(res.Transaction.TotalFees)
	assert.Equal(t, in.String(), out.String(), "value must be conserved")
}

func TestEngine_DeployCounter(t *testing.T) {
	b := newBindings(t)
	cfg := DefaultConfig()
	init := ledger.StateInit{Code: Code(HandlerCounter), Data: CounterData(0)}
	target := ledger.ContractAddress(0, init)
	uninit := ledger.NewUninitAccount(target)
	shard := ledger.ShardAccount{Account: &uninit}

	msg := ledger.NewInternal(ledger.InternalInfo{Src: addr(1), Dest: target, Value: ledger.NewCoins(1_000_000), Bounce: true}, &init, nil)
	res := apply(t, b, cfg, shard, msg)

	require.True(t, res.Success)
	tx := res.Transaction
	assert.Equal(t, ledger.StatusUninitialized, tx.OldStatus)
	assert.Equal(t, ledger.StatusActive, tx.EndStatus)
	assert.True(t, tx.Description.Compute.Success)
	assert.Equal(t, cfg.GasBase, tx.Description.Compute.GasUsed)
	assert.Contains(t, res.Logs, "=== DEBUG LOGS ===\ncounter 0 -> 1")
	assertConserved(t, shard, msg, res)

	got, err := b.RunGetMethod(context.Background(), emulator.GetMethodArgs{
		Address:  target,
		Code:     res.ShardAccount.Account.State.Code,
		Data:     res.ShardAccount.Account.State.Data,
		MethodID: ledger.MethodID("counter"),
		Config:   cfg.Cell(),
	})
	require.NoError(t, err)
	require.True(t, got.Success)
	assert.Equal(t, int32(0), got.ExitCode)
	n, err := ledger.NewStackReader(got.Stack).ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestEngine_GetterArgsAndUnknownMethod(t *testing.T) {
	b := newBindings(t)
	ctx := context.Background()
	args := emulator.GetMethodArgs{Address: addr(1), Code: Code(HandlerCounter), Data: CounterData(41)}

	args.MethodID = ledger.MethodID("counter_plus")
	args.Stack = []ledger.StackItem{ledger.IntItem(1)}
	got, err := b.RunGetMethod(ctx, args)
	require.NoError(t, err)
	n, err := ledger.NewStackReader(got.Stack).ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	args.Stack = nil
	got, err = b.RunGetMethod(ctx, args)
	require.NoError(t, err)
	assert.Equal(t, ExitStackUnderflow, got.ExitCode)

	args.MethodID = ledger.MethodID("nope")
	got, err = b.RunGetMethod(ctx, args)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, ExitUnknownMethod, got.ExitCode)
	assert.Empty(t, got.Stack)
}

func TestEngine_GetterVMLog(t *testing.T) {
	b := newBindings(t)
	args := emulator.GetMethodArgs{
		Address:  addr(1),
		Code:     Code(HandlerCounter),
		Data:     CounterData(3),
		MethodID: ledger.MethodID("counter"),
	}

	quiet, err := b.RunGetMethod(context.Background(), args)
	require.NoError(t, err)
	assert.Empty(t, quiet.VMLog)

	args.Verbosity = emulator.VerbosityInfo
	got, err := b.RunGetMethod(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, got.VMLog, fmt.Sprintf("method %d: exit code 0", args.MethodID))
}

func TestEngine_UninitWithoutInitBounces(t *testing.T) {
	b := newBindings(t)
	cfg := DefaultConfig()
	target := addr(2)
	uninit := ledger.NewUninitAccount(target)
	shard := ledger.ShardAccount{Account: &uninit}

	msg := internalMsg(addr(1), target, 10_000, true, ledger.TextCell("hi"))
	res := apply(t, b, cfg, shard, msg)

	tx := res.Transaction
	assert.Equal(t, ledger.ComputeSkipped, tx.Description.Compute.Kind)
	assert.Equal(t, ledger.SkipNoState, tx.Description.Compute.SkipReason)
	require.NotNil(t, tx.Description.Bounce)
	assert.Equal(t, ledger.BounceOK, tx.Description.Bounce.Kind)
	require.Len(t, tx.OutMessages, 1)

	bounced := tx.OutMessages[0]
	assert.True(t, bounced.Internal.Bounced)
	assert.False(t, bounced.Internal.Bounce)
	assert.Equal(t, addr(1), bounced.Internal.Dest)
	assert.Equal(t, uint64(10_000-cfg.ForwardFee), bounced.Value().Uint64())
	op, ok := bounced.Body.Opcode()
	require.True(t, ok)
	assert.Equal(t, uint32(0xffffffff), op)
	assertConserved(t, shard, msg, res)
}

func TestEngine_NonBounceableCreditsUninit(t *testing.T) {
	b := newBindings(t)
	target := addr(3)
	msg := internalMsg(addr(1), target, 5000, false, nil)

	res := apply(t, b, DefaultConfig(), ledger.ShardAccount{}, msg)
	tx := res.Transaction
	assert.Equal(t, ledger.StatusNonExisting, tx.OldStatus)
	assert.Equal(t, ledger.StatusUninitialized, tx.EndStatus)
	assert.Empty(t, tx.OutMessages)
	require.NotNil(t, res.ShardAccount.Account)
	assert.Equal(t, uint64(5000), res.ShardAccount.Account.Balance.Uint64())
}

func TestEngine_BounceToNonExistingLeavesNothing(t *testing.T) {
	b := newBindings(t)
	msg := internalMsg(addr(1), addr(4), 5000, true, nil)

	res := apply(t, b, DefaultConfig(), ledger.ShardAccount{}, msg)
	assert.Equal(t, ledger.StatusNonExisting, res.Transaction.EndStatus)
	assert.Nil(t, res.ShardAccount.Account)
	assert.Len(t, res.Transaction.OutMessages, 1)
}

func TestEngine_RejectFails(t *testing.T) {
	b := newBindings(t)
	target := addr(5)
	shard := activeShard(target, HandlerReject, RejectData(77), 0)
	msg := internalMsg(addr(1), target, 100_000, true, nil)

	res := apply(t, b, DefaultConfig(), shard, msg)
	tx := res.Transaction
	assert.False(t, tx.Description.Compute.Success)
	assert.Equal(t, int32(77), tx.Description.Compute.ExitCode)
	assert.True(t, tx.Description.Aborted)
	require.Len(t, tx.OutMessages, 1)
	assert.True(t, tx.OutMessages[0].IsBounced())
	assertConserved(t, shard, msg, res)
}

func TestEngine_EchoCarriesInboundValue(t *testing.T) {
	b := newBindings(t)
	cfg := DefaultConfig()
	target := addr(6)
	shard := activeShard(target, HandlerEcho, nil, 0)
	msg := internalMsg(addr(1), target, 100_000, true, ledger.TextCell("ping"))

	res := apply(t, b, cfg, shard, msg)
	tx := res.Transaction
	require.True(t, tx.Description.Compute.Success)
	require.NotNil(t, tx.Description.Action)
	assert.True(t, tx.Description.Action.Success)
	require.Len(t, tx.OutMessages, 1)

	gas := cfg.GasBase + cfg.GasPerAction
	assert.Equal(t, 100_000-gas*cfg.GasPrice-cfg.ForwardFee, tx.OutMessages[0].Value().Uint64())
	assert.True(t, res.ShardAccount.Account.Balance.IsZero())
	assert.Equal(t, tx.LT+1, tx.OutMessages[0].Internal.CreatedLT)
	assert.Equal(t, tx.LT+2, tx.EndLT)
	assertConserved(t, shard, msg, res)
}

func TestEngine_ActionPhaseAllOrNothing(t *testing.T) {
	b := newBindings(t, WithHandler("spender", Handler{Receive: func(c *Context) error {
		c.SetData(CounterData(99))
		c.Send(OutMessage{To: addr(1), Value: ledger.NewCoins(1)})
		c.Send(OutMessage{To: addr(1), Value: ledger.NewCoins(1_000_000_000)})
		return nil
	}}))
	cfg := DefaultConfig()
	target := addr(7)
	shard := activeShard(target, "spender", CounterData(5), 0)
	msg := internalMsg(addr(1), target, 10_000, false, nil)

	res := apply(t, b, cfg, shard, msg)
	tx := res.Transaction
	assert.True(t, tx.Description.Compute.Success)
	require.NotNil(t, tx.Description.Action)
	assert.False(t, tx.Description.Action.Success)
	assert.Equal(t, ResultNotEnoughFunds, tx.Description.Action.ResultCode)
	assert.Empty(t, tx.OutMessages, "no message leaves when the action phase fails")
	assert.Equal(t, CounterData(5).Data, res.ShardAccount.Account.State.Data.Data, "data rolled back")
	assertConserved(t, shard, msg, res)
}

func TestEngine_EmitterProducesExternalOut(t *testing.T) {
	b := newBindings(t)
	target := addr(8)
	shard := activeShard(target, HandlerEmitter, nil, 1_000_000)
	msg := internalMsg(addr(1), target, 0, false, ledger.TextCell("event"))

	res := apply(t, b, DefaultConfig(), shard, msg)
	require.Len(t, res.Transaction.OutMessages, 1)
	out := res.Transaction.OutMessages[0]
	assert.Equal(t, ledger.MessageExternalOut, out.Kind)
	assert.Equal(t, target, out.ExternalOut.Src)
	assertConserved(t, shard, msg, res)
}

func TestEngine_NoGasSkip(t *testing.T) {
	b := newBindings(t)
	target := addr(9)
	shard := activeShard(target, HandlerSink, nil, 0)
	msg := internalMsg(addr(1), target, 10, false, nil)

	res := apply(t, b, DefaultConfig(), shard, msg)
	assert.Equal(t, ledger.SkipNoGas, res.Transaction.Description.Compute.SkipReason)
	assert.Equal(t, uint64(10), res.ShardAccount.Account.Balance.Uint64())
}

func TestEngine_StorageFreezesAndDeletes(t *testing.T) {
	b := newBindings(t)
	cfg := DefaultConfig()
	cfg.StorageFee = 10
	target := addr(10)
	shard := activeShard(target, HandlerSink, nil, 50)
	shard.Account.LastPaid = testNow - 100

	msg := internalMsg(addr(1), target, 0, false, nil)
	res := apply(t, b, cfg, shard, msg)
	sp := res.Transaction.Description.Storage
	require.NotNil(t, sp)
	assert.Equal(t, uint64(50), sp.FeesCollected.Uint64())
	assert.Equal(t, ledger.StatusFrozenNow, sp.StatusChange)
	require.NotNil(t, sp.FeesDue)
	assert.Equal(t, uint64(950), sp.FeesDue.Uint64())
	assert.Equal(t, ledger.StatusFrozen, res.Transaction.EndStatus)
	assertConserved(t, shard, msg, res)

	frozen := res.ShardAccount
	frozen.Account.LastPaid = testNow - 10
	res2, err := b.Transaction(context.Background(), emulator.TransactionArgs{
		Config: cfg.Cell(), ShardAccount: frozen, Message: msg, Now: testNow, LT: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDeleted, res2.Transaction.Description.Storage.StatusChange)
	assert.Equal(t, ledger.StatusNonExisting, res2.Transaction.EndStatus)
}

func TestEngine_UnfreezeWithMatchingInit(t *testing.T) {
	b := newBindings(t)
	target := addr(11)
	init := ledger.StateInit{Code: Code(HandlerCounter), Data: CounterData(3)}
	h := ledger.FrozenHash(init.Code, init.Data)
	acc := ledger.Account{Address: target, Balance: ledger.NewCoins(1_000_000), State: ledger.AccountState{Status: ledger.AccountFrozen, StateHash: &h}}
	shard := ledger.ShardAccount{Account: &acc}

	plain := internalMsg(addr(1), target, 0, false, nil)
	res := apply(t, b, DefaultConfig(), shard, plain)
	assert.Equal(t, ledger.SkipBadState, res.Transaction.Description.Compute.SkipReason)

	withInit := ledger.NewInternal(ledger.InternalInfo{Src: addr(1), Dest: target}, &init, nil)
	res = apply(t, b, DefaultConfig(), shard, withInit)
	assert.Equal(t, ledger.StatusActive, res.Transaction.EndStatus)
	assert.Equal(t, CounterData(4).Data, res.ShardAccount.Account.State.Data.Data)
}

func TestEngine_WalletExternal(t *testing.T) {
	b := newBindings(t)
	treasury := NewTreasury(0, "alice")
	acc := ledger.NewActiveAccount(treasury.Address, treasury.Init.Code, treasury.Init.Data, ledger.NewCoins(10_000_000))
	shard := ledger.ShardAccount{Account: &acc}

	msg, err := treasury.Transfer(0, Transfer{To: addr(1), Value: ledger.NewCoins(1_000), Bounce: true})
	require.NoError(t, err)
	res := apply(t, b, DefaultConfig(), shard, msg)
	require.True(t, res.Success)
	require.Len(t, res.Transaction.OutMessages, 1)
	assert.Equal(t, uint64(1_000), res.Transaction.OutMessages[0].Value().Uint64())
	assertConserved(t, shard, msg, res)

	// Replaying the same seqno is declined without a transaction.
	res = apply(t, b, DefaultConfig(), res.ShardAccount, msg)
	assert.False(t, res.Success)
	assert.True(t, res.ExternalNotAccepted)
	assert.Equal(t, ExitBadSeqno, res.ExitCode)
	assert.Contains(t, res.Logs, "seqno mismatch")
}

func TestEngine_ExternalToMissingAccountDeclined(t *testing.T) {
	b := newBindings(t)
	msg := ledger.NewExternalIn(ledger.ExternalInInfo{Dest: addr(12)}, nil, nil)
	res := apply(t, b, DefaultConfig(), ledger.ShardAccount{}, msg)
	assert.False(t, res.Success)
	assert.True(t, res.ExternalNotAccepted)
}

func TestEngine_LogicalTime(t *testing.T) {
	b := newBindings(t)
	target := addr(13)
	shard := activeShard(target, HandlerSink, nil, 1_000_000)
	shard.LastTransactionLT = 5000
	msg := internalMsg(addr(1), target, 0, false, nil)

	res := apply(t, b, DefaultConfig(), shard, msg)
	assert.Equal(t, uint64(5001), res.Transaction.LT, "lt moves past the previous transaction")
	assert.Equal(t, uint64(5000), res.Transaction.PrevTransactionLT)
	assert.Equal(t, uint64(5001), res.ShardAccount.LastTransactionLT)
	assert.Equal(t, res.Transaction.Hash, res.ShardAccount.LastTransactionHash)
}

func TestEngine_BadConfigUnavailable(t *testing.T) {
	b := newBindings(t)
	_, err := b.Transaction(context.Background(), emulator.TransactionArgs{
		Config:  ledger.NewCell([]byte("not json")),
		Message: internalMsg(addr(1), addr(2), 0, false, nil),
	})
	require.Error(t, err)
	assert.True(t, emulator.IsUnavailable(err))
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = ParseConfig(ledger.NewCell([]byte(`{"forward_fee": 7}`)))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.ForwardFee)
	assert.Equal(t, DefaultConfig().GasBase, cfg.GasBase, "absent fields keep defaults")
}
