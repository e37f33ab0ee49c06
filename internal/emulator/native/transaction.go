package native

import (
	"fmt"
	"strings"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/ledger"
)

// declinedExternal is the engine's answer when an external message is not
// accepted. No transaction is produced.
const declinedExternal = "External message not accepted by smart contract"

var bouncePrefix = []byte{0xff, 0xff, 0xff, 0xff}

type txOutcome struct {
	tx       ledger.Transaction
	shard    ledger.ShardAccount
	declined string
	exitCode int32
	vmlog    string
}

// txRun applies one message to one account.
type txRun struct {
	engine    *Engine
	cfg       Config
	verbosity emulator.Verbosity
	now       uint32
	lt        uint64
	log       strings.Builder
}

func (r *txRun) logf(level emulator.Verbosity, format string, args ...any) {
	if r.verbosity < level {
		return
	}
	if r.log.Len() > 0 {
		r.log.WriteByte('\n')
	}
	fmt.Fprintf(&r.log, format, args...)
}

func (r *txRun) apply(shard ledger.ShardAccount, msg ledger.Message) (txOutcome, error) {
	switch msg.Kind {
	case ledger.MessageInternal, ledger.MessageExternalIn:
	case ledger.MessageExternalOut:
		return txOutcome{}, fmt.Errorf("external-out messages cannot be applied")
	default:
		return txOutcome{}, fmt.Errorf("unknown message kind %d", int(msg.Kind))
	}
	dest, _ := msg.Destination()

	var acc *ledger.Account
	if shard.Account != nil {
		if shard.Account.Address != dest {
			return txOutcome{}, fmt.Errorf("message to %s applied to account %s", dest, shard.Account.Address)
		}
		cp := *shard.Account
		acc = &cp
	}
	oldStatus := ledger.TxStatusOf(acc)
	lt := r.startLT(shard, acc, msg)
	internal := msg.Kind == ledger.MessageInternal
	inValue := msg.Value()
	bounceable := internal && msg.Internal.Bounce && !msg.Internal.Bounced

	desc := ledger.Description{Kind: ledger.DescriptionGeneric, CreditFirst: internal && !bounceable}
	createdByCredit := false
	storage := func() {
		desc.Storage = r.storagePhase(&acc)
	}
	credit := func() {
		if !internal {
			return
		}
		if acc == nil {
			fresh := ledger.NewUninitAccount(dest)
			acc = &fresh
			createdByCredit = true
		}
		acc.Balance = acc.Balance.Add(inValue)
		desc.Credit = &ledger.CreditPhase{Credit: inValue}
	}
	if desc.CreditFirst {
		credit()
		storage()
	} else {
		storage()
		credit()
	}

	compute, ctx, state := r.computePhase(acc, msg)
	desc.Compute = compute
	if !internal && !(compute.Kind == ledger.ComputeVM && compute.Success) {
		r.logf(emulator.VerbosityDebug, "external message declined: compute %s exit=%d", compute.Kind, compute.ExitCode)
		return txOutcome{declined: declinedExternal, exitCode: compute.ExitCode, vmlog: r.log.String()}, nil
	}
	if compute.Kind == ledger.ComputeVM {
		acc.Balance = acc.Balance.SubSaturating(compute.GasFees)
	}

	var out []ledger.Message
	fwdFees := ledger.Coins{}
	actionOK := false
	if compute.Success {
		phase, msgs, destroy := r.actionPhase(acc, ctx, inValue, compute.GasFees, lt)
		desc.Action = &phase
		if phase.Success {
			actionOK = true
			out = msgs
			fwdFees = phase.TotalFwdFees
			state.Data = ctx.Data()
			acc.State = state
			if destroy && acc.Balance.IsZero() {
				desc.Destroyed = true
			}
		}
	}

	bounceFees := ledger.Coins{}
	if bounceable && !actionOK && acc != nil {
		phase, bounced := r.bouncePhase(acc, msg, lt+1+uint64(len(out)))
		desc.Bounce = &phase
		if bounced != nil {
			out = append(out, *bounced)
			bounceFees = phase.ForwardFees
		}
	}
	desc.Aborted = !actionOK

	if desc.Destroyed || (createdByCredit && acc != nil && acc.State.Status == ledger.AccountUninit && acc.Balance.IsZero()) {
		acc = nil
	}
	if acc != nil {
		acc.LastPaid = r.now
		acc.LastTransLT = lt
	}

	storageFees := ledger.Coins{}
	if desc.Storage != nil {
		storageFees = desc.Storage.FeesCollected
	}
	tx := ledger.Transaction{
		Address:             dest,
		LT:                  lt,
		EndLT:               lt + 1 + uint64(len(out)),
		Now:                 r.now,
		PrevTransactionLT:   shard.LastTransactionLT,
		PrevTransactionHash: shard.LastTransactionHash,
		OldStatus:           oldStatus,
		EndStatus:           ledger.TxStatusOf(acc),
		InMessage:           &msg,
		OutMessages:         out,
		TotalFees:           ledger.SumCoins(storageFees, compute.GasFees, fwdFees, bounceFees),
		Description:         desc,
	}
	if err := tx.Seal(); err != nil {
		return txOutcome{}, err
	}
	r.logf(emulator.VerbosityDebug, "transaction lt=%d status %s -> %s fees=%s", lt, tx.OldStatus, tx.EndStatus, tx.TotalFees)

	return txOutcome{
		tx: tx,
		shard: ledger.ShardAccount{
			Account:             acc,
			LastTransactionLT:   lt,
			LastTransactionHash: tx.Hash,
		},
		exitCode: compute.ExitCode,
		vmlog:    r.log.String(),
	}, nil
}

// startLT picks a logical time later than everything the transaction
// depends on.
func (r *txRun) startLT(shard ledger.ShardAccount, acc *ledger.Account, msg ledger.Message) uint64 {
	lt := r.lt
	if shard.LastTransactionLT >= lt {
		lt = shard.LastTransactionLT + 1
	}
	if acc != nil && acc.LastTransLT >= lt {
		lt = acc.LastTransLT + 1
	}
	if msg.Kind == ledger.MessageInternal && msg.Internal.CreatedLT >= lt {
		lt = msg.Internal.CreatedLT + 1
	}
	return lt
}

// storagePhase charges rent since the account last paid. An active account
// that cannot pay is frozen; any other account that cannot pay is deleted.
func (r *txRun) storagePhase(accp **ledger.Account) *ledger.StoragePhase {
	sp := &ledger.StoragePhase{StatusChange: ledger.StatusUnchanged}
	acc := *accp
	if acc == nil || r.cfg.StorageFee == 0 || acc.LastPaid == 0 || r.now <= acc.LastPaid {
		return sp
	}
	due := ledger.NewCoins(r.cfg.StorageFee).MulUint64(uint64(r.now - acc.LastPaid))
	collected := due.Min(acc.Balance)
	acc.Balance = acc.Balance.SubSaturating(collected)
	acc.LastPaid = r.now
	sp.FeesCollected = collected
	if collected.Cmp(due) == 0 {
		return sp
	}

	unpaid := due.SubSaturating(collected)
	sp.FeesDue = &unpaid
	if acc.State.Status == ledger.AccountActive {
		h := ledger.FrozenHash(acc.State.Code, acc.State.Data)
		acc.State = ledger.AccountState{Status: ledger.AccountFrozen, StateHash: &h}
		sp.StatusChange = ledger.StatusFrozenNow
		r.logf(emulator.VerbosityDebug, "storage: frozen, %s unpaid", unpaid)
	} else {
		*accp = nil
		sp.StatusChange = ledger.StatusDeleted
		r.logf(emulator.VerbosityDebug, "storage: deleted, %s unpaid", unpaid)
	}
	return sp
}

// computePhase resolves the code to run and runs it. The returned state is
// the account state to commit if the transaction succeeds.
func (r *txRun) computePhase(acc *ledger.Account, msg ledger.Message) (ledger.ComputePhase, *Context, ledger.AccountState) {
	skipped := func(reason ledger.SkipReason) (ledger.ComputePhase, *Context, ledger.AccountState) {
		r.logf(emulator.VerbosityDebug, "compute: skipped (%s)", reason)
		return ledger.ComputePhase{Kind: ledger.ComputeSkipped, SkipReason: reason}, nil, ledger.AccountState{}
	}
	if acc == nil {
		return skipped(ledger.SkipNoState)
	}

	state := acc.State
	switch acc.State.Status {
	case ledger.AccountActive:
	case ledger.AccountUninit:
		if msg.Init == nil {
			return skipped(ledger.SkipNoState)
		}
		if ledger.ContractAddress(acc.Address.Workchain, *msg.Init) != acc.Address {
			return skipped(ledger.SkipBadState)
		}
		state = ledger.AccountState{Status: ledger.AccountActive, Code: msg.Init.Code, Data: msg.Init.Data}
	case ledger.AccountFrozen:
		if msg.Init == nil || acc.State.StateHash == nil || ledger.FrozenHash(msg.Init.Code, msg.Init.Data) != *acc.State.StateHash {
			return skipped(ledger.SkipBadState)
		}
		state = ledger.AccountState{Status: ledger.AccountActive, Code: msg.Init.Code, Data: msg.Init.Data}
	default:
		return skipped(ledger.SkipBadState)
	}

	gasLimit := r.cfg.gasLimitFor(acc.Balance)
	if gasLimit < r.cfg.GasBase {
		return skipped(ledger.SkipNoGas)
	}

	ctx := &Context{
		Address: acc.Address,
		Balance: acc.Balance,
		Now:     r.now,
		LT:      r.lt,
		Message: msg,
		Config:  r.cfg,
		data:    state.Data,
		debug:   r.engine.debugWriter(r.verbosity),
	}
	exit := ExitOK
	h, _, ok := r.engine.lookup(state.Code)
	switch {
	case !ok:
		exit = ExitUnknownMethod
	case h.Receive != nil:
		exit = exitCodeOf(h.Receive(ctx))
	}

	gasUsed := r.cfg.GasBase + ctx.gas + r.cfg.GasPerAction*uint64(len(ctx.actions))
	if gasUsed > gasLimit {
		gasUsed = gasLimit
		exit = ExitOutOfGas
	}
	phase := ledger.ComputePhase{
		Kind:     ledger.ComputeVM,
		Success:  exit == ExitOK || exit == ExitAlternativeOK,
		GasUsed:  gasUsed,
		GasFees:  r.cfg.gasFee(gasUsed),
		ExitCode: exit,
		VMSteps:  uint32(1 + len(ctx.actions)),
	}
	r.logf(emulator.VerbosityInfo, "compute: exit=%d gas=%d", exit, gasUsed)
	return phase, ctx, state
}

// actionPhase turns queued actions into messages. It is all-or-nothing:
// if any message cannot be paid for, none is sent.
func (r *txRun) actionPhase(acc *ledger.Account, ctx *Context, inValue, gasFees ledger.Coins, lt uint64) (ledger.ActionPhase, []ledger.Message, bool) {
	fwd := ledger.NewCoins(r.cfg.ForwardFee)
	balance := acc.Balance
	total := ledger.Coins{}
	destroy := false
	out := make([]ledger.Message, 0, len(ctx.actions))

	fail := func(i int) (ledger.ActionPhase, []ledger.Message, bool) {
		r.logf(emulator.VerbosityDebug, "action %d: not enough funds", i)
		return ledger.ActionPhase{Success: false, ResultCode: ResultNotEnoughFunds}, nil, false
	}

	for i, a := range ctx.actions {
		createdLT := lt + 1 + uint64(i)
		if a.external != nil {
			rest, ok := balance.Sub(fwd)
			if !ok {
				return fail(i)
			}
			balance = rest
			total = total.Add(fwd)
			out = append(out, ledger.NewExternalOut(ledger.ExternalOutInfo{
				Src:       acc.Address,
				Dest:      a.external.dest,
				CreatedLT: createdLT,
				CreatedAt: r.now,
			}, a.external.body))
			continue
		}

		m := a.internal
		var gross ledger.Coins
		switch {
		case m.Mode.Has(SendCarryAll):
			gross = balance
		case m.Mode.Has(SendCarryInbound):
			gross = m.Value.Add(inValue.SubSaturating(gasFees))
		default:
			gross = m.Value.Add(fwd)
		}
		value, ok := gross.Sub(fwd)
		if !ok {
			return fail(i)
		}
		rest, ok := balance.Sub(gross)
		if !ok {
			return fail(i)
		}
		balance = rest
		total = total.Add(fwd)
		destroy = destroy || m.Mode.Has(SendDestroyIfZero)
		out = append(out, ledger.NewInternal(ledger.InternalInfo{
			Src:         acc.Address,
			Dest:        m.To,
			Value:       value,
			Bounce:      m.Bounce,
			IHRDisabled: true,
			ForwardFee:  fwd,
			CreatedLT:   createdLT,
			CreatedAt:   r.now,
		}, m.Init, m.Body))
		r.logf(emulator.VerbosityFull, "action %d: send %s to %s", i, value, m.To)
	}

	acc.Balance = balance
	return ledger.ActionPhase{
		Success:         true,
		TotalFwdFees:    total,
		MessagesCreated: len(out),
	}, out, destroy
}

// bouncePhase returns the unspent inbound value to the sender.
func (r *txRun) bouncePhase(acc *ledger.Account, in ledger.Message, createdLT uint64) (ledger.BouncePhase, *ledger.Message) {
	fwd := ledger.NewCoins(r.cfg.ForwardFee)
	remaining := in.Value().Min(acc.Balance)
	value, ok := remaining.Sub(fwd)
	if !ok {
		r.logf(emulator.VerbosityDebug, "bounce: no funds")
		return ledger.BouncePhase{Kind: ledger.BounceNoFunds}, nil
	}
	acc.Balance = acc.Balance.SubSaturating(remaining)

	body := ledger.NewCell(bouncePrefix)
	if in.Body != nil {
		body = ledger.NewCell(append(append([]byte(nil), bouncePrefix...), in.Body.Data...), in.Body.Refs...)
	}
	msg := ledger.NewInternal(ledger.InternalInfo{
		Src:         acc.Address,
		Dest:        in.Internal.Src,
		Value:       value,
		Bounce:      false,
		Bounced:     true,
		IHRDisabled: true,
		ForwardFee:  fwd,
		CreatedLT:   createdLT,
		CreatedAt:   r.now,
	}, nil, body)
	r.logf(emulator.VerbosityDebug, "bounce: %s back to %s", value, in.Internal.Src)
	return ledger.BouncePhase{Kind: ledger.BounceOK, ForwardFees: fwd, Value: value}, &msg
}
