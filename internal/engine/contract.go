package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/ledger"
)

// GetResult is the outcome of a getter call. A failed engine evaluation is
// reported with Success false and Error set, not as a Go error.
type GetResult struct {
	Success        bool
	Stack          *ledger.StackReader
	GasUsed        uint64
	ExitCode       int32
	MissingLibrary string
	Error          string
	Logs           string
}

// ReceiveResult is the outcome of applying one message. When Success is
// false the engine declined the message and Transaction is zero.
type ReceiveResult struct {
	Success     bool
	Transaction ledger.Transaction
	Logs        string
	Error       string
}

// Contract is the state machine of one account. Every read and write of
// the account goes through its mutex.
//
// The shard account is replaced as a whole on every successful Receive;
// it is never mutated in place.
type Contract struct {
	sys     *System
	address ledger.Address

	mu    sync.Mutex
	shard ledger.ShardAccount
}

func newContract(sys *System, addr ledger.Address, acc *ledger.Account) *Contract {
	return &Contract{
		sys:     sys,
		address: addr,
		shard:   ledger.ShardAccount{Account: acc},
	}
}

// Address returns the account address.
func (c *Contract) Address() ledger.Address {
	return c.address
}

// State returns a snapshot of the shard account.
func (c *Contract) State() ledger.ShardAccount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneShard(c.shard)
}

// Status returns the account status as a transaction would record it.
func (c *Contract) Status() ledger.TxStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ledger.TxStatusOf(c.shard.Account)
}

// Balance returns the account balance; zero for a non-existing account.
func (c *Contract) Balance() ledger.Coins {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shard.Account == nil {
		return ledger.Coins{}
	}
	return c.shard.Account.Balance
}

// SetBalance replaces the balance. A non-existing account becomes an
// uninitialized one holding the balance.
func (c *Contract) SetBalance(balance ledger.Coins) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var acc ledger.Account
	if c.shard.Account != nil {
		acc = *c.shard.Account
	} else {
		acc = ledger.NewUninitAccount(c.address)
	}
	acc.Balance = balance
	c.shard = ledger.ShardAccount{
		Account:             &acc,
		LastTransactionLT:   c.shard.LastTransactionLT,
		LastTransactionHash: c.shard.LastTransactionHash,
	}
}

// LastTransaction returns the logical time and hash of the last
// transaction applied to the account.
func (c *Contract) LastTransaction() (uint64, ledger.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shard.LastTransactionLT, c.shard.LastTransactionHash
}

// Override replaces the account with an active one holding code, data and
// balance. The last transaction is reset to zero.
func (c *Contract) Override(code, data *ledger.Cell, balance ledger.Coins) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc := ledger.NewActiveAccount(c.address, code, data, balance)
	c.shard = ledger.ShardAccount{Account: &acc}
}

// Get runs the named getter. Names resolve with ledger.MethodID.
func (c *Contract) Get(ctx context.Context, method string, args ...ledger.StackItem) (GetResult, error) {
	return c.GetByID(ctx, ledger.MethodID(method), args...)
}

// GetByID runs the getter with the given method id.
//
// Fails with CONTRACT_NOT_ACTIVE unless the account is active with both
// code and data.
func (c *Contract) GetByID(ctx context.Context, methodID int64, args ...ledger.StackItem) (GetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	acc := c.shard.Account
	switch {
	case acc == nil || acc.State.Status != ledger.AccountActive:
		return GetResult{}, NewContractNotActiveError(c.address, "contract is not active")
	case acc.State.Code == nil:
		return GetResult{}, NewContractNotActiveError(c.address, "contract has no code")
	case acc.State.Data == nil:
		return GetResult{}, NewContractNotActiveError(c.address, "contract has no data")
	}

	verbosity := c.sys.verbosityFor(c.address)
	res, err := c.sys.bindings.RunGetMethod(ctx, emulator.GetMethodArgs{
		Address:   c.address,
		Code:      acc.State.Code,
		Data:      acc.State.Data,
		Balance:   acc.Balance,
		Now:       c.sys.clock.Now(),
		GasLimit:  emulator.DefaultGasLimit,
		MethodID:  methodID,
		Stack:     args,
		Config:    c.sys.Config(),
		Verbosity: verbosity,
	})
	if err != nil {
		return GetResult{}, fmt.Errorf("get method %d on %s: %w", methodID, c.address, err)
	}
	c.sys.reportCoverage(c.address, res.VMLog)

	if !res.Success {
		slog.Debug("getter declined",
			"address", c.address.String(),
			"method_id", methodID,
			"error", res.Error,
		)
		return GetResult{Error: res.Error, Logs: res.Logs}, nil
	}
	return GetResult{
		Success:        true,
		Stack:          ledger.NewStackReader(res.Stack),
		GasUsed:        res.GasUsed,
		ExitCode:       res.ExitCode,
		MissingLibrary: res.MissingLibrary,
		Logs:           res.Logs,
	}, nil
}

// Receive applies msg to the account. Only internal and external-in
// messages are accepted; anything else fails with UNSUPPORTED_MESSAGE_TYPE.
//
// A compute failure is a successful Receive whose transaction records the
// exit code. An engine error aborts the call and leaves the account
// untouched.
func (c *Contract) Receive(ctx context.Context, msg ledger.Message) (ReceiveResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Kind {
	case ledger.MessageInternal, ledger.MessageExternalIn:
	default:
		return ReceiveResult{}, NewUnsupportedMessageTypeError(c.address, msg.Kind)
	}

	res, err := c.sys.bindings.Transaction(ctx, emulator.TransactionArgs{
		Config:       c.sys.Config(),
		Verbosity:    c.sys.verbosityFor(c.address),
		ShardAccount: c.shard,
		Message:      msg,
		Now:          c.sys.clock.Now(),
		LT:           c.sys.clock.LT(),
	})
	if err != nil {
		return ReceiveResult{}, fmt.Errorf("receive on %s: %w", c.address, err)
	}
	c.sys.reportCoverage(c.address, res.VMLog)

	if !res.Success {
		return ReceiveResult{Error: res.Error, Logs: res.Logs}, nil
	}

	// An absent account leaves the shard non-existing; the last
	// transaction pointer is kept either way.
	c.shard = res.ShardAccount
	return ReceiveResult{
		Success:     true,
		Transaction: res.Transaction,
		Logs:        res.Logs,
	}, nil
}

func cloneShard(s ledger.ShardAccount) ledger.ShardAccount {
	out := s
	if s.Account != nil {
		acc := *s.Account
		acc.State.Code = s.Account.State.Code.Clone()
		acc.State.Data = s.Account.State.Data.Clone()
		if s.Account.State.StateHash != nil {
			h := *s.Account.State.StateHash
			acc.State.StateHash = &h
		}
		out.Account = &acc
	}
	return out
}
