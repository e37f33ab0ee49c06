package ledger

import (
	"encoding/binary"
)

// AccountStatus is the status carried by an account's own state.
type AccountStatus string

const (
	AccountUninit AccountStatus = "uninit"
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
)

// TxStatus is the account status recorded by a transaction. It adds
// non-existing for accounts with no state at all.
type TxStatus string

const (
	StatusNonExisting   TxStatus = "non-existing"
	StatusUninitialized TxStatus = "uninitialized"
	StatusActive        TxStatus = "active"
	StatusFrozen        TxStatus = "frozen"
)

// StateInit carries the code and data used to deploy a contract.
type StateInit struct {
	Code *Cell `json:"code,omitempty"`
	Data *Cell `json:"data,omitempty"`
}

// Hash returns the state init hash, the basis of contract addresses.
func (s StateInit) Hash() Hash {
	code := s.Code.Hash()
	data := s.Data.Hash()
	buf := make([]byte, 0, 64)
	buf = append(buf, code[:]...)
	buf = append(buf, data[:]...)
	return HashWithDomain(DomainStateInit, buf)
}

// ContractAddress derives the address of a contract from its state init.
func ContractAddress(workchain int32, init StateInit) Address {
	return Address{Workchain: workchain, Hash: init.Hash()}
}

// AccountState is the code/data part of an account.
// Active carries Code and Data; Frozen carries StateHash only.
type AccountState struct {
	Status    AccountStatus `json:"status"`
	Code      *Cell         `json:"code,omitempty"`
	Data      *Cell         `json:"data,omitempty"`
	StateHash *Hash         `json:"state_hash,omitempty"`
}

// Account is the full state of one address.
type Account struct {
	Address     Address      `json:"address"`
	Balance     Coins        `json:"balance"`
	State       AccountState `json:"state"`
	LastPaid    uint32       `json:"last_paid"`
	LastTransLT uint64       `json:"last_trans_lt,string"`
}

// ShardAccount wraps an account (nil when non-existing) with a pointer to
// its last transaction.
type ShardAccount struct {
	Account             *Account `json:"account,omitempty"`
	LastTransactionLT   uint64   `json:"last_transaction_lt,string"`
	LastTransactionHash Hash     `json:"last_transaction_hash"`
}

// NewUninitAccount builds an uninitialized account with zero balance.
func NewUninitAccount(addr Address) Account {
	return Account{
		Address: addr,
		State:   AccountState{Status: AccountUninit},
	}
}

// NewActiveAccount builds an active account from code and data.
func NewActiveAccount(addr Address, code, data *Cell, balance Coins) Account {
	return Account{
		Address: addr,
		Balance: balance,
		State: AccountState{
			Status: AccountActive,
			Code:   code,
			Data:   data,
		},
	}
}

// TxStatusOf maps an optional account to the status a transaction records.
func TxStatusOf(acc *Account) TxStatus {
	if acc == nil {
		return StatusNonExisting
	}
	switch acc.State.Status {
	case AccountActive:
		return StatusActive
	case AccountFrozen:
		return StatusFrozen
	default:
		return StatusUninitialized
	}
}

// FrozenHash computes the state hash kept by a frozen account.
func FrozenHash(code, data *Cell) Hash {
	return StateInit{Code: code, Data: data}.Hash()
}

// HashFromUint64 places v in the low 8 bytes of a hash, big endian.
// Useful for synthetic identifiers in tests.
func HashFromUint64(v uint64) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[24:], v)
	return h
}
