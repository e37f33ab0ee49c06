package ledger

import (
	"encoding/json"
	"fmt"
)

// DescriptionKind is the transaction description variant. Only generic
// transactions are produced by ordinary message processing.
type DescriptionKind string

const (
	DescriptionGeneric  DescriptionKind = "generic"
	DescriptionTickTock DescriptionKind = "tick-tock"
	DescriptionStorage  DescriptionKind = "storage"
)

// StatusChange is the effect of the storage phase on the account.
type StatusChange string

const (
	StatusUnchanged StatusChange = "unchanged"
	StatusFrozenNow StatusChange = "frozen"
	StatusDeleted   StatusChange = "deleted"
)

// StoragePhase records storage fee collection.
type StoragePhase struct {
	FeesCollected Coins        `json:"fees_collected"`
	FeesDue       *Coins       `json:"fees_due,omitempty"`
	StatusChange  StatusChange `json:"status_change"`
}

// CreditPhase records the value credited from the inbound message.
type CreditPhase struct {
	Credit Coins `json:"credit"`
}

// ComputeKind tells whether the VM ran at all.
type ComputeKind string

const (
	ComputeSkipped ComputeKind = "skipped"
	ComputeVM      ComputeKind = "vm"
)

// SkipReason explains a skipped compute phase.
type SkipReason string

const (
	SkipNoState   SkipReason = "no-state"
	SkipBadState  SkipReason = "bad-state"
	SkipNoGas     SkipReason = "no-gas"
	SkipSuspended SkipReason = "suspended"
)

// ComputePhase records contract execution.
type ComputePhase struct {
	Kind       ComputeKind `json:"kind"`
	SkipReason SkipReason  `json:"skip_reason,omitempty"`
	Success    bool        `json:"success"`
	GasUsed    uint64      `json:"gas_used,string"`
	GasFees    Coins       `json:"gas_fees"`
	ExitCode   int32       `json:"exit_code"`
	VMSteps    uint32      `json:"vm_steps"`
}

// ActionPhase records execution of the actions requested by the contract.
type ActionPhase struct {
	Success         bool  `json:"success"`
	ResultCode      int32 `json:"result_code"`
	TotalFwdFees    Coins `json:"total_fwd_fees"`
	MessagesCreated int   `json:"messages_created"`
}

// BounceKind is the outcome of the bounce phase.
type BounceKind string

const (
	BounceNegativeFunds BounceKind = "negative-funds"
	BounceNoFunds       BounceKind = "no-funds"
	BounceOK            BounceKind = "ok"
)

// BouncePhase records an attempt to return value to the sender.
type BouncePhase struct {
	Kind        BounceKind `json:"kind"`
	ForwardFees Coins      `json:"fwd_fees"`
	Value       Coins      `json:"value"`
}

// Description breaks a transaction into phases.
type Description struct {
	Kind        DescriptionKind `json:"kind"`
	CreditFirst bool            `json:"credit_first"`
	Storage     *StoragePhase   `json:"storage,omitempty"`
	Credit      *CreditPhase    `json:"credit,omitempty"`
	Compute     ComputePhase    `json:"compute"`
	Action      *ActionPhase    `json:"action,omitempty"`
	Bounce      *BouncePhase    `json:"bounce,omitempty"`
	Aborted     bool            `json:"aborted"`
	Destroyed   bool            `json:"destroyed"`
}

// Transaction is the immutable record of one account processing one message.
type Transaction struct {
	Address             Address     `json:"address"`
	LT                  uint64      `json:"lt,string"`
	EndLT               uint64      `json:"end_lt,string"`
	Now                 uint32      `json:"now"`
	PrevTransactionLT   uint64      `json:"prev_trans_lt,string"`
	PrevTransactionHash Hash        `json:"prev_trans_hash"`
	OldStatus           TxStatus    `json:"orig_status"`
	EndStatus           TxStatus    `json:"end_status"`
	InMessage           *Message    `json:"in_msg,omitempty"`
	OutMessages         []Message   `json:"out_msgs,omitempty"`
	TotalFees           Coins       `json:"total_fees"`
	Description         Description `json:"description"`
	Hash                Hash        `json:"hash"`
}

// ComputeHash returns the content hash of the transaction with the Hash field
// cleared.
func (tx Transaction) ComputeHash() (Hash, error) {
	tx.Hash = Hash{}
	data, err := json.Marshal(tx)
	if err != nil {
		return Hash{}, fmt.Errorf("hash transaction: %w", err)
	}
	return HashWithDomain(DomainTransaction, data), nil
}

// Seal fills Hash with the content hash.
func (tx *Transaction) Seal() error {
	h, err := tx.ComputeHash()
	if err != nil {
		return err
	}
	tx.Hash = h
	return nil
}
