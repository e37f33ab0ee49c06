package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testAddress(n uint64) ledger.Address {
	return ledger.NewAddress(0, ledger.HashFromUint64(n))
}

// createTestTransaction creates a sealed transaction of value from one
// test address to another.
func createTestTransaction(t *testing.T, to uint64, lt uint64, value uint64) ledger.Transaction {
	t.Helper()
	in := ledger.NewInternal(ledger.InternalInfo{
		Src:   testAddress(1),
		Dest:  testAddress(to),
		Value: ledger.NewCoins(value),
	}, nil, ledger.TextCell("<b>hi</b>"))
	tx := ledger.Transaction{
		Address:   testAddress(to),
		LT:        lt,
		EndLT:     lt + 1,
		Now:       1000,
		OldStatus: ledger.StatusActive,
		EndStatus: ledger.StatusActive,
		InMessage: &in,
		TotalFees: ledger.NewCoins(7),
		Description: ledger.Description{
			Kind:    ledger.DescriptionGeneric,
			Compute: ledger.ComputePhase{Kind: ledger.ComputeVM, Success: true, GasUsed: 1000},
		},
	}
	if err := tx.Seal(); err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	return tx
}

func deriveEvents(t *testing.T, tx ledger.Transaction) []events.Event {
	t.Helper()
	evs, err := events.Derive(tx, nil)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	return evs
}
