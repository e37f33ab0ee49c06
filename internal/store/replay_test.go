package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// chainedTransaction creates a sealed transaction on address to that
// follows prev.
func chainedTransaction(t *testing.T, to uint64, prev ledger.Transaction) ledger.Transaction {
	t.Helper()
	tx := createTestTransaction(t, to, prev.EndLT+1, 10)
	tx.PrevTransactionLT = prev.LT
	tx.PrevTransactionHash = prev.Hash
	if err := tx.Seal(); err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	return tx
}

func TestGetRunState(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", 1000, 0); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	for seq, lt := range map[int]uint64{1: 10, 4: 20} {
		tx := createTestTransaction(t, 2, lt, 5)
		if err := store.WriteTransaction(ctx, "run-1", seq, tx, deriveEvents(t, tx)); err != nil {
			t.Fatalf("WriteTransaction failed: %v", err)
		}
	}

	state, err := store.GetRunState(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunState failed: %v", err)
	}
	if state.IsComplete {
		t.Error("IsComplete = true, want false for an open run")
	}
	if state.LastSeq != 4 {
		t.Errorf("LastSeq = %d, want 4", state.LastSeq)
	}
	if len(state.Transactions) != 2 {
		t.Fatalf("len(Transactions) = %d, want 2", len(state.Transactions))
	}

	if err := store.FinishRun(ctx, "run-1", RunCompleted, 1016, 30, 2, nil); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}
	state, err = store.GetRunState(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRunState failed: %v", err)
	}
	if !state.IsComplete {
		t.Error("IsComplete = false, want true after FinishRun")
	}
}

func TestGetRunState_NotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.GetRunState(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("GetRunState error = %v, want sql.ErrNoRows", err)
	}
}

func TestFindIncompleteRuns(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.BeginRun(ctx, id, 1000, 0); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", id, err)
		}
	}
	if err := store.FinishRun(ctx, "b", RunAborted, 1000, 0, 0, errors.New("boom")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	runs, err := store.FindIncompleteRuns(ctx)
	if err != nil {
		t.Fatalf("FindIncompleteRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "a" || runs[1].ID != "c" {
		t.Errorf("FindIncompleteRuns = %+v, want runs a and c", runs)
	}
}

func TestFindIncompleteRuns_Empty(t *testing.T) {
	store := createTestStore(t)

	runs, err := store.FindIncompleteRuns(context.Background())
	if err != nil {
		t.Fatalf("FindIncompleteRuns failed: %v", err)
	}
	if runs == nil {
		t.Error("FindIncompleteRuns returned nil, want empty slice")
	}
}

func TestGetLastSeq(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	seq, err := store.GetLastSeq(ctx)
	if err != nil {
		t.Fatalf("GetLastSeq failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("GetLastSeq on empty journal = %d, want 0", seq)
	}

	for _, run := range []struct {
		id  string
		seq int
	}{{"run-1", 3}, {"run-2", 9}, {"run-3", 5}} {
		if err := store.BeginRun(ctx, run.id, 1000, 0); err != nil {
			t.Fatalf("BeginRun failed: %v", err)
		}
		tx := createTestTransaction(t, 2, uint64(run.seq)*10, 1)
		if err := store.WriteTransaction(ctx, run.id, run.seq, tx, nil); err != nil {
			t.Fatalf("WriteTransaction failed: %v", err)
		}
	}

	seq, err = store.GetLastSeq(ctx)
	if err != nil {
		t.Fatalf("GetLastSeq failed: %v", err)
	}
	if seq != 9 {
		t.Errorf("GetLastSeq = %d, want 9", seq)
	}
}

func TestVerifyRun_Consistent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", 1000, 0); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	first := createTestTransaction(t, 2, 10, 5)
	second := chainedTransaction(t, 2, first)
	other := createTestTransaction(t, 3, 12, 5)
	for i, tx := range []ledger.Transaction{first, other, second} {
		if err := store.WriteTransaction(ctx, "run-1", i+1, tx, deriveEvents(t, tx)); err != nil {
			t.Fatalf("WriteTransaction failed: %v", err)
		}
	}

	found, err := store.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("VerifyRun found %v, want none", found)
	}
}

func TestVerifyRun_DetectsBrokenChain(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", 1000, 0); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	first := createTestTransaction(t, 2, 10, 5)
	unchained := createTestTransaction(t, 2, 20, 5)
	for i, tx := range []ledger.Transaction{first, unchained} {
		if err := store.WriteTransaction(ctx, "run-1", i+1, tx, deriveEvents(t, tx)); err != nil {
			t.Fatalf("WriteTransaction failed: %v", err)
		}
	}

	found, err := store.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("VerifyRun found %v, want one discrepancy", found)
	}
	if found[0].Seq != 2 || !strings.Contains(found[0].Reason, "chain broken") {
		t.Errorf("discrepancy = %s, want chain broken at seq 2", found[0])
	}
}

func TestVerifyRun_DetectsTampering(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", 1000, 0); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	tx := createTestTransaction(t, 2, 10, 5)
	evs := deriveEvents(t, tx)
	if err := store.WriteTransaction(ctx, "run-2-missing", 1, tx, evs); err == nil {
		t.Fatal("WriteTransaction into an unknown run succeeded, want foreign key error")
	}

	tampered := tx
	tampered.TotalFees = ledger.NewCoins(1_000_000)
	if err := store.WriteTransaction(ctx, "run-1", 1, tampered, []events.Event{{Type: events.TypeSkipped}}); err != nil {
		t.Fatalf("WriteTransaction failed: %v", err)
	}

	found, err := store.VerifyRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("VerifyRun failed: %v", err)
	}
	var hash, evMismatch bool
	for _, d := range found {
		hash = hash || strings.Contains(d.Reason, "hash mismatch")
		evMismatch = evMismatch || strings.Contains(d.Reason, "journaled events")
	}
	if !hash {
		t.Errorf("VerifyRun found %v, want a hash mismatch", found)
	}
	if !evMismatch {
		t.Errorf("VerifyRun found %v, want an event mismatch", found)
	}
}
