package store

import (
	"context"
	"fmt"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// RunState summarizes a journaled run for recovery and auditing.
type RunState struct {
	Run          Run
	Transactions []TransactionRecord
	LastSeq      int
	// IsComplete is true once the run was closed, whatever its outcome.
	IsComplete bool
}

// GetRunState reads a run with all of its transactions.
// Returns sql.ErrNoRows if the run is not journaled.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, err
	}
	records, err := s.ReadTransactions(ctx, Filter{RunID: runID})
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	state := RunState{
		Run:          run,
		Transactions: records,
		IsComplete:   run.Status != RunRunning,
	}
	for _, rec := range records {
		if rec.Seq > state.LastSeq {
			state.LastSeq = rec.Seq
		}
	}
	return state, nil
}

// FindIncompleteRuns returns the runs that were begun but never finished,
// in the order they were started. A process that died mid-run leaves its
// run in this state.
//
// Returns an empty slice (not nil) if every run was closed.
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_now, started_lt, finished_now, finished_lt, status, error, transactions
		FROM runs
		WHERE status = ?
		ORDER BY ordinal ASC
	`, string(RunRunning))
	if err != nil {
		return nil, fmt.Errorf("find incomplete runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete runs: %w", err)
	}
	return runs, nil
}

// GetLastSeq returns the highest seq journaled across all runs, 0 for an
// empty journal. A System reopened on the journal resumes numbering after
// it.
func (s *Store) GetLastSeq(ctx context.Context) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM transactions
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

// Discrepancy is one integrity violation found by VerifyRun.
type Discrepancy struct {
	Seq     int
	Address ledger.Address
	Reason  string
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("seq %d (%s): %s", d.Seq, d.Address, d.Reason)
}

// VerifyRun checks the integrity of a journaled run:
//   - every transaction hash matches its content
//   - the hash column matches the stored record
//   - consecutive transactions of one account chain through
//     PrevTransactionLT and PrevTransactionHash
//   - the stored event types match a fresh derivation
//
// Event payloads are compared by type only; display names depend on the
// resolver that was active when the run was journaled.
//
// Returns an empty slice (not nil) for a consistent run.
func (s *Store) VerifyRun(ctx context.Context, runID string) ([]Discrepancy, error) {
	records, err := s.ReadTransactions(ctx, Filter{RunID: runID})
	if err != nil {
		return nil, fmt.Errorf("verify run %s: %w", runID, err)
	}
	hashes, err := s.readHashes(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("verify run %s: %w", runID, err)
	}

	found := []Discrepancy{}
	report := func(rec TransactionRecord, format string, args ...any) {
		found = append(found, Discrepancy{Seq: rec.Seq, Address: rec.Address, Reason: fmt.Sprintf(format, args...)})
	}

	last := make(map[ledger.Address]ledger.Transaction)
	for _, rec := range records {
		tx := rec.Transaction
		if h, err := tx.ComputeHash(); err != nil {
			report(rec, "hash: %v", err)
		} else if h != tx.Hash {
			report(rec, "hash mismatch: recorded %s, computed %s", tx.Hash, h)
		}
		if hashes[rec.Seq] != tx.Hash.String() {
			report(rec, "hash column %s does not match record", hashes[rec.Seq])
		}

		if prev, ok := last[rec.Address]; ok {
			if tx.PrevTransactionLT != prev.LT || tx.PrevTransactionHash != prev.Hash {
				report(rec, "chain broken: previous is lt %d, transaction points at lt %d", prev.LT, tx.PrevTransactionLT)
			}
			if tx.LT <= prev.LT {
				report(rec, "lt %d does not follow %d", tx.LT, prev.LT)
			}
		}
		last[rec.Address] = tx

		derived, err := events.Derive(tx, events.RawResolver{})
		if err != nil {
			report(rec, "derive events: %v", err)
			continue
		}
		if !sameTypes(derived, rec.Events) {
			report(rec, "journaled events %v do not match derived %v", typesOf(rec.Events), typesOf(derived))
		}
	}
	return found, nil
}

func (s *Store) readHashes(ctx context.Context, runID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, hash FROM transactions WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var (
			seq  int
			hash string
		)
		if err := rows.Scan(&seq, &hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		out[seq] = hash
	}
	return out, rows.Err()
}

func typesOf(evs []events.Event) []events.Type {
	out := make([]events.Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

func sameTypes(a, b []events.Event) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
