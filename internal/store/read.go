package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// Run is a journaled run.
type Run struct {
	ID           string
	StartedNow   uint32
	StartedLT    uint64
	FinishedNow  uint32
	FinishedLT   uint64
	Status       RunStatus
	Error        string
	Transactions int
}

// TransactionRecord is a journaled transaction with its events.
type TransactionRecord struct {
	RunID       string
	Seq         int
	Address     ledger.Address
	Transaction ledger.Transaction
	Events      []events.Event
}

// Filter narrows ReadTransactions. Zero fields match everything.
type Filter struct {
	RunID   string
	Address *ledger.Address
}

// ReadRun returns one run.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_now, started_lt, finished_now, finished_lt, status, error, transactions
		FROM runs
		WHERE id = ?
	`, runID)
	return scanRun(row)
}

// ReadRuns returns every run in the order they were started.
//
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_now, started_lt, finished_now, finished_lt, status, error, transactions
		FROM runs
		ORDER BY ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
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
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTransactions returns the journaled transactions matching f, with
// their events, ordered by run then seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadTransactions(ctx context.Context, f Filter) ([]TransactionRecord, error) {
	query := `
		SELECT t.run_id, t.seq, t.record
		FROM transactions t
		JOIN runs r ON r.id = t.run_id
		WHERE (? = '' OR t.run_id = ?)
		  AND (? = '' OR t.address = ?)
		ORDER BY r.ordinal ASC, t.seq ASC
	`
	addr := ""
	if f.Address != nil {
		addr = f.Address.String()
	}
	rows, err := s.db.QueryContext(ctx, query, f.RunID, f.RunID, addr, addr)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	records := []TransactionRecord{}
	for rows.Next() {
		var (
			rec    TransactionRecord
			record string
		)
		if err := rows.Scan(&rec.RunID, &rec.Seq, &record); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if rec.Transaction, err = unmarshalTransaction(record); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Address = rec.Transaction.Address
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	rows.Close()

	// Events are read after the cursor is closed; the pool holds a single
	// connection.
	for i := range records {
		evs, err := s.ReadEvents(ctx, records[i].RunID, records[i].Seq)
		if err != nil {
			return nil, err
		}
		records[i].Events = evs
	}
	return records, nil
}

// ReadEvents returns the events of one journaled transaction in
// derivation order.
func (s *Store) ReadEvents(ctx context.Context, runID string, seq int) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM events
		WHERE run_id = ? AND seq = ?
		ORDER BY idx ASC
	`, runID, seq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	evs := []events.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev, err := unmarshalEvent(payload)
		if err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return evs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		r           Run
		status      string
		startedLT   string
		finishedNow sql.NullInt64
		finishedLT  sql.NullString
	)
	err := row.Scan(&r.ID, &r.StartedNow, &startedLT, &finishedNow, &finishedLT, &status, &r.Error, &r.Transactions)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.Status = RunStatus(status)
	if r.StartedLT, err = parseLT(startedLT); err != nil {
		return Run{}, err
	}
	if finishedNow.Valid {
		r.FinishedNow = uint32(finishedNow.Int64)
	}
	if finishedLT.Valid {
		if r.FinishedLT, err = parseLT(finishedLT.String); err != nil {
			return Run{}, err
		}
	}
	return r, nil
}
