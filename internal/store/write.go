package store

import (
	"context"
	"fmt"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// RunStatus is the state of a journaled run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// BeginRun opens a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a run id that is
// already journaled is left untouched.
func (s *Store) BeginRun(ctx context.Context, runID string, now uint32, lt uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_now, started_lt, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, now, formatLT(lt), string(RunRunning))
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// FinishRun closes a run record with its outcome. runErr is recorded for
// aborted runs.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, now uint32, lt uint64, transactions int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_now = ?, finished_lt = ?, status = ?, error = ?, transactions = ?
		WHERE id = ?
	`, now, formatLT(lt), string(status), msg, transactions, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: run not found", runID)
	}
	return nil
}

// WriteTransaction atomically writes a transaction and its events in a
// single SQL transaction. Rewriting the same (run, seq) is a no-op.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteTransaction(ctx context.Context, runID string, seq int, tx ledger.Transaction, evs []events.Event) error {
	record, err := marshalTransaction(tx)
	if err != nil {
		return fmt.Errorf("write transaction: %w", err)
	}
	payloads := make([]string, len(evs))
	for i, ev := range evs {
		if payloads[i], err = marshalEvent(ev); err != nil {
			return fmt.Errorf("write transaction: event %d: %w", i, err)
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write transaction: begin tx: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	res, err := sqlTx.ExecContext(ctx, `
		INSERT INTO transactions
		(run_id, seq, address, lt, hash, old_status, end_status, exit_code, total_fees, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		seq,
		tx.Address.String(),
		formatLT(tx.LT),
		tx.Hash.String(),
		string(tx.OldStatus),
		string(tx.EndStatus),
		tx.Description.Compute.ExitCode,
		tx.TotalFees.String(),
		record,
	)
	if err != nil {
		return fmt.Errorf("write transaction: insert: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write transaction: rows affected: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, ev := range evs {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO events (run_id, seq, idx, type, payload)
			VALUES (?, ?, ?, ?, ?)
		`, runID, seq, i, string(ev.Type), payloads[i])
		if err != nil {
			return fmt.Errorf("write transaction: insert event %d: %w", i, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("write transaction: commit: %w", err)
	}
	return nil
}
