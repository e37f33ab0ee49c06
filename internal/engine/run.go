package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
	"github.com/roach88/sandbox/internal/store"
)

// Rejected is a message the engine declined to apply. No transaction was
// produced and the account is unchanged.
type Rejected struct {
	Address ledger.Address
	Message ledger.Message
	Error   string
	Logs    string
}

// RunResult is everything one Run produced.
type RunResult struct {
	RunID string
	// Transactions in the order they were applied.
	Transactions []ledger.Transaction
	// ExternalOut holds the external-out messages emitted during the run,
	// in emission order. They are never applied.
	ExternalOut []ledger.Message
	Rejected    []Rejected
	// Dropped holds messages to unregistered destinations under
	// DropDestination.
	Dropped []ledger.Message
}

// Run drains the pending queue and then advances the clock by TickSeconds.
//
// Messages are taken one at a time in the order chosen by the System's
// Order. Each transaction is forwarded to the trackers and then the
// loggers subscribed to its account, and its outgoing internal messages
// are appended to the queue together.
//
// An engine error or an untrackable transaction aborts the run: the
// message being applied is consumed, the rest of the queue is kept and the
// clock does not advance. Messages the engine declines are collected in
// RunResult.Rejected and the run continues.
//
// Cancellation is not honoured mid-run; ctx carries tracing only.
func (s *System) Run(ctx context.Context) (result *RunResult, err error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := s.runIDs.Generate()
	ctx, span := s.tracer.Start(ctx, "sandbox.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("sandbox.run_id", runID),
			attribute.Int("sandbox.pending", s.queue.Len()),
		))
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.Int("sandbox.transactions", len(result.Transactions)))
		}
		endSpan(span, err)
	}()

	slog.Info("run starting",
		"run_id", runID,
		"pending", s.queue.Len(),
		"now", s.clock.Now(),
		"lt", s.clock.LT(),
	)
	if s.journal != nil {
		if err := s.journal.BeginRun(ctx, runID, s.clock.Now(), s.clock.LT()); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
	}

	result = &RunResult{RunID: runID}
	quota := newRunQuota(s.maxTxs)
	for {
		p, ok := s.queue.Take(s.order)
		if !ok {
			break
		}
		applied, err := s.dispatch(ctx, runID, p.msg, result)
		if err == nil && applied {
			err = quota.Check(runID, s.queue.Len())
		}
		if err != nil {
			slog.Error("run aborted",
				"run_id", runID,
				"transactions", quota.Applied(),
				"pending", s.queue.Len(),
				"error", err,
			)
			s.finishJournal(ctx, runID, store.RunAborted, len(result.Transactions), err)
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
	}

	now := s.clock.Advance(TickSeconds)
	slog.Info("run completed",
		"run_id", runID,
		"transactions", len(result.Transactions),
		"external_out", len(result.ExternalOut),
		"rejected", len(result.Rejected),
		"dropped", len(result.Dropped),
		"now", now,
	)
	if err := s.finishJournal(ctx, runID, store.RunCompleted, len(result.Transactions), nil); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return result, nil
}

// dispatch applies one message and reports whether a transaction was
// produced.
func (s *System) dispatch(ctx context.Context, runID string, msg ledger.Message, result *RunResult) (applied bool, err error) {
	switch msg.Kind {
	case ledger.MessageInternal, ledger.MessageExternalIn:
	case ledger.MessageExternalOut:
		result.ExternalOut = append(result.ExternalOut, msg)
		return false, nil
	default:
		return false, fmt.Errorf("unknown message kind %d", int(msg.Kind))
	}
	dest, ok := msg.Destination()
	if !ok {
		return false, fmt.Errorf("%s message without destination", msg.Kind)
	}

	c, ok := s.Lookup(dest)
	if !ok {
		if s.unknown == DropDestination {
			slog.Warn("message dropped: unknown destination",
				"run_id", runID,
				"address", dest.String(),
				"kind", msg.Kind.String(),
			)
			result.Dropped = append(result.Dropped, msg)
			return false, nil
		}
		c = s.Contract(dest)
	}

	ctx, span := s.tracer.Start(ctx, "sandbox.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		spanAttrs(msg, dest))
	defer func() { endSpan(span, err) }()

	slog.Debug("dispatching message",
		"run_id", runID,
		"address", dest.String(),
		"kind", msg.Kind.String(),
		"value", msg.Value().String(),
	)
	res, err := c.Receive(ctx, msg)
	if err != nil {
		return false, err
	}
	if !res.Success {
		slog.Warn("message rejected",
			"run_id", runID,
			"address", dest.String(),
			"error", res.Error,
		)
		span.SetAttributes(attribute.Bool("sandbox.rejected", true))
		result.Rejected = append(result.Rejected, Rejected{
			Address: dest,
			Message: msg,
			Error:   res.Error,
			Logs:    res.Logs,
		})
		return false, nil
	}

	tx := res.Transaction
	s.clock.RaiseLT(tx.EndLT)
	seq := s.clock.NextSeq()
	span.SetAttributes(
		attribute.Int("sandbox.seq", seq),
		attribute.Int64("ledger.exit_code", int64(tx.Description.Compute.ExitCode)),
		attribute.Int("ledger.out_messages", len(tx.OutMessages)),
	)

	trackers, loggers := s.subscribers(dest)
	for _, t := range trackers {
		if err := t.Track(seq, tx, s); err != nil {
			return false, fmt.Errorf("track transaction %d on %s: %w", seq, dest, err)
		}
	}
	for _, l := range loggers {
		l.Track(seq, res.Logs)
	}
	if s.journal != nil {
		evs, err := events.Derive(tx, s)
		if err != nil {
			return false, fmt.Errorf("journal transaction %d on %s: %w", seq, dest, err)
		}
		if err := s.journal.WriteTransaction(ctx, runID, seq, tx, evs); err != nil {
			return false, err
		}
	}

	var next []ledger.Message
	for i, out := range tx.OutMessages {
		switch out.Kind {
		case ledger.MessageInternal, ledger.MessageExternalIn:
			next = append(next, out)
		case ledger.MessageExternalOut:
			result.ExternalOut = append(result.ExternalOut, out)
		default:
			return false, fmt.Errorf("transaction %d on %s: outgoing message %d has unknown kind %d", seq, dest, i, int(out.Kind))
		}
	}
	s.queue.Push(next...)
	result.Transactions = append(result.Transactions, tx)
	return true, nil
}

// finishJournal closes the run record. Failures on an aborted run are only
// logged; the abort error wins.
func (s *System) finishJournal(ctx context.Context, runID string, status store.RunStatus, txs int, runErr error) error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.FinishRun(ctx, runID, status, s.clock.Now(), s.clock.LT(), txs, runErr)
	if err != nil && status == store.RunAborted {
		slog.Warn("journal finish failed", "run_id", runID, "error", err)
		return nil
	}
	return err
}
