package events

import (
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/sandbox/internal/ledger"
)

// Tracker accumulates the events of one address.
//
// Thread-safety: safe for concurrent use.
type Tracker struct {
	address ledger.Address

	mu  sync.Mutex
	txs []TrackedTransaction
}

// NewTracker creates a tracker for address.
func NewTracker(address ledger.Address) *Tracker {
	return &Tracker{address: address}
}

// Address returns the tracked address.
func (t *Tracker) Address() ledger.Address {
	return t.address
}

// Track derives and records the events of tx. seq is the run-wide
// transaction sequence number.
func (t *Tracker) Track(seq int, tx ledger.Transaction, r Resolver) error {
	evs, err := Derive(tx, r)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.txs = append(t.txs, TrackedTransaction{Seq: seq, LT: tx.LT, Events: evs})
	return nil
}

// Events returns every event recorded since the last collection, in order,
// and clears them.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []Event{}
	for _, tx := range t.txs {
		out = append(out, tx.Events...)
	}
	t.txs = nil
	return out
}

// Transactions returns the recorded events grouped per transaction and
// clears them.
func (t *Tracker) Transactions() []TrackedTransaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.txs
	if out == nil {
		out = []TrackedTransaction{}
	}
	t.txs = nil
	return out
}

type logEntry struct {
	seq  int
	logs string
}

// Logger accumulates engine logs of one address.
//
// Thread-safety: safe for concurrent use.
type Logger struct {
	address ledger.Address

	mu      sync.Mutex
	entries []logEntry
}

// NewLogger creates a logger for address.
func NewLogger(address ledger.Address) *Logger {
	return &Logger{address: address}
}

// Address returns the logged address.
func (l *Logger) Address() ledger.Address {
	return l.address
}

// Track records the logs of transaction seq.
func (l *Logger) Track(seq int, logs string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{seq: seq, logs: logs})
}

// Collect renders recorded logs under per-transaction banners and clears
// them.
func (l *Logger) Collect() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	parts := make([]string, len(l.entries))
	for i, e := range l.entries {
		parts[i] = "===================\nTX: " + strconv.Itoa(e.seq) + "\n===================\n" + e.logs
	}
	l.entries = nil
	return strings.Join(parts, "\n\n")
}

// Reset drops recorded logs.
func (l *Logger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
