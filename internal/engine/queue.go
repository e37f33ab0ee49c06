package engine

import (
	"sync"

	"github.com/roach88/sandbox/internal/ledger"
)

// pending is one message waiting in the queue. id is unique per System and
// identifies the entry across reorderings.
type pending struct {
	id  uint64
	msg ledger.Message
}

// messageQueue is the pending-message queue of a System.
//
// The queue is unbounded: one transaction may emit many messages and none
// of them may be lost. Send may be called while Run is draining, so the
// queue is guarded by its own mutex.
type messageQueue struct {
	mu      sync.Mutex
	entries []pending
	nextID  uint64
}

func newMessageQueue() *messageQueue {
	return &messageQueue{
		entries: make([]pending, 0, 64),
	}
}

// Push appends messages in order as one batch. Nothing else is inserted
// between them.
func (q *messageQueue) Push(msgs ...ledger.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.nextID++
		q.entries = append(q.entries, pending{id: q.nextID, msg: m})
	}
}

// Take removes the entry chosen by order. Returns false if the queue is
// empty.
func (q *messageQueue) Take(order Order) (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	if n == 0 {
		return pending{}, false
	}
	i := order.Next(n)
	if i < 0 || i >= n {
		i = 0
	}
	p := q.entries[i]
	copy(q.entries[i:], q.entries[i+1:])

	// Clear the vacated tail slot so the message tree can be collected.
	q.entries[n-1] = pending{}
	if n == 1 {
		q.entries = q.entries[:0]
	} else {
		q.entries = q.entries[:n-1]
	}
	return p, true
}

// Snapshot returns the queued messages in queue order.
func (q *messageQueue) Snapshot() []ledger.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ledger.Message, len(q.entries))
	for i, p := range q.entries {
		out[i] = p.msg
	}
	return out
}

// Len returns the number of queued messages.
func (q *messageQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
