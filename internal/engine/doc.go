// Package engine implements the simulation registry and its run loop.
//
// A System owns every known Contract, one logical clock and one pending
// message queue. Callers inject messages with Send or SendInternal and
// drain them with Run; each applied message yields a ledger.Transaction
// that is forwarded to the trackers and loggers subscribed to its account.
//
// ARCHITECTURE:
//
// Single run loop:
// Run drains the queue on one goroutine. Messages are applied one at a
// time; the outgoing messages of a transaction are appended to the queue
// together, in emission order. When the queue is empty the clock advances
// by TickSeconds.
//
// Locking:
//   - System.mu guards the registry maps and subscriptions.
//   - System.runMu serializes Run calls.
//   - Contract.mu serializes Get, Receive and the administrative mutators
//     of one account.
//   - emulator.Bindings holds one lock over every engine call.
//
// Locks are taken in that order and never in reverse.
//
// Ordering:
// The next message is chosen by an Order. FIFO is the default; Random
// picks uniformly with a fixed seed so reordering stays reproducible.
package engine
