// Package native is a deterministic, pure-Go execution engine.
//
// Contract code is a cell whose data names a registered Handler. A Handler
// reacts to inbound messages by updating its data cell and queueing outgoing
// messages, and exposes named getters. The engine implements the
// emulator.Backend string protocol, so it plugs into emulator.Bindings the
// same way a compiled engine does.
//
// Transactions go through the usual phases: storage, credit, compute,
// action and bounce. Every unit of value that leaves the set of accounts is
// reported in Transaction.TotalFees.
package native
