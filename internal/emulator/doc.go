// Package emulator adapts an execution engine to the sandbox.
//
// The engine is a single-instance resource with shared mutable memory, so
// Bindings serializes every call behind one mutex and is meant to be created
// once and injected into the simulation registry. Each call is a string round
// trip: parameters go in as JSON and base64 payloads, the response comes back
// as a JSON document with an "output" object and free-text "logs".
//
// Diagnostic lines the engine writes to stderr while a call is in flight are
// folded into that call's Logs and then discarded, so logs never bleed from
// one call into the next.
//
// Failures come in two flavours. An *Error means the call itself did not
// complete (the engine could not be loaded, crashed, or answered with
// something unparseable). A completed call that reports Success=false or a
// non-zero exit code is an ordinary result.
package emulator
