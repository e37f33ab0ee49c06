// Package events derives semantic events and readable logs from
// transactions.
//
// Derive is a pure function of a transaction and a Resolver. Tracker and
// Logger are subscription objects: the run loop feeds them every
// transaction of their address and the subscriber collects the accumulated
// output, which clears it.
package events
