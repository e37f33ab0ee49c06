package testutil

import "sync"

// FixedNow is the simulated unix time scenarios start at unless they set
// one.
const FixedNow uint32 = 1_700_000_000

// DeterministicClock is a settable unix-seconds clock for scenarios.
//
// Unlike engine.Clock it carries no logical time or sequence numbers; it
// only computes the times a scenario moves the ledger to.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu  sync.Mutex
	now uint32
}

// NewDeterministicClock creates a clock reading start. A zero start reads
// FixedNow.
func NewDeterministicClock(start uint32) *DeterministicClock {
	if start == 0 {
		start = FixedNow
	}
	return &DeterministicClock{now: start}
}

// Now returns the current time.
func (c *DeterministicClock) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now. Moving backwards is allowed.
func (c *DeterministicClock) Set(now uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by seconds and returns the new time.
func (c *DeterministicClock) Advance(seconds uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}
