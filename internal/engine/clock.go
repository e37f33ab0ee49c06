package engine

import "sync/atomic"

// TickSeconds is how far Run advances the clock after draining the queue.
const TickSeconds uint32 = 16

// Clock holds the simulated time of a System: wall-clock seconds (now),
// the logical time counter (lt) and the transaction sequence handed to
// trackers and loggers.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	now atomic.Uint32
	lt  atomic.Uint64
	seq atomic.Int64
}

// NewClock creates a clock at now with lt 0.
func NewClock(now uint32) *Clock {
	c := &Clock{}
	c.now.Store(now)
	return c
}

// Now returns the simulated unix time.
func (c *Clock) Now() uint32 {
	return c.now.Load()
}

// LT returns the current logical time.
func (c *Clock) LT() uint64 {
	return c.lt.Load()
}

// SetNow overrides the simulated time.
func (c *Clock) SetNow(now uint32) {
	c.now.Store(now)
}

// SetLT overrides the logical time. Unlike RaiseLT it may move backwards.
func (c *Clock) SetLT(lt uint64) {
	c.lt.Store(lt)
}

// Advance moves the simulated time forward and returns the new value.
func (c *Clock) Advance(seconds uint32) uint32 {
	return c.now.Add(seconds)
}

// RaiseLT moves lt up to at least lt. It never decreases the counter.
func (c *Clock) RaiseLT(lt uint64) {
	for {
		cur := c.lt.Load()
		if lt <= cur || c.lt.CompareAndSwap(cur, lt) {
			return
		}
	}
}

// NextSeq returns the next transaction sequence number, starting at 1.
func (c *Clock) NextSeq() int {
	return int(c.seq.Add(1))
}

// ResumeSeq makes NextSeq continue after seq. It only moves forward.
func (c *Clock) ResumeSeq(seq int) {
	for {
		cur := c.seq.Load()
		if int64(seq) <= cur || c.seq.CompareAndSwap(cur, int64(seq)) {
			return
		}
	}
}
