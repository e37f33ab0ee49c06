package engine

import (
	"math/rand/v2"
	"sync"
)

// Order selects which pending message Run applies next.
type Order interface {
	// Next returns an index in [0, n). n is always positive.
	Next(n int) int
}

// FIFO applies messages in arrival order.
type FIFO struct{}

// Next always picks the oldest message.
func (FIFO) Next(int) int { return 0 }

// Random applies messages in a pseudo-random order fixed by its seed.
//
// Thread-safety: Random is safe for concurrent use via internal mutex.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random order. The same seed yields the same order
// for the same sequence of queue lengths.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next picks uniformly among the pending messages.
func (r *Random) Next(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}
