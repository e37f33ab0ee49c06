package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_NewClock(t *testing.T) {
	c := NewClock(1000)
	assert.Equal(t, uint32(1000), c.Now())
	assert.Equal(t, uint64(0), c.LT(), "new clock should start at lt 0")
}

func TestClock_Advance(t *testing.T) {
	c := NewClock(1000)
	assert.Equal(t, uint32(1016), c.Advance(TickSeconds))
	assert.Equal(t, uint32(1016), c.Now())
}

func TestClock_RaiseLT_NeverDecreases(t *testing.T) {
	c := NewClock(0)
	c.RaiseLT(10)
	assert.Equal(t, uint64(10), c.LT())
	c.RaiseLT(5)
	assert.Equal(t, uint64(10), c.LT(), "raise below current is ignored")
	c.RaiseLT(11)
	assert.Equal(t, uint64(11), c.LT())
}

func TestClock_SetLT_MayDecrease(t *testing.T) {
	c := NewClock(0)
	c.RaiseLT(100)
	c.SetLT(3)
	assert.Equal(t, uint64(3), c.LT())
}

func TestClock_NextSeq(t *testing.T) {
	c := NewClock(0)
	assert.Equal(t, 1, c.NextSeq())
	assert.Equal(t, 2, c.NextSeq())
	assert.Equal(t, 3, c.NextSeq())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock(0)
	const goroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	seqs := make(chan int, goroutines*callsPerGoroutine)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				seqs <- c.NextSeq()
				c.RaiseLT(base + uint64(j))
			}
		}(uint64(i * 1000))
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d generated twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, goroutines*callsPerGoroutine)
	assert.Equal(t, uint64((goroutines-1)*1000+callsPerGoroutine-1), c.LT(), "lt ends at the maximum raised value")
}

func TestClock_ResumeSeq(t *testing.T) {
	c := NewClock(0)
	c.ResumeSeq(41)
	assert.Equal(t, 42, c.NextSeq())

	c.ResumeSeq(10)
	assert.Equal(t, 43, c.NextSeq(), "resume never moves backwards")
}
