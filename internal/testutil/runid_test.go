package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIDGenerator_Sequence(t *testing.T) {
	gen := NewRunIDGenerator("scenario")

	assert.Equal(t, "scenario-1", gen.Generate())
	assert.Equal(t, "scenario-2", gen.Generate())
	assert.Equal(t, "scenario-3", gen.Generate())
}

func TestRunIDGenerator_EmptyPrefixDefault(t *testing.T) {
	gen := NewRunIDGenerator("")

	assert.Equal(t, "run-1", gen.Generate())
}

func TestRunIDGenerator_ThreadSafeAndUnique(t *testing.T) {
	gen := NewRunIDGenerator("p")

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 1000)
	assert.True(t, seen["p-1000"])
}

func TestRunIDGenerator_Resume(t *testing.T) {
	gen := NewRunIDGenerator("scenario")
	gen.Resume(4)

	assert.Equal(t, "scenario-5", gen.Generate())
}
