package testutil

import (
	"strconv"
	"sync/atomic"
)

// RunIDGenerator names runs prefix-1, prefix-2, ... so journals written by
// repeated scenario runs never reuse an id.
//
// Implements engine.RunIDGenerator.
//
// Thread-safety: safe for concurrent use.
type RunIDGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewRunIDGenerator creates a generator. An empty prefix becomes "run".
func NewRunIDGenerator(prefix string) *RunIDGenerator {
	if prefix == "" {
		prefix = "run"
	}
	return &RunIDGenerator{prefix: prefix}
}

// Generate returns the next run id.
func (g *RunIDGenerator) Generate() string {
	return g.prefix + "-" + strconv.FormatInt(g.n.Add(1), 10)
}

// Resume makes the next id prefix-(n+1). Used when earlier runs are
// already journaled.
func (g *RunIDGenerator) Resume(n int) {
	g.n.Store(int64(n))
}
