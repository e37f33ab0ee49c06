package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/emulator/native"
	"github.com/roach88/sandbox/internal/ledger"
)

// Senders, getters and a draining run loop share one contract and one
// set of bindings. Run with -race.
func TestSystem_ConcurrentSendGetRun(t *testing.T) {
	const (
		senders   = 4
		perSender = 25
		readers   = 3
		total     = senders * perSender
	)
	s := newTestSystem(t, WithRunIDGenerator(UUIDv7Generator{}))
	c := deploy(t, s, native.HandlerCounter, native.CounterData(0), 1_000_000)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		applied int
	)
	drain := func() error {
		res, err := s.Run(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		applied += len(res.Transactions)
		mu.Unlock()
		return nil
	}

	stop := make(chan struct{})
	var background sync.WaitGroup

	background.Add(1)
	go func() {
		defer background.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if !assert.NoError(t, drain()) {
				return
			}
		}
	}()

	for range readers {
		background.Add(1)
		go func() {
			defer background.Done()
			last := int64(0)
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := c.Get(ctx, "counter")
				if !assert.NoError(t, err) {
					return
				}
				n, err := res.Stack.ReadInt64()
				if !assert.NoError(t, err) {
					return
				}
				assert.GreaterOrEqual(t, n, last, "counter never goes back")
				assert.LessOrEqual(t, n, int64(total))
				last = n
			}
		}()
	}

	var sending sync.WaitGroup
	for range senders {
		sending.Add(1)
		go func() {
			defer sending.Done()
			for range perSender {
				assert.NoError(t, s.SendInternal(outside, InternalMessage{
					To:    c.Address(),
					Value: ledger.NewCoins(5000),
				}))
			}
		}()
	}
	sending.Wait()
	close(stop)
	background.Wait()

	// Whatever the loop left behind.
	require.NoError(t, drain())

	assert.Equal(t, total, applied, "every message applied exactly once")
	assert.Equal(t, int64(total), counterValue(t, c))
}
