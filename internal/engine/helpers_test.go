package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/emulator/native"
	"github.com/roach88/sandbox/internal/ledger"
)

const testNow uint32 = 1_700_000_000

// outside is an address no test registers up front. Messages injected from
// it bring value into the system.
var outside = testAddr(999)

func newTestSystem(t *testing.T, opts ...Option) *System {
	t.Helper()
	b := emulator.New(native.New())
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	base := []Option{
		WithNow(testNow),
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3")),
	}
	return New(b, append(base, opts...)...)
}

func deploy(t *testing.T, s *System, handler string, data *ledger.Cell, balance uint64) *Contract {
	t.Helper()
	c, err := s.Create(CreateArgs{
		Code:    native.Code(handler),
		Data:    data,
		Balance: ledger.NewCoins(balance),
	})
	require.NoError(t, err)
	return c
}

func run(t *testing.T, s *System) *RunResult {
	t.Helper()
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

func sendValue(t *testing.T, s *System, to ledger.Address, value uint64, bounce bool, body *ledger.Cell) {
	t.Helper()
	require.NoError(t, s.SendInternal(outside, InternalMessage{
		To:     to,
		Value:  ledger.NewCoins(value),
		Bounce: bounce,
		Body:   body,
	}))
}

func totalBalance(s *System) ledger.Coins {
	var sum ledger.Coins
	for _, c := range s.Contracts() {
		sum = sum.Add(c.Balance())
	}
	return sum
}

func totalFees(txs []ledger.Transaction) ledger.Coins {
	var sum ledger.Coins
	for _, tx := range txs {
		sum = sum.Add(tx.TotalFees)
	}
	return sum
}

func counterValue(t *testing.T, c *Contract) int64 {
	t.Helper()
	res, err := c.Get(context.Background(), "counter")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, int32(0), res.ExitCode)
	n, err := res.Stack.ReadInt64()
	require.NoError(t, err)
	return n
}
