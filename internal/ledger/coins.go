package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Coins is an unsigned amount of value units.
// The zero value is zero coins. Coins are immutable values; arithmetic
// returns a new value.
type Coins struct {
	n uint256.Int
}

// NewCoins creates an amount from a uint64.
func NewCoins(v uint64) Coins {
	var c Coins
	c.n.SetUint64(v)
	return c
}

// ParseCoins parses a decimal amount.
func ParseCoins(s string) (Coins, error) {
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return Coins{}, fmt.Errorf("parse coins %q: %w", s, err)
	}
	return Coins{n: *n}, nil
}

// MustParseCoins is like ParseCoins but panics on error.
func MustParseCoins(s string) Coins {
	c, err := ParseCoins(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Add returns c + o. Overflow wraps, which cannot happen for amounts the
// ledger can represent.
func (c Coins) Add(o Coins) Coins {
	var r Coins
	r.n.Add(&c.n, &o.n)
	return r
}

// Sub returns c - o and false if the subtraction would underflow.
func (c Coins) Sub(o Coins) (Coins, bool) {
	var r Coins
	if _, underflow := r.n.SubOverflow(&c.n, &o.n); underflow {
		return Coins{}, false
	}
	return r, true
}

// SubSaturating returns c - o, or zero when o > c.
func (c Coins) SubSaturating(o Coins) Coins {
	r, ok := c.Sub(o)
	if !ok {
		return Coins{}
	}
	return r
}

// MulUint64 returns c * m.
func (c Coins) MulUint64(m uint64) Coins {
	var r Coins
	r.n.Mul(&c.n, uint256.NewInt(m))
	return r
}

// Min returns the smaller of c and o.
func (c Coins) Min(o Coins) Coins {
	if c.Cmp(o) <= 0 {
		return c
	}
	return o
}

// Cmp compares c and o and returns -1, 0 or +1.
func (c Coins) Cmp(o Coins) int {
	return c.n.Cmp(&o.n)
}

// IsZero reports whether the amount is zero.
func (c Coins) IsZero() bool {
	return c.n.IsZero()
}

// Uint64 returns the low 64 bits of the amount.
func (c Coins) Uint64() uint64 {
	return c.n.Uint64()
}

// String returns the decimal representation.
func (c Coins) String() string {
	return c.n.Dec()
}

// MarshalText implements encoding.TextMarshaler (decimal).
func (c Coins) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Coins) UnmarshalText(text []byte) error {
	parsed, err := ParseCoins(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// SumCoins adds up a list of amounts.
func SumCoins(values ...Coins) Coins {
	var total Coins
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
