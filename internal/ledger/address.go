package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// Address identifies an account: a workchain id and a 256-bit hash.
// Raw text form is "workchain:hex", e.g. "0:83df...".
type Address struct {
	Workchain int32
	Hash      Hash
}

// NewAddress builds an address from its parts.
func NewAddress(workchain int32, hash Hash) Address {
	return Address{Workchain: workchain, Hash: hash}
}

// ParseAddress parses the raw "workchain:hex" form.
func ParseAddress(s string) (Address, error) {
	wc, hashPart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Address{}, fmt.Errorf("invalid address %q: expected workchain:hash", s)
	}
	n, err := strconv.ParseInt(wc, 10, 32)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: workchain: %w", s, err)
	}
	h, err := ParseHash(strings.ToLower(hashPart))
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address{Workchain: int32(n), Hash: h}, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// Use only in tests or with constant inputs.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the raw "workchain:hex" form.
func (a Address) String() string {
	return strconv.FormatInt(int64(a.Workchain), 10) + ":" + a.Hash.String()
}

// IsZero reports whether this is the zero address value.
func (a Address) IsZero() bool {
	return a.Workchain == 0 && a.Hash.IsZero()
}

// Equal reports whether two addresses are identical.
func (a Address) Equal(other Address) bool {
	return a == other
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
