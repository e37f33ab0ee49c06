package testutil

import (
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sandbox/internal/ledger"
)

const addressDomain = "sandbox/testutil/address"

// Address derives a stable address for a named party. Names are compared
// after NFC normalization, so visually equal names share an address.
func Address(workchain int32, name string) ledger.Address {
	return ledger.NewAddress(workchain, ledger.HashWithDomain(addressDomain, []byte(norm.NFC.String(name))))
}
