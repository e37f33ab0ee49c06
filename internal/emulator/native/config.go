package native

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sandbox/internal/ledger"
)

// Config holds the network parameters the engine charges against.
// All fee values are in coins.
type Config struct {
	// GasPrice is the coin cost of one gas unit.
	GasPrice uint64 `json:"gas_price"`

	// GasBase is charged by every compute phase that runs.
	GasBase uint64 `json:"gas_base"`

	// GasPerAction is charged for each queued outgoing message.
	GasPerAction uint64 `json:"gas_per_action"`

	// ForwardFee is charged for each outgoing message, bounces included.
	ForwardFee uint64 `json:"forward_fee"`

	// StorageFee is charged per second since the account last paid.
	StorageFee uint64 `json:"storage_fee"`

	// GasLimit caps gas per transaction and per getter call.
	GasLimit uint64 `json:"gas_limit"`
}

// DefaultConfig returns the parameters used when the config cell is empty.
func DefaultConfig() Config {
	return Config{
		GasPrice:     1,
		GasBase:      1000,
		GasPerAction: 100,
		ForwardFee:   500,
		StorageFee:   0,
		GasLimit:     1_000_000,
	}
}

// Cell encodes the config as a network configuration cell.
func (c Config) Cell() *ledger.Cell {
	data, err := json.Marshal(c)
	if err != nil {
		// Config only holds integers.
		panic(fmt.Sprintf("marshal native config: %v", err))
	}
	return ledger.NewCell(data)
}

// ParseConfig decodes a configuration cell. An empty cell yields
// DefaultConfig; absent fields keep their defaults.
func ParseConfig(c *ledger.Cell) (Config, error) {
	cfg := DefaultConfig()
	if c.IsEmpty() {
		return cfg, nil
	}
	if err := json.Unmarshal(c.Data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse network config: %w", err)
	}
	return cfg, nil
}

func (c Config) gasFee(gas uint64) ledger.Coins {
	return ledger.NewCoins(c.GasPrice).MulUint64(gas)
}

// gasLimitFor returns the gas an account with balance can afford.
func (c Config) gasLimitFor(balance ledger.Coins) uint64 {
	if c.GasPrice == 0 {
		return c.GasLimit
	}
	affordable := balance.Uint64() / c.GasPrice
	if balance.Cmp(ledger.NewCoins(^uint64(0))) > 0 {
		affordable = ^uint64(0) / c.GasPrice
	}
	return min(affordable, c.GasLimit)
}
