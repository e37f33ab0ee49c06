package emulator

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/roach88/sandbox/internal/ledger"
)

// GetMethodParams is the JSON parameter object of run_get_method.
type GetMethodParams struct {
	Code      string `json:"code"`
	Data      string `json:"data"`
	Verbosity int    `json:"verbosity"`
	Libs      string `json:"libs"`
	Address   string `json:"address"`
	Unixtime  uint32 `json:"unixtime"`
	Balance   string `json:"balance"`
	RandSeed  string `json:"rand_seed"`
	GasLimit  string `json:"gas_limit"`
	MethodID  int64  `json:"method_id"`
}

// GetMethodOutput is the "output" object of a run_get_method response.
// Success=false means the engine could not evaluate the getter at all.
type GetMethodOutput struct {
	Success        bool    `json:"success"`
	Stack          string  `json:"stack,omitempty"`
	GasUsed        string  `json:"gas_used,omitempty"`
	VMExitCode     int32   `json:"vm_exit_code"`
	VMLog          string  `json:"vm_log,omitempty"`
	MissingLibrary *string `json:"missing_library"`
	Error          string  `json:"error,omitempty"`
}

// GetMethodResponse is the full run_get_method response.
type GetMethodResponse struct {
	Output GetMethodOutput `json:"output"`
	Logs   string          `json:"logs"`
}

// EmulateParams is the JSON parameter object of emulate.
type EmulateParams struct {
	Utime        uint32 `json:"utime"`
	LT           string `json:"lt"`
	RandSeed     string `json:"rand_seed"`
	IgnoreChksig bool   `json:"ignore_chksig"`
}

// EmulateOutput is the "output" object of an emulate response.
// Success=false means the engine declined the message and produced no
// transaction.
type EmulateOutput struct {
	Success             bool    `json:"success"`
	Transaction         string  `json:"transaction,omitempty"`
	ShardAccount        string  `json:"shard_account,omitempty"`
	VMLog               string  `json:"vm_log"`
	Actions             *string `json:"actions"`
	Error               string  `json:"error,omitempty"`
	ExternalNotAccepted bool    `json:"external_not_accepted,omitempty"`
	VMExitCode          int32   `json:"vm_exit_code,omitempty"`
}

// EmulateResponse is the full emulate response.
type EmulateResponse struct {
	Output EmulateOutput `json:"output"`
	Logs   string        `json:"logs"`
}

// EncodePayload renders codec output as standard base64.
func EncodePayload(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodePayload parses a standard base64 payload.
func DecodePayload(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return data, nil
}

// EncodeSeed renders a random seed as hex.
func EncodeSeed(seed ledger.Hash) string {
	return hex.EncodeToString(seed[:])
}

// DecodeSeed parses a hex random seed. An empty string is the zero seed.
func DecodeSeed(s string) (ledger.Hash, error) {
	if s == "" {
		return ledger.Hash{}, nil
	}
	return ledger.ParseHash(s)
}

// ParseUint64 parses a decimal string wire integer.
func ParseUint64(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q: %w", s, err)
	}
	return v, nil
}
