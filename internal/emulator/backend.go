package emulator

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Backend is the raw engine surface. Every argument and result is a string,
// matching the engine's exported C functions.
//
// Implementations are not safe for concurrent use; Bindings provides the
// serialization.
type Backend interface {
	// RunGetMethod evaluates a getter. params is a JSON object, stack and
	// config are base64 payloads. Returns the JSON response.
	RunGetMethod(ctx context.Context, params, stack, config string) (string, error)

	// CreateEmulator creates a transaction emulator bound to config and
	// returns its handle. A zero handle means creation failed.
	CreateEmulator(ctx context.Context, config string, verbosity int) (uint32, error)

	// Emulate applies a message to a shard account. libs may be empty.
	Emulate(ctx context.Context, handle uint32, libs, shardAccount, message, params string) (string, error)

	// SetStderr directs diagnostic output written during calls to w.
	SetStderr(w io.Writer)

	// Close releases the engine.
	Close(ctx context.Context) error
}

// Verbosity controls how much diagnostic output the engine produces.
type Verbosity int

const (
	VerbosityNone Verbosity = iota
	VerbosityInfo
	VerbosityDebug
	VerbosityFull
)

var verbosityNames = map[Verbosity]string{
	VerbosityNone:  "none",
	VerbosityInfo:  "info",
	VerbosityDebug: "debug",
	VerbosityFull:  "full",
}

func (v Verbosity) String() string {
	if s, ok := verbosityNames[v]; ok {
		return s
	}
	return fmt.Sprintf("verbosity(%d)", int(v))
}

// ParseVerbosity maps a name to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	for v, name := range verbosityNames {
		if strings.EqualFold(s, name) {
			return v, nil
		}
	}
	return VerbosityNone, fmt.Errorf("unknown verbosity %q (expected none, info, debug or full)", s)
}

// AtLeast returns the larger of v and min.
func (v Verbosity) AtLeast(min Verbosity) Verbosity {
	if v < min {
		return min
	}
	return v
}
