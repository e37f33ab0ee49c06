package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sandbox/internal/emulator"
	"github.com/roach88/sandbox/internal/emulator/native"
	"github.com/roach88/sandbox/internal/engine"
	"github.com/roach88/sandbox/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

// Network holds the fee and gas parameters of the native backend.
type Network struct {
	GasPrice     uint64 `json:"gas_price" yaml:"gas_price"`
	GasBase      uint64 `json:"gas_base" yaml:"gas_base"`
	GasPerAction uint64 `json:"gas_per_action" yaml:"gas_per_action"`
	ForwardFee   uint64 `json:"forward_fee" yaml:"forward_fee"`
	StorageFee   uint64 `json:"storage_fee" yaml:"storage_fee"`
	GasLimit     uint64 `json:"gas_limit" yaml:"gas_limit"`
}

// Settings configures a System.
type Settings struct {
	// Now is the initial simulated time. Nil means wall-clock time.
	Now                *uint32 `json:"now,omitempty" yaml:"now,omitempty"`
	LT                 uint64  `json:"lt" yaml:"lt"`
	Verbosity          string  `json:"verbosity" yaml:"verbosity"`
	Order              string  `json:"order" yaml:"order"`
	Seed               uint64  `json:"seed" yaml:"seed"`
	UnknownDestination string  `json:"unknown_destination" yaml:"unknown_destination"`
	MaxTransactions    int     `json:"max_transactions" yaml:"max_transactions"`
	Journal            string  `json:"journal,omitempty" yaml:"journal,omitempty"`
	// Engine is the path of a WebAssembly engine build. Empty selects the
	// native engine.
	Engine             string  `json:"engine,omitempty" yaml:"engine,omitempty"`
	Network            Network `json:"network" yaml:"network"`
}

// Error is a settings file that failed to parse or validate.
type Error struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// Default returns the settings of an empty file.
func Default() Settings {
	s, err := decode(cuecontext.New(), "", cue.Value{}, false)
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return s
}

// Load reads a settings file. Files ending in .cue are compiled as CUE;
// anything else is parsed as YAML.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if filepath.Ext(path) == ".cue" {
		return ParseCUE(path, data)
	}
	return ParseYAML(path, data)
}

// ParseYAML validates YAML settings. name is used in error messages.
func ParseYAML(name string, data []byte) (Settings, error) {
	var raw map[string]any
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Settings{}, &Error{Path: name, Message: err.Error()}
		}
	}
	return FromMap(name, raw)
}

// FromMap validates settings already decoded from YAML or JSON, such as
// the settings block of a scenario.
func FromMap(name string, raw map[string]any) (Settings, error) {
	ctx := cuecontext.New()
	if raw == nil {
		return decode(ctx, name, cue.Value{}, false)
	}
	v := ctx.Encode(raw)
	if err := v.Err(); err != nil {
		return Settings{}, cueError(name, err)
	}
	return decode(ctx, name, v, true)
}

// ParseCUE validates CUE settings. The file is a plain struct; a package
// clause is allowed.
func ParseCUE(name string, data []byte) (Settings, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return Settings{}, cueError(name, err)
	}
	return decode(ctx, name, v, true)
}

func decode(ctx *cue.Context, name string, v cue.Value, set bool) (Settings, error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Settings{}, cueError("schema.cue", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Settings"))
	if set {
		unified = unified.Unify(v)
	}
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return Settings{}, cueError(name, err)
	}
	var s Settings
	if err := unified.Decode(&s); err != nil {
		return Settings{}, cueError(name, err)
	}
	return s, nil
}

func cueError(name string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Path: name, Message: err.Error()}
	}
	first := errs[0]
	e := &Error{Path: name, Message: first.Error()}
	if pos := cueerrors.Positions(first); len(pos) > 0 && pos[0].Filename() == name {
		e.Pos = pos[0]
	}
	return e
}

// NetworkConfig encodes the network parameters as the config cell the
// native backend reads.
func (s Settings) NetworkConfig() *ledger.Cell {
	return native.Config{
		GasPrice:     s.Network.GasPrice,
		GasBase:      s.Network.GasBase,
		GasPerAction: s.Network.GasPerAction,
		ForwardFee:   s.Network.ForwardFee,
		StorageFee:   s.Network.StorageFee,
		GasLimit:     s.Network.GasLimit,
	}.Cell()
}

// EngineVerbosity returns the parsed default verbosity.
func (s Settings) EngineVerbosity() emulator.Verbosity {
	v, err := emulator.ParseVerbosity(s.Verbosity)
	if err != nil {
		return emulator.VerbosityNone
	}
	return v
}

// Options returns the System options the settings describe. The journal
// is not opened here; callers pass engine.WithJournal themselves.
func (s Settings) Options() []engine.Option {
	now := uint32(time.Now().Unix())
	if s.Now != nil {
		now = *s.Now
	}
	opts := []engine.Option{
		engine.WithNow(now),
		engine.WithLT(s.LT),
		engine.WithConfig(s.NetworkConfig()),
		engine.WithVerbosity(s.EngineVerbosity()),
		engine.WithMaxTransactions(s.MaxTransactions),
	}
	if s.Order == "random" {
		opts = append(opts, engine.WithOrder(engine.NewRandom(s.Seed)))
	}
	if s.UnknownDestination == "drop" {
		opts = append(opts, engine.WithUnknownDestination(engine.DropDestination))
	}
	return opts
}
