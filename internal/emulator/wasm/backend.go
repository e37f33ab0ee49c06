// Package wasm hosts a WebAssembly build of the execution engine.
//
// The module is expected to be an emscripten standalone (WASI) build that
// exports malloc, free, run_get_method, create_emulator and emulate with
// C string arguments. Its stderr is routed to the writer installed by
// emulator.Bindings.
package wasm

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/roach88/sandbox/internal/emulator"
)

const moduleName = "emulator"

// Backend runs the engine inside a wazero runtime.
type Backend struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	module   api.Module
	stderr   *switchWriter
}

var _ emulator.Backend = (*Backend)(nil)

// switchWriter lets the destination change after the module captured it.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w = w
}

// Load compiles wasmBytes. Compilation failures are ENGINE_UNAVAILABLE.
// The module is instantiated on first use.
func Load(ctx context.Context, wasmBytes []byte) (*Backend, error) {
	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, wasmBytes)
	if err != nil {
		_ = r.Close(ctx)
		return nil, emulator.NewUnavailableError("load", "compile engine module", err)
	}
	if _, err := emscripten.InstantiateForModule(ctx, r, compiled); err != nil {
		_ = r.Close(ctx)
		return nil, emulator.NewUnavailableError("load", "instantiate emscripten imports", err)
	}
	return &Backend{
		runtime:  r,
		compiled: compiled,
		stderr:   &switchWriter{w: io.Discard},
	}, nil
}

// LoadFile reads and compiles the module at path.
func LoadFile(ctx context.Context, path string) (*Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, emulator.NewUnavailableError("load", fmt.Sprintf("read %s", path), err)
	}
	return Load(ctx, data)
}

// SetStderr implements emulator.Backend.
func (b *Backend) SetStderr(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	b.stderr.set(w)
}

// Close implements emulator.Backend.
func (b *Backend) Close(ctx context.Context) error {
	return b.runtime.Close(ctx)
}

func (b *Backend) instance(ctx context.Context) (api.Module, error) {
	if b.module != nil {
		return b.module, nil
	}
	cfg := wazero.NewModuleConfig().
		WithName(moduleName).
		WithStdout(io.Discard).
		WithStderr(b.stderr).
		WithStartFunctions("_initialize")
	mod, err := b.runtime.InstantiateModule(ctx, b.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate engine: %w", err)
	}
	b.module = mod
	return mod, nil
}

// RunGetMethod implements emulator.Backend.
func (b *Backend) RunGetMethod(ctx context.Context, params, stack, config string) (string, error) {
	return b.invokeString(ctx, "run_get_method", params, stack, config)
}

// CreateEmulator implements emulator.Backend.
func (b *Backend) CreateEmulator(ctx context.Context, config string, verbosity int) (uint32, error) {
	mod, err := b.instance(ctx)
	if err != nil {
		return 0, err
	}
	ptr, err := writeCString(ctx, mod, config)
	if err != nil {
		return 0, err
	}
	defer freePtr(ctx, mod, ptr)

	res, err := call(ctx, mod, "create_emulator", uint64(ptr), uint64(uint32(verbosity)))
	if err != nil {
		return 0, err
	}
	return uint32(res), nil
}

// Emulate implements emulator.Backend. An empty libs string is passed as a
// null pointer.
func (b *Backend) Emulate(ctx context.Context, handle uint32, libs, shardAccount, message, params string) (string, error) {
	mod, err := b.instance(ctx)
	if err != nil {
		return "", err
	}
	var libsPtr uint32
	if libs != "" {
		if libsPtr, err = writeCString(ctx, mod, libs); err != nil {
			return "", err
		}
		defer freePtr(ctx, mod, libsPtr)
	}
	args := []uint64{uint64(handle), uint64(libsPtr)}
	for _, s := range []string{shardAccount, message, params} {
		ptr, err := writeCString(ctx, mod, s)
		if err != nil {
			return "", err
		}
		defer freePtr(ctx, mod, ptr)
		args = append(args, uint64(ptr))
	}
	res, err := call(ctx, mod, "emulate", args...)
	if err != nil {
		return "", err
	}
	return takeCString(ctx, mod, uint32(res))
}

// invokeString calls fn with every argument marshalled as a C string and
// returns the C string result.
func (b *Backend) invokeString(ctx context.Context, fn string, strs ...string) (string, error) {
	mod, err := b.instance(ctx)
	if err != nil {
		return "", err
	}
	args := make([]uint64, 0, len(strs))
	for _, s := range strs {
		ptr, err := writeCString(ctx, mod, s)
		if err != nil {
			return "", err
		}
		defer freePtr(ctx, mod, ptr)
		args = append(args, uint64(ptr))
	}
	res, err := call(ctx, mod, fn, args...)
	if err != nil {
		return "", err
	}
	return takeCString(ctx, mod, uint32(res))
}

func call(ctx context.Context, mod api.Module, name string, args ...uint64) (uint64, error) {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return 0, fmt.Errorf("engine does not export %s", name)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, fmt.Errorf("call %s: %w", name, err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("call %s: no result", name)
	}
	return res[0], nil
}

func writeCString(ctx context.Context, mod api.Module, s string) (uint32, error) {
	size := uint64(len(s) + 1)
	res, err := call(ctx, mod, "malloc", size)
	if err != nil {
		return 0, err
	}
	ptr := uint32(res)
	if ptr == 0 {
		return 0, fmt.Errorf("malloc(%d) returned null", size)
	}
	buf := make([]byte, size)
	copy(buf, s)
	if !mod.Memory().Write(ptr, buf) {
		return 0, fmt.Errorf("write %d bytes at %#x out of range", size, ptr)
	}
	return ptr, nil
}

// takeCString reads a NUL-terminated string and frees it.
func takeCString(ctx context.Context, mod api.Module, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("engine returned null")
	}
	defer freePtr(ctx, mod, ptr)
	mem := mod.Memory()
	var out []byte
	for off := ptr; ; off++ {
		c, ok := mem.ReadByte(off)
		if !ok {
			return "", fmt.Errorf("read string at %#x out of range", ptr)
		}
		if c == 0 {
			break
		}
		out = append(out, c)
	}
	return string(out), nil
}

func freePtr(ctx context.Context, mod api.Module, ptr uint32) {
	if fn := mod.ExportedFunction("free"); fn != nil {
		_, _ = fn.Call(ctx, uint64(ptr))
	}
}
