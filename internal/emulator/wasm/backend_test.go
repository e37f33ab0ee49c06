package wasm

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sandbox/internal/emulator"
)

// emptyModule is the smallest valid WebAssembly binary.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestLoad_InvalidBinary(t *testing.T) {
	_, err := Load(context.Background(), []byte("not wasm"))
	require.Error(t, err)
	assert.True(t, emulator.IsUnavailable(err))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.wasm"))
	require.Error(t, err)
	assert.True(t, emulator.IsUnavailable(err))
}

func TestBackend_MissingExports(t *testing.T) {
	ctx := context.Background()
	backend, err := Load(ctx, emptyModule)
	require.NoError(t, err)
	b := emulator.New(backend)
	defer func() { _ = b.Close(ctx) }()

	_, err = b.RunGetMethod(ctx, emulator.GetMethodArgs{})
	require.Error(t, err)
	assert.True(t, emulator.IsUnavailable(err))
	assert.Contains(t, err.Error(), "malloc")
}
