package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_Transaction(t *testing.T) {
	var codec JSONCodec
	addr := NewAddress(0, HashFromUint64(3))
	in := NewInternal(InternalInfo{Src: NewAddress(0, HashFromUint64(4)), Dest: addr, Value: NewCoins(100), Bounce: true}, nil, TextCell("hi"))
	tx := Transaction{
		Address:   addr,
		LT:        1_000_001,
		EndLT:     1_000_002,
		Now:       1700000000,
		OldStatus: StatusActive,
		EndStatus: StatusActive,
		InMessage: &in,
		TotalFees: NewCoins(7),
		Description: Description{
			Kind:    DescriptionGeneric,
			Compute: ComputePhase{Kind: ComputeVM, Success: true, GasUsed: 1200},
		},
	}
	require.NoError(t, tx.Seal())

	data, err := codec.EncodeTransaction(tx)
	require.NoError(t, err)
	back, err := codec.DecodeTransaction(data)
	require.NoError(t, err)

	assert.Equal(t, tx.Hash, back.Hash)
	h, err := back.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, tx.Hash, h, "hash survives a round trip")
	text, ok := back.InMessage.Body.Text()
	assert.True(t, ok)
	assert.Equal(t, "hi", text)
}

func TestJSONCodec_RejectsInvalidMessage(t *testing.T) {
	var codec JSONCodec
	_, err := codec.EncodeMessage(Message{Kind: MessageInternal})
	assert.Error(t, err)

	_, err = codec.DecodeMessage([]byte(`{"kind":"external-in"}`))
	assert.Error(t, err)
}

func TestJSONCodec_Stack(t *testing.T) {
	var codec JSONCodec
	data, err := codec.EncodeStack([]StackItem{IntItem(-5), CellItem(StringCell("x")), NullItem()})
	require.NoError(t, err)
	items, err := codec.DecodeStack(data)
	require.NoError(t, err)

	r := NewStackReader(items)
	n, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-5), n)
	c, err := r.ReadCell()
	require.NoError(t, err)
	assert.Equal(t, "x", string(c.Data))
	c, err = r.ReadCell()
	require.NoError(t, err)
	assert.Nil(t, c)
	_, err = r.ReadInt64()
	assert.ErrorIs(t, err, ErrStackUnderflow)
}
