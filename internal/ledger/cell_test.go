package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCell_Hash(t *testing.T) {
	a := NewCell([]byte{1, 2}, NewCell([]byte{3}))
	b := NewCell([]byte{1, 2}, NewCell([]byte{3}))
	c := NewCell([]byte{1, 2}, NewCell([]byte{4}))

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
	assert.Equal(t, EmptyCell().Hash(), (*Cell)(nil).Hash(), "nil hashes like empty")
}

func TestCell_Equal(t *testing.T) {
	assert.True(t, (*Cell)(nil).Equal(EmptyCell()))
	assert.True(t, NewCell([]byte{9}).Equal(NewCell([]byte{9})))
	assert.False(t, NewCell([]byte{9}).Equal(NewCell([]byte{9}, EmptyCell())))
}

func TestCell_Text(t *testing.T) {
	s, ok := TextCell("hello").Text()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	empty, ok := TextCell("").Text()
	assert.True(t, ok)
	assert.Equal(t, "", empty)

	chained := TextCell("hel")
	chained.Refs = []*Cell{StringCell("lo")}
	s, ok = chained.Text()
	assert.True(t, ok)
	assert.Equal(t, "hello", s)

	s, ok = NewCell([]byte{0, 0, 0, 0, 'h', 'i'}, nil).Text()
	assert.True(t, ok)
	assert.Equal(t, "hi", s, "nil ref ends the chain")

	_, ok = NewCell([]byte{0, 0, 0, 1, 'x'}).Text()
	assert.False(t, ok, "non-zero opcode is not text")

	_, ok = NewCell([]byte{1, 2}).Text()
	assert.False(t, ok, "short data has no opcode")
}

func TestCell_String(t *testing.T) {
	c := NewCell([]byte{0xab, 0x01}, NewCell([]byte{0xff}))
	assert.Equal(t, "x{AB01}\n x{FF}", c.String())
}

func TestCell_Clone(t *testing.T) {
	orig := NewCell([]byte{1}, NewCell([]byte{2}))
	cp := orig.Clone()
	cp.Refs[0].Data[0] = 9
	assert.Equal(t, byte(2), orig.Refs[0].Data[0])
}
