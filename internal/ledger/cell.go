package ledger

import (
	"bytes"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Cell is an opaque tree payload: a byte string plus ordered references.
// Contract code, contract data, message bodies and the network configuration
// are all cells.
type Cell struct {
	Data []byte  `json:"data,omitempty"`
	Refs []*Cell `json:"refs,omitempty"`
}

// textPrefix is the 32-bit zero opcode marking a text comment body.
var textPrefix = []byte{0, 0, 0, 0}

// NewCell creates a cell holding data and refs.
func NewCell(data []byte, refs ...*Cell) *Cell {
	return &Cell{Data: data, Refs: refs}
}

// EmptyCell returns a cell with no data and no refs.
func EmptyCell() *Cell {
	return &Cell{}
}

// TextCell encodes a text comment: a zero opcode followed by UTF-8 bytes.
func TextCell(text string) *Cell {
	data := make([]byte, 0, len(textPrefix)+len(text))
	data = append(data, textPrefix...)
	data = append(data, text...)
	return &Cell{Data: data}
}

// StringCell stores raw bytes of s without an opcode.
// Used for short identifiers such as handler names in code cells.
func StringCell(s string) *Cell {
	return &Cell{Data: []byte(s)}
}

// IsEmpty reports whether the cell carries no data and no refs.
// A nil cell is empty.
func (c *Cell) IsEmpty() bool {
	return c == nil || (len(c.Data) == 0 && len(c.Refs) == 0)
}

// Hash returns the content hash of the cell tree.
func (c *Cell) Hash() Hash {
	if c == nil {
		return cellHash(nil, nil)
	}
	refs := make([]Hash, len(c.Refs))
	for i, r := range c.Refs {
		refs[i] = r.Hash()
	}
	return cellHash(c.Data, refs)
}

// Equal reports whether two cells have identical content.
func (c *Cell) Equal(other *Cell) bool {
	if c.IsEmpty() && other.IsEmpty() {
		return true
	}
	if c == nil || other == nil {
		return false
	}
	if !bytes.Equal(c.Data, other.Data) || len(c.Refs) != len(other.Refs) {
		return false
	}
	for i := range c.Refs {
		if !c.Refs[i].Equal(other.Refs[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	out := &Cell{Data: append([]byte(nil), c.Data...)}
	if len(c.Refs) > 0 {
		out.Refs = make([]*Cell, len(c.Refs))
		for i, r := range c.Refs {
			out.Refs[i] = r.Clone()
		}
	}
	return out
}

// Opcode returns the leading 32-bit opcode and true if the cell holds at
// least 32 bits of data.
func (c *Cell) Opcode() (uint32, bool) {
	if c == nil || len(c.Data) < len(textPrefix) {
		return 0, false
	}
	d := c.Data
	return uint32(d[0])<<24 | uint32(d[1])<<16 | uint32(d[2])<<8 | uint32(d[3]), true
}

// Text decodes a text comment body. The tail continues through the first
// ref of each cell, so long comments span a chain of cells. A nil ref ends
// the chain.
func (c *Cell) Text() (string, bool) {
	op, ok := c.Opcode()
	if !ok || op != 0 {
		return "", false
	}
	var b strings.Builder
	b.Write(c.Data[len(textPrefix):])
	for next := c; len(next.Refs) > 0 && next.Refs[0] != nil; {
		next = next.Refs[0]
		b.Write(next.Data)
	}
	s := b.String()
	if !utf8.ValidString(s) {
		return "", false
	}
	return s, true
}

// String renders the cell as x{HEX} lines, refs indented one space deeper.
func (c *Cell) String() string {
	var b strings.Builder
	c.format(&b, "")
	return b.String()
}

func (c *Cell) format(b *strings.Builder, indent string) {
	b.WriteString(indent)
	b.WriteString("x{")
	if c != nil {
		b.WriteString(strings.ToUpper(hex.EncodeToString(c.Data)))
	}
	b.WriteString("}")
	if c == nil {
		return
	}
	for _, r := range c.Refs {
		b.WriteString("\n")
		r.format(b, indent+" ")
	}
}
