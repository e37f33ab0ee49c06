package ledger

import (
	"errors"
	"fmt"
	"math/big"
)

// StackKind is the type tag of a stack entry.
type StackKind string

const (
	StackNull  StackKind = "null"
	StackInt   StackKind = "int"
	StackCell  StackKind = "cell"
	StackSlice StackKind = "slice"
	StackTuple StackKind = "tuple"
)

// StackItem is one entry of a VM stack.
type StackItem struct {
	Kind  StackKind   `json:"type"`
	Int   *big.Int    `json:"value,omitempty"`
	Cell  *Cell       `json:"cell,omitempty"`
	Items []StackItem `json:"items,omitempty"`
}

// IntItem wraps an integer.
func IntItem(v int64) StackItem {
	return StackItem{Kind: StackInt, Int: big.NewInt(v)}
}

// BigIntItem wraps a big integer.
func BigIntItem(v *big.Int) StackItem {
	return StackItem{Kind: StackInt, Int: new(big.Int).Set(v)}
}

// CellItem wraps a cell.
func CellItem(c *Cell) StackItem {
	return StackItem{Kind: StackCell, Cell: c}
}

// SliceItem wraps a cell read as a slice.
func SliceItem(c *Cell) StackItem {
	return StackItem{Kind: StackSlice, Cell: c}
}

// NullItem is the null stack value.
func NullItem() StackItem {
	return StackItem{Kind: StackNull}
}

// TupleItem wraps nested items.
func TupleItem(items ...StackItem) StackItem {
	return StackItem{Kind: StackTuple, Items: items}
}

// ErrStackUnderflow is returned when reading past the end of a stack.
var ErrStackUnderflow = errors.New("stack underflow")

// StackReader reads a getter result from top to bottom.
type StackReader struct {
	items []StackItem
	pos   int
}

// NewStackReader creates a reader over items. items[0] is read first.
func NewStackReader(items []StackItem) *StackReader {
	return &StackReader{items: items}
}

// Remaining returns how many items are left.
func (r *StackReader) Remaining() int {
	if r == nil {
		return 0
	}
	return len(r.items) - r.pos
}

// Items returns all items, including ones already read.
func (r *StackReader) Items() []StackItem {
	if r == nil {
		return nil
	}
	return r.items
}

// Pop returns the next raw item.
func (r *StackReader) Pop() (StackItem, error) {
	if r.Remaining() == 0 {
		return StackItem{}, ErrStackUnderflow
	}
	item := r.items[r.pos]
	r.pos++
	return item, nil
}

// ReadBigInt reads an integer.
func (r *StackReader) ReadBigInt() (*big.Int, error) {
	item, err := r.Pop()
	if err != nil {
		return nil, err
	}
	if item.Kind != StackInt || item.Int == nil {
		return nil, fmt.Errorf("expected int, got %s", item.Kind)
	}
	return new(big.Int).Set(item.Int), nil
}

// ReadInt64 reads an integer that fits in 64 bits.
func (r *StackReader) ReadInt64() (int64, error) {
	v, err := r.ReadBigInt()
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("int %s overflows int64", v)
	}
	return v.Int64(), nil
}

// ReadBool reads an integer as a boolean. Zero is false.
func (r *StackReader) ReadBool() (bool, error) {
	v, err := r.ReadBigInt()
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// ReadCell reads a cell or slice. Null reads as nil.
func (r *StackReader) ReadCell() (*Cell, error) {
	item, err := r.Pop()
	if err != nil {
		return nil, err
	}
	switch item.Kind {
	case StackCell, StackSlice:
		return item.Cell, nil
	case StackNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected cell, got %s", item.Kind)
	}
}

// ReadTuple reads a tuple as a nested reader.
func (r *StackReader) ReadTuple() (*StackReader, error) {
	item, err := r.Pop()
	if err != nil {
		return nil, err
	}
	if item.Kind != StackTuple {
		return nil, fmt.Errorf("expected tuple, got %s", item.Kind)
	}
	return NewStackReader(item.Items), nil
}
