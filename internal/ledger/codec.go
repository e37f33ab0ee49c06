package ledger

import (
	"encoding/json"
	"fmt"
)

// Codec serializes the values that cross the engine boundary.
type Codec interface {
	EncodeCell(c *Cell) ([]byte, error)
	DecodeCell(data []byte) (*Cell, error)
	EncodeShardAccount(sa ShardAccount) ([]byte, error)
	DecodeShardAccount(data []byte) (ShardAccount, error)
	EncodeMessage(m Message) ([]byte, error)
	DecodeMessage(data []byte) (Message, error)
	EncodeTransaction(tx Transaction) ([]byte, error)
	DecodeTransaction(data []byte) (Transaction, error)
	EncodeStack(items []StackItem) ([]byte, error)
	DecodeStack(data []byte) ([]StackItem, error)
}

// JSONCodec encodes values as JSON. It is the format of the native engine.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func encodeJSON[T any](what string, v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", what, err)
	}
	return data, nil
}

func decodeJSON[T any](what string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", what, err)
	}
	return v, nil
}

func (JSONCodec) EncodeCell(c *Cell) ([]byte, error) {
	if c == nil {
		c = EmptyCell()
	}
	return encodeJSON("cell", c)
}

func (JSONCodec) DecodeCell(data []byte) (*Cell, error) {
	return decodeJSON[*Cell]("cell", data)
}

func (JSONCodec) EncodeShardAccount(sa ShardAccount) ([]byte, error) {
	return encodeJSON("shard account", sa)
}

func (JSONCodec) DecodeShardAccount(data []byte) (ShardAccount, error) {
	return decodeJSON[ShardAccount]("shard account", data)
}

func (JSONCodec) EncodeMessage(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return encodeJSON("message", m)
}

func (JSONCodec) DecodeMessage(data []byte) (Message, error) {
	m, err := decodeJSON[Message]("message", data)
	if err != nil {
		return m, err
	}
	if err := m.Validate(); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

func (JSONCodec) EncodeTransaction(tx Transaction) ([]byte, error) {
	return encodeJSON("transaction", tx)
}

func (JSONCodec) DecodeTransaction(data []byte) (Transaction, error) {
	return decodeJSON[Transaction]("transaction", data)
}

func (JSONCodec) EncodeStack(items []StackItem) ([]byte, error) {
	if items == nil {
		items = []StackItem{}
	}
	return encodeJSON("stack", items)
}

func (JSONCodec) DecodeStack(data []byte) ([]StackItem, error) {
	return decodeJSON[[]StackItem]("stack", data)
}
