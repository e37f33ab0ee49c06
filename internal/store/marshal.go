package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

var codec = ledger.JSONCodec{}

// marshalTransaction converts a transaction to JSON TEXT for storage.
func marshalTransaction(tx ledger.Transaction) (string, error) {
	data, err := codec.EncodeTransaction(tx)
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}
	return string(data), nil
}

// unmarshalTransaction parses a stored transaction record.
func unmarshalTransaction(s string) (ledger.Transaction, error) {
	tx, err := codec.DecodeTransaction([]byte(s))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return tx, nil
}

// marshalEvent converts an event to JSON TEXT.
// HTML escaping is disabled so text bodies are stored as written.
func marshalEvent(ev events.Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// unmarshalEvent parses a stored event payload.
func unmarshalEvent(s string) (events.Event, error) {
	var ev events.Event
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

// formatLT stores logical times as decimal text; SQLite integers are signed.
func formatLT(lt uint64) string {
	return strconv.FormatUint(lt, 10)
}

func parseLT(s string) (uint64, error) {
	lt, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse lt %q: %w", s, err)
	}
	return lt, nil
}
