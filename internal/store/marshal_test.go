package store

import (
	"strings"
	"testing"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

func TestMarshalTransaction_RoundTrip(t *testing.T) {
	tx := createTestTransaction(t, 2, 10, 5)

	record, err := marshalTransaction(tx)
	if err != nil {
		t.Fatalf("marshalTransaction() failed: %v", err)
	}
	got, err := unmarshalTransaction(record)
	if err != nil {
		t.Fatalf("unmarshalTransaction() failed: %v", err)
	}

	if got.Hash != tx.Hash {
		t.Errorf("Hash = %s, want %s", got.Hash, tx.Hash)
	}
	h, err := got.ComputeHash()
	if err != nil {
		t.Fatalf("ComputeHash() failed: %v", err)
	}
	if h != tx.Hash {
		t.Error("decoded transaction hashes differently")
	}
}

func TestUnmarshalTransaction_Invalid(t *testing.T) {
	if _, err := unmarshalTransaction("{not json"); err == nil {
		t.Error("unmarshalTransaction() succeeded on invalid JSON")
	}
}

func TestMarshalEvent_NoHTMLEscaping(t *testing.T) {
	ev := events.Event{
		Type: events.TypeReceived,
		Message: &events.TrackedMessage{
			Type: ledger.MessageInternal,
			Body: events.TrackedBody{Type: events.BodyText, Text: "<b>a & b</b>"},
		},
	}

	payload, err := marshalEvent(ev)
	if err != nil {
		t.Fatalf("marshalEvent() failed: %v", err)
	}
	if !strings.Contains(payload, "<b>a & b</b>") {
		t.Errorf("marshalEvent() = %s, want unescaped text", payload)
	}
	if strings.HasSuffix(payload, "\n") {
		t.Error("marshalEvent() kept the trailing newline")
	}

	got, err := unmarshalEvent(payload)
	if err != nil {
		t.Fatalf("unmarshalEvent() failed: %v", err)
	}
	if got.Message == nil || got.Message.Body.Text != "<b>a & b</b>" {
		t.Errorf("unmarshalEvent() = %+v", got)
	}
}

func TestParseLT(t *testing.T) {
	const big uint64 = 1<<63 + 5
	got, err := parseLT(formatLT(big))
	if err != nil {
		t.Fatalf("parseLT() failed: %v", err)
	}
	if got != big {
		t.Errorf("parseLT() = %d, want %d", got, big)
	}

	if _, err := parseLT("-1"); err == nil {
		t.Error("parseLT(-1) succeeded")
	}
}
