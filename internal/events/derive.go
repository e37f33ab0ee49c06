package events

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sandbox/internal/ledger"
)

// Resolver supplies registry lookups to Derive.
type Resolver interface {
	// ContractError returns the message registered for an exit code of
	// the contract at addr.
	ContractError(addr ledger.Address, code int32) (string, bool)

	// DisplayName returns the name given to addr, or its raw form.
	DisplayName(addr ledger.Address) string
}

// RawResolver resolves nothing: no error messages, raw addresses.
type RawResolver struct{}

func (RawResolver) ContractError(ledger.Address, int32) (string, bool) { return "", false }
func (RawResolver) DisplayName(a ledger.Address) string { return a.String() }

// Derive computes the events of tx. It fails with a ShapeError for
// transactions without an inbound message or with a non-generic
// description.
func Derive(tx ledger.Transaction, r Resolver) ([]Event, error) {
	if tx.InMessage == nil {
		return nil, newShapeError(tx.LT, "transaction has no inbound message")
	}
	if tx.Description.Kind != ledger.DescriptionGeneric {
		return nil, newShapeError(tx.LT, "%s transaction is not supported", tx.Description.Kind)
	}
	if r == nil {
		r = RawResolver{}
	}

	var out []Event
	if (tx.OldStatus == ledger.StatusNonExisting || tx.OldStatus == ledger.StatusUninitialized) && tx.EndStatus == ledger.StatusActive {
		out = append(out, Event{Type: TypeDeploy})
	}

	if sp := tx.Description.Storage; sp != nil {
		if !sp.FeesCollected.IsZero() {
			out = append(out, Event{Type: TypeStorageCharged, Amount: sp.FeesCollected.String()})
		}
		switch sp.StatusChange {
		case ledger.StatusFrozenNow:
			out = append(out, Event{Type: TypeFrozen})
		case ledger.StatusDeleted:
			out = append(out, Event{Type: TypeDeleted})
		}
	}

	in, err := convertMessage(*tx.InMessage, r)
	if err != nil {
		return nil, newShapeError(tx.LT, "inbound message: %v", err)
	}
	if tx.InMessage.IsBounced() {
		out = append(out, Event{Type: TypeReceivedBounced, Message: &in})
	} else {
		out = append(out, Event{Type: TypeReceived, Message: &in})
	}

	cp := tx.Description.Compute
	switch cp.Kind {
	case ledger.ComputeVM:
		if cp.Success {
			gas := cp.GasUsed
			out = append(out, Event{Type: TypeProcessed, GasUsed: &gas})
		} else {
			ev := Event{Type: TypeFailed, ErrorCode: cp.ExitCode}
			if msg, ok := r.ContractError(tx.Address, cp.ExitCode); ok {
				ev.ErrorMessage = msg
			}
			out = append(out, ev)
		}
	case ledger.ComputeSkipped:
		out = append(out, Event{Type: TypeSkipped, Reason: cp.SkipReason})
	default:
		return nil, newShapeError(tx.LT, "unknown compute phase %q", cp.Kind)
	}

	for i, m := range tx.OutMessages {
		tm, err := convertMessage(m, r)
		if err != nil {
			return nil, newShapeError(tx.LT, "outgoing message %d: %v", i, err)
		}
		if m.IsBounced() {
			out = append(out, Event{Type: TypeSentBounced, Message: &tm})
		} else {
			out = append(out, Event{Type: TypeSent, Messages: []TrackedMessage{tm}})
		}
	}

	if b := tx.Description.Bounce; b != nil && b.Kind == ledger.BounceNoFunds {
		out = append(out, Event{Type: TypeSentBouncedFailed})
	}
	return out, nil
}

func convertMessage(m ledger.Message, r Resolver) (TrackedMessage, error) {
	switch m.Kind {
	case ledger.MessageInternal:
		if m.Internal == nil {
			return TrackedMessage{}, fmt.Errorf("internal message without header")
		}
		return TrackedMessage{
			Type:   m.Kind,
			From:   r.DisplayName(m.Internal.Src),
			To:     r.DisplayName(m.Internal.Dest),
			Value:  m.Internal.Value.String(),
			Bounce: m.Internal.Bounce,
			Body:   ConvertBody(m.Body),
		}, nil
	case ledger.MessageExternalIn:
		if m.ExternalIn == nil {
			return TrackedMessage{}, fmt.Errorf("external-in message without header")
		}
		return TrackedMessage{
			Type: m.Kind,
			To:   r.DisplayName(m.ExternalIn.Dest),
			Body: ConvertBody(m.Body),
		}, nil
	case ledger.MessageExternalOut:
		if m.ExternalOut == nil {
			return TrackedMessage{}, fmt.Errorf("external-out message without header")
		}
		return TrackedMessage{
			Type: m.Kind,
			From: r.DisplayName(m.ExternalOut.Src),
			To:   m.ExternalOut.Dest,
			Body: ConvertBody(m.Body),
		}, nil
	default:
		return TrackedMessage{}, fmt.Errorf("unknown message kind %d", int(m.Kind))
	}
}

// ConvertBody classifies a body: empty, text comment (opcode 0 followed by
// UTF-8, normalized to NFC) or an opaque cell.
func ConvertBody(c *ledger.Cell) TrackedBody {
	if c.IsEmpty() {
		return TrackedBody{Type: BodyEmpty}
	}
	if len(c.Data) > 4 {
		if text, ok := c.Text(); ok {
			return TrackedBody{Type: BodyText, Text: norm.NFC.String(text)}
		}
	}
	return TrackedBody{Type: BodyCell, Cell: c.String()}
}
