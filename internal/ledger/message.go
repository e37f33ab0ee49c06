package ledger

import (
	"fmt"
)

// MessageKind discriminates the Message variant.
type MessageKind int

const (
	// MessageInternal is a value-carrying message between accounts.
	MessageInternal MessageKind = iota + 1
	// MessageExternalIn enters the ledger from outside.
	MessageExternalIn
	// MessageExternalOut is emitted by a contract; it is never delivered.
	MessageExternalOut
)

func (k MessageKind) String() string {
	switch k {
	case MessageInternal:
		return "internal"
	case MessageExternalIn:
		return "external-in"
	case MessageExternalOut:
		return "external-out"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k MessageKind) MarshalText() ([]byte, error) {
	switch k {
	case MessageInternal, MessageExternalIn, MessageExternalOut:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown message kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *MessageKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "internal":
		*k = MessageInternal
	case "external-in":
		*k = MessageExternalIn
	case "external-out":
		*k = MessageExternalOut
	default:
		return fmt.Errorf("unknown message kind %q", string(text))
	}
	return nil
}

// InternalInfo is the header of an internal message.
type InternalInfo struct {
	Src         Address `json:"src"`
	Dest        Address `json:"dest"`
	Value       Coins   `json:"value"`
	Bounce      bool    `json:"bounce"`
	Bounced     bool    `json:"bounced"`
	IHRDisabled bool    `json:"ihr_disabled"`
	ForwardFee  Coins   `json:"fwd_fee"`
	CreatedLT   uint64  `json:"created_lt,string"`
	CreatedAt   uint32  `json:"created_at"`
}

// ExternalInInfo is the header of an inbound external message.
// Src is an external address in free text form and may be empty.
type ExternalInInfo struct {
	Src       string  `json:"src,omitempty"`
	Dest      Address `json:"dest"`
	ImportFee Coins   `json:"import_fee"`
}

// ExternalOutInfo is the header of an outbound external message.
// Dest is an optional external address.
type ExternalOutInfo struct {
	Src       Address `json:"src"`
	Dest      string  `json:"dest,omitempty"`
	CreatedLT uint64  `json:"created_lt,string"`
	CreatedAt uint32  `json:"created_at"`
}

// Message is a closed tagged variant over the three message kinds.
type Message struct {
	Kind        MessageKind      `json:"kind"`
	Internal    *InternalInfo    `json:"internal,omitempty"`
	ExternalIn  *ExternalInInfo  `json:"external_in,omitempty"`
	ExternalOut *ExternalOutInfo `json:"external_out,omitempty"`
	Init        *StateInit       `json:"init,omitempty"`
	Body        *Cell            `json:"body,omitempty"`
}

// NewInternal builds an internal message.
func NewInternal(info InternalInfo, init *StateInit, body *Cell) Message {
	return Message{Kind: MessageInternal, Internal: &info, Init: init, Body: body}
}

// NewExternalIn builds an inbound external message.
func NewExternalIn(info ExternalInInfo, init *StateInit, body *Cell) Message {
	return Message{Kind: MessageExternalIn, ExternalIn: &info, Init: init, Body: body}
}

// NewExternalOut builds an outbound external message.
func NewExternalOut(info ExternalOutInfo, body *Cell) Message {
	return Message{Kind: MessageExternalOut, ExternalOut: &info, Body: body}
}

// Validate checks that exactly the info block matching Kind is present.
func (m Message) Validate() error {
	set := 0
	if m.Internal != nil {
		set++
	}
	if m.ExternalIn != nil {
		set++
	}
	if m.ExternalOut != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("message must carry exactly one info block, has %d", set)
	}
	switch m.Kind {
	case MessageInternal:
		if m.Internal == nil {
			return fmt.Errorf("internal message without internal info")
		}
	case MessageExternalIn:
		if m.ExternalIn == nil {
			return fmt.Errorf("external-in message without external-in info")
		}
	case MessageExternalOut:
		if m.ExternalOut == nil {
			return fmt.Errorf("external-out message without external-out info")
		}
	default:
		return fmt.Errorf("unknown message kind %d", int(m.Kind))
	}
	return nil
}

// Destination returns the account a message is delivered to. External-out
// messages have no account destination and report false.
func (m Message) Destination() (Address, bool) {
	switch m.Kind {
	case MessageInternal:
		if m.Internal != nil {
			return m.Internal.Dest, true
		}
	case MessageExternalIn:
		if m.ExternalIn != nil {
			return m.ExternalIn.Dest, true
		}
	case MessageExternalOut:
	}
	return Address{}, false
}

// Value returns the coins carried by an internal message, zero otherwise.
func (m Message) Value() Coins {
	if m.Kind == MessageInternal && m.Internal != nil {
		return m.Internal.Value
	}
	return Coins{}
}

// IsBounced reports whether this is an internal message produced by a bounce.
func (m Message) IsBounced() bool {
	return m.Kind == MessageInternal && m.Internal != nil && m.Internal.Bounced
}
