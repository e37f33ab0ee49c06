package events

import (
	"github.com/roach88/sandbox/internal/ledger"
)

// Type names an event.
type Type string

const (
	TypeDeploy            Type = "deploy"
	TypeFrozen            Type = "frozen"
	TypeDeleted           Type = "deleted"
	TypeStorageCharged    Type = "storage-charged"
	TypeReceived          Type = "received"
	TypeReceivedBounced   Type = "received-bounced"
	TypeProcessed         Type = "processed"
	TypeFailed            Type = "failed"
	TypeSkipped           Type = "skipped"
	TypeSent              Type = "sent"
	TypeSentBounced       Type = "sent-bounced"
	TypeSentBouncedFailed Type = "sent-bounced-failed"
)

// Event is one semantic step of a transaction. Only the fields relevant to
// Type are set.
type Event struct {
	Type         Type              `json:"$type" yaml:"type"`
	Message      *TrackedMessage   `json:"message,omitempty" yaml:"message,omitempty"`
	Messages     []TrackedMessage  `json:"messages,omitempty" yaml:"messages,omitempty"`
	ErrorCode    int32             `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
	GasUsed      *uint64           `json:"gasUsed,omitempty,string" yaml:"gasUsed,omitempty"`
	Reason       ledger.SkipReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Amount       string            `json:"amount,omitempty" yaml:"amount,omitempty"`
}

// BodyType classifies a message body.
type BodyType string

const (
	BodyEmpty BodyType = "empty"
	BodyCell  BodyType = "cell"
	BodyText  BodyType = "text"
)

// TrackedBody is a display form of a message body.
type TrackedBody struct {
	Type BodyType `json:"type" yaml:"type"`
	Cell string   `json:"cell,omitempty" yaml:"cell,omitempty"`
	Text string   `json:"text,omitempty" yaml:"text,omitempty"`
}

// TrackedMessage is a display form of a message. Addresses are rendered
// through the Resolver, so named accounts show their names.
type TrackedMessage struct {
	Type   ledger.MessageKind `json:"type" yaml:"type"`
	From   string             `json:"from,omitempty" yaml:"from,omitempty"`
	To     string             `json:"to,omitempty" yaml:"to,omitempty"`
	Value  string             `json:"value,omitempty" yaml:"value,omitempty"`
	Bounce bool               `json:"bounce,omitempty" yaml:"bounce,omitempty"`
	Body   TrackedBody        `json:"body" yaml:"body"`
}

// TrackedTransaction groups the events of one transaction.
type TrackedTransaction struct {
	Seq    int     `json:"$seq" yaml:"seq"`
	LT     uint64  `json:"lt,string" yaml:"lt"`
	Events []Event `json:"events" yaml:"events"`
}
