// Package ledger defines the value types shared by every layer of the sandbox.
//
// The types model the ledger's native structures closely enough for the
// simulation core to reason about them (addresses, balances, messages,
// account states and transaction records) while leaving the binary tree
// serialization to a Codec.
//
// # Messages
//
// Message is a closed tagged variant. Exactly one of Internal, ExternalIn or
// ExternalOut is set and it always matches Kind. Consumers switch on Kind and
// treat anything else as an error:
//
//	switch msg.Kind {
//	case MessageInternal:
//	case MessageExternalIn:
//	case MessageExternalOut:
//	default:
//	    return fmt.Errorf("unknown message kind %d", msg.Kind)
//	}
//
// # Serialization
//
// Binary payloads cross the engine boundary as base64 text of the Codec
// output. JSONCodec is the codec understood by the native engine; a real
// cell codec can be plugged in behind the same interface.
package ledger
