package native

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/roach88/sandbox/internal/ledger"
)

// Names of the handlers registered by RegisterBuiltins.
const (
	HandlerSink    = "sink"
	HandlerCounter = "counter"
	HandlerEcho    = "echo"
	HandlerForward = "forward"
	HandlerReject  = "reject"
	HandlerEmitter = "emitter"
	HandlerWallet  = "wallet"
)

// Code returns the code cell that selects handler name.
func Code(name string) *ledger.Cell {
	return ledger.StringCell(name)
}

// Builtins returns the stock handlers keyed by name.
func Builtins() map[string]Handler {
	return map[string]Handler{
		HandlerSink:    {},
		HandlerCounter: counterHandler(),
		HandlerEcho:    {Receive: echoReceive},
		HandlerForward: forwardHandler(),
		HandlerReject:  {Receive: rejectReceive},
		HandlerEmitter: {Receive: emitterReceive},
		HandlerWallet:  walletHandler(),
	}
}

// CounterData encodes a counter value as counter handler data.
func CounterData(v uint64) *ledger.Cell {
	return ledger.NewCell(binary.BigEndian.AppendUint64(nil, v))
}

func readCounter(d *ledger.Cell) (uint64, error) {
	if d.IsEmpty() {
		return 0, nil
	}
	if len(d.Data) != 8 {
		return 0, Throw(ExitCellUnderflow)
	}
	return binary.BigEndian.Uint64(d.Data), nil
}

// counterHandler increments on every message. A text body "fail" throws 100
// after incrementing, which leaves the stored value unchanged.
func counterHandler() Handler {
	return Handler{
		Receive: func(c *Context) error {
			n, err := readCounter(c.Data())
			if err != nil {
				return err
			}
			c.SetData(CounterData(n + 1))
			c.Debug("counter %d -> %d", n, n+1)
			if text, ok := c.Message.Body.Text(); ok && text == "fail" {
				return Throw(100)
			}
			return nil
		},
		Getters: map[string]Getter{
			"counter": func(g *GetContext) ([]ledger.StackItem, error) {
				n, err := readCounter(g.Data)
				if err != nil {
					return nil, err
				}
				return []ledger.StackItem{ledger.IntItem(int64(n))}, nil
			},
			"counter_plus": func(g *GetContext) ([]ledger.StackItem, error) {
				n, err := readCounter(g.Data)
				if err != nil {
					return nil, err
				}
				delta, err := g.Args.ReadInt64()
				if err != nil {
					return nil, Throw(ExitStackUnderflow)
				}
				return []ledger.StackItem{ledger.IntItem(int64(n) + delta)}, nil
			},
		},
	}
}

// echoReceive returns the inbound value and body to the sender.
func echoReceive(c *Context) error {
	src, ok := c.Sender()
	if !ok {
		return nil
	}
	c.Send(OutMessage{To: src, Body: c.Message.Body, Mode: SendCarryInbound})
	return nil
}

// ForwardData encodes the target of a forward handler.
func ForwardData(to ledger.Address) *ledger.Cell {
	return ledger.StringCell(to.String())
}

func forwardHandler() Handler {
	return Handler{
		Receive: func(c *Context) error {
			to, err := ledger.ParseAddress(string(c.Data().Data))
			if err != nil {
				return Throw(ExitCellUnderflow)
			}
			c.Send(OutMessage{To: to, Body: c.Message.Body, Bounce: true, Mode: SendCarryInbound})
			return nil
		},
		Getters: map[string]Getter{
			"target": func(g *GetContext) ([]ledger.StackItem, error) {
				return []ledger.StackItem{ledger.SliceItem(g.Data)}, nil
			},
		},
	}
}

// RejectData encodes the exit code a reject handler throws.
func RejectData(code int32) *ledger.Cell {
	return ledger.StringCell(strconv.FormatInt(int64(code), 10))
}

func rejectReceive(c *Context) error {
	code, err := strconv.ParseInt(strings.TrimSpace(string(c.Data().Data)), 10, 32)
	if err != nil {
		return Throw(ExitCellUnderflow)
	}
	c.Debug("rejecting with %d", code)
	return Throw(int32(code))
}

// emitterReceive publishes the inbound body as an external-out message.
func emitterReceive(c *Context) error {
	c.Emit("", c.Message.Body)
	return nil
}
