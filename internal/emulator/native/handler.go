package native

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/sandbox/internal/ledger"
)

// Exit codes produced by the engine itself.
const (
	ExitOK             int32 = 0
	ExitAlternativeOK  int32 = 1
	ExitStackUnderflow int32 = 2
	ExitTypeCheck      int32 = 7
	ExitCellUnderflow  int32 = 9
	ExitUnknownMethod  int32 = 11
	ExitOutOfGas       int32 = -14

	// ResultNotEnoughFunds is the action phase result code when queued
	// messages cannot be paid for.
	ResultNotEnoughFunds int32 = 37
)

// ExitError aborts a handler with an exit code.
type ExitError struct {
	Code int32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Throw returns an ExitError for code.
func Throw(code int32) error {
	return &ExitError{Code: code}
}

// exitCodeOf maps a handler error to an exit code.
func exitCodeOf(err error) int32 {
	if err == nil {
		return ExitOK
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ExitCellUnderflow
}

// SendMode selects how the value of an outgoing message is computed.
type SendMode int

const (
	// SendDefault sends exactly Value; the forward fee is paid from balance.
	SendDefault SendMode = 0
	// SendDestroyIfZero deletes the account when its balance ends at zero.
	SendDestroyIfZero SendMode = 32
	// SendCarryInbound adds the inbound message value to Value.
	SendCarryInbound SendMode = 64
	// SendCarryAll sends the whole remaining balance, minus the forward fee.
	SendCarryAll SendMode = 128
)

// Has reports whether m includes flag.
func (m SendMode) Has(flag SendMode) bool {
	return m&flag != 0
}

// OutMessage is an internal message queued by a handler.
type OutMessage struct {
	To     ledger.Address
	Value  ledger.Coins
	Bounce bool
	Body   *ledger.Cell
	Init   *ledger.StateInit
	Mode   SendMode
}

type action struct {
	internal *OutMessage
	external *externalOut
}

type externalOut struct {
	dest string
	body *ledger.Cell
}

// Context is the view a handler gets of one inbound message.
type Context struct {
	Address ledger.Address
	Balance ledger.Coins
	Now     uint32
	LT      uint64
	Message ledger.Message
	Config  Config

	data    *ledger.Cell
	actions []action
	gas     uint64
	debug   io.Writer
}

// Data returns the current persistent data.
func (c *Context) Data() *ledger.Cell {
	return c.data
}

// SetData replaces the persistent data. It takes effect only if the
// transaction's action phase succeeds.
func (c *Context) SetData(d *ledger.Cell) {
	c.data = d
}

// Send queues an internal message.
func (c *Context) Send(m OutMessage) {
	c.actions = append(c.actions, action{internal: &m})
}

// Emit queues an external-out message.
func (c *Context) Emit(dest string, body *ledger.Cell) {
	c.actions = append(c.actions, action{external: &externalOut{dest: dest, body: body}})
}

// UseGas charges extra gas on top of the base cost.
func (c *Context) UseGas(n uint64) {
	c.gas += n
}

// Debug writes a contract debug line.
func (c *Context) Debug(format string, args ...any) {
	writeDebug(c.debug, format, args...)
}

// Sender returns the source of an internal inbound message.
func (c *Context) Sender() (ledger.Address, bool) {
	if c.Message.Kind == ledger.MessageInternal && c.Message.Internal != nil {
		return c.Message.Internal.Src, true
	}
	return ledger.Address{}, false
}

// GetContext is the view a getter gets of the contract.
type GetContext struct {
	Address ledger.Address
	Balance ledger.Coins
	Now     uint32
	Data    *ledger.Cell
	Args    *ledger.StackReader

	gas   uint64
	debug io.Writer
}

// UseGas charges extra gas on top of the base cost.
func (g *GetContext) UseGas(n uint64) {
	g.gas += n
}

// Debug writes a contract debug line.
func (g *GetContext) Debug(format string, args ...any) {
	writeDebug(g.debug, format, args...)
}

// Getter computes a getter result.
type Getter func(g *GetContext) ([]ledger.StackItem, error)

// Handler is the behaviour behind a code cell.
type Handler struct {
	// Receive processes an inbound internal or external-in message.
	// A nil Receive accepts every message and does nothing.
	Receive func(c *Context) error

	// Getters maps getter names to implementations.
	Getters map[string]Getter
}

func writeDebug(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "#DEBUG#: "+format+"\n", args...)
}
