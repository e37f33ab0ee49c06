package native

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sandbox/internal/ledger"
)

// Wallet exit codes.
const (
	ExitBadSeqno   int32 = 33
	ExitBadRequest int32 = 34
)

// MaxTransfers bounds the transfers in one wallet request.
const MaxTransfers = 255

type walletState struct {
	Seqno uint32 `json:"seqno"`
	ID    string `json:"id"`
}

// Transfer is one message a wallet is asked to send.
type Transfer struct {
	To     ledger.Address    `json:"to"`
	Value  ledger.Coins      `json:"value"`
	Bounce bool              `json:"bounce"`
	Body   *ledger.Cell      `json:"body,omitempty"`
	Init   *ledger.StateInit `json:"init,omitempty"`
	Mode   SendMode          `json:"mode"`
}

type walletRequest struct {
	Seqno     uint32     `json:"seqno"`
	Transfers []Transfer `json:"transfers"`
}

// WalletData encodes the initial data of a wallet. id keeps wallets with
// the same code at different addresses.
func WalletData(id string) *ledger.Cell {
	return mustJSONCell(walletState{ID: id})
}

// WalletTransferBody builds the external message body asking a wallet to
// send transfers.
func WalletTransferBody(seqno uint32, transfers ...Transfer) (*ledger.Cell, error) {
	if len(transfers) > MaxTransfers {
		return nil, fmt.Errorf("wallet request has %d transfers, maximum is %d", len(transfers), MaxTransfers)
	}
	data, err := json.Marshal(walletRequest{Seqno: seqno, Transfers: transfers})
	if err != nil {
		return nil, fmt.Errorf("encode wallet request: %w", err)
	}
	return ledger.NewCell(data), nil
}

func walletHandler() Handler {
	return Handler{
		Receive: func(c *Context) error {
			if c.Message.Kind != ledger.MessageExternalIn {
				return nil
			}
			var st walletState
			if err := json.Unmarshal(c.Data().Data, &st); err != nil {
				return Throw(ExitCellUnderflow)
			}
			var req walletRequest
			if c.Message.Body == nil || json.Unmarshal(c.Message.Body.Data, &req) != nil {
				return Throw(ExitBadRequest)
			}
			if req.Seqno != st.Seqno {
				c.Debug("seqno mismatch: got %d, want %d", req.Seqno, st.Seqno)
				return Throw(ExitBadSeqno)
			}
			st.Seqno++
			c.SetData(mustJSONCell(st))
			for _, tr := range req.Transfers {
				c.Send(OutMessage{To: tr.To, Value: tr.Value, Bounce: tr.Bounce, Body: tr.Body, Init: tr.Init, Mode: tr.Mode})
			}
			return nil
		},
		Getters: map[string]Getter{
			"seqno": func(g *GetContext) ([]ledger.StackItem, error) {
				var st walletState
				if err := json.Unmarshal(g.Data.Data, &st); err != nil {
					return nil, Throw(ExitCellUnderflow)
				}
				return []ledger.StackItem{ledger.IntItem(int64(st.Seqno))}, nil
			},
		},
	}
}

// Treasury is a wallet used to fund scenarios. It signs nothing; the seqno
// is the only replay guard.
type Treasury struct {
	Address ledger.Address
	Init    ledger.StateInit
}

// NewTreasury derives the wallet for id on workchain.
func NewTreasury(workchain int32, id string) Treasury {
	init := ledger.StateInit{Code: Code(HandlerWallet), Data: WalletData(id)}
	return Treasury{
		Address: ledger.ContractAddress(workchain, init),
		Init:    init,
	}
}

// Transfer builds the external-in message carrying transfers.
func (t Treasury) Transfer(seqno uint32, transfers ...Transfer) (ledger.Message, error) {
	body, err := WalletTransferBody(seqno, transfers...)
	if err != nil {
		return ledger.Message{}, err
	}
	return ledger.NewExternalIn(ledger.ExternalInInfo{Dest: t.Address}, nil, body), nil
}

func mustJSONCell(v any) *ledger.Cell {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal handler data: %v", err))
	}
	return ledger.NewCell(data)
}
